package repository

import (
	"context"
	"fmt"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoVendorRepository implements the VendorRepository interface
type MongoVendorRepository struct {
	collection *mongo.Collection
}

// NewMongoVendorRepository creates a new MongoDB vendor repository
func NewMongoVendorRepository(db *mongo.Database) repository.VendorRepository {
	collection := db.Collection("vendors")

	ctx := context.Background()

	vendorIDIndex := mongo.IndexModel{
		Keys:    bson.M{"vendorID": 1},
		Options: options.Index().SetUnique(true),
	}

	// Compound index covering the candidate query
	candidateIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "selectedSubcategories", Value: 1},
			{Key: "workPincodes", Value: 1},
			{Key: "isVerified", Value: 1},
		},
	}

	planExpiryIndex := mongo.IndexModel{
		Keys: bson.M{"creditPlan.expiryDate": 1},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		vendorIDIndex,
		candidateIndex,
		planExpiryIndex,
	})

	return &MongoVendorRepository{
		collection: collection,
	}
}

// FindByID finds a vendor by internal id
func (r *MongoVendorRepository) FindByID(ctx context.Context, id string) (*entity.Vendor, error) {
	var vendor entity.Vendor
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&vendor)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &vendor, nil
}

// FindCandidates returns vendors eligible to be offered a lead. The static
// predicates run in the store; the quota/rollover predicate runs on the
// entity because it depends on the per-document plan limit and today's date.
func (r *MongoVendorRepository) FindCandidates(ctx context.Context, subcategoryID, pincode string, excluded []string, now time.Time) ([]*entity.Vendor, error) {
	filter := bson.M{
		"isVerified":            true,
		"isActive":              true,
		"isSuspended":           false,
		"isBlocked":             false,
		"registrationStep":      entity.RegistrationCompleted,
		"selectedSubcategories": subcategoryID,
		"workPincodes":          pincode,
		"creditPlan.expiryDate": bson.M{"$gt": now},
	}
	if len(excluded) > 0 {
		filter["_id"] = bson.M{"$nin": excluded}
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var candidates []*entity.Vendor
	for cursor.Next(ctx) {
		var vendor entity.Vendor
		if err := cursor.Decode(&vendor); err != nil {
			continue
		}
		if vendor.UnderQuota(now) {
			candidates = append(candidates, &vendor)
		}
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return candidates, nil
}

// ConsumeQuota applies one lead offer to the vendor's daily counter. Two
// conditional updates cover the two cases; each matches only while its own
// precondition holds, so concurrent offers to the same vendor cannot lose an
// increment:
//
//  1. same-day: $inc the counter iff the reset date is still today
//  2. rollover: $set counter=1 iff the reset date is absent or before today
//
// If both miss, another caller moved the reset date between our attempts;
// retry the same-day increment once.
func (r *MongoVendorRepository) ConsumeQuota(ctx context.Context, vendorID string, now time.Time) error {
	startOfDay := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)

	for attempt := 0; attempt < 3; attempt++ {
		sameDay := bson.M{
			"_id": vendorID,
			"creditPlan.lastLeadResetDate": bson.M{"$gte": startOfDay},
		}
		result, err := r.collection.UpdateOne(ctx, sameDay, bson.M{
			"$inc": bson.M{"creditPlan.dailyLeadsCount": 1},
			"$set": bson.M{"updatedAt": now},
		})
		if err != nil {
			return fmt.Errorf("failed to increment daily leads: %w", err)
		}
		if result.MatchedCount > 0 {
			return nil
		}

		rollover := bson.M{
			"_id": vendorID,
			"$or": []bson.M{
				{"creditPlan.lastLeadResetDate": bson.M{"$lt": startOfDay}},
				{"creditPlan.lastLeadResetDate": bson.M{"$exists": false}},
				{"creditPlan.lastLeadResetDate": nil},
			},
		}
		result, err = r.collection.UpdateOne(ctx, rollover, bson.M{
			"$set": bson.M{
				"creditPlan.dailyLeadsCount":   1,
				"creditPlan.lastLeadResetDate": now,
				"updatedAt":                    now,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to reset daily leads: %w", err)
		}
		if result.MatchedCount > 0 {
			return nil
		}

		// Neither filter matched: either the vendor is gone, or a concurrent
		// rollover landed between the two updates. Distinguish before retrying.
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": vendorID})
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("no vendor found with id: %s", vendorID)
		}
	}

	return fmt.Errorf("quota update for vendor %s kept losing the rollover race", vendorID)
}
