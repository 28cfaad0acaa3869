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

// MongoBookingRepository implements the BookingRepository interface
type MongoBookingRepository struct {
	collection *mongo.Collection
}

// NewMongoBookingRepository creates a new MongoDB booking repository
func NewMongoBookingRepository(db *mongo.Database) repository.BookingRepository {
	collection := db.Collection("bookings")

	ctx := context.Background()

	bookingIDIndex := mongo.IndexModel{
		Keys:    bson.M{"bookingID": 1},
		Options: options.Index().SetUnique(true),
	}

	userIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	}

	vendorIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "vendor", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	}

	statusIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "scheduledDate", Value: 1},
		},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		bookingIDIndex,
		userIndex,
		vendorIndex,
		statusIndex,
	})

	return &MongoBookingRepository{
		collection: collection,
	}
}

// keyFilter matches a booking by internal id or human-facing bookingID
func keyFilter(key string) bson.M {
	return bson.M{
		"$or": []bson.M{
			{"_id": key},
			{"bookingID": key},
		},
	}
}

// withKey merges the key filter into additional filter conditions
func withKey(key string, extra bson.M) bson.M {
	filter := keyFilter(key)
	for k, v := range extra {
		filter[k] = v
	}
	return filter
}

// Create inserts a new booking
func (r *MongoBookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if booking.Payment.Status == "" {
		booking.Payment.Status = entity.PaymentStatusPending
	}

	_, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// FindByKey finds a booking by internal id or bookingID
func (r *MongoBookingRepository) FindByKey(ctx context.Context, key string) (*entity.Booking, error) {
	var booking entity.Booking
	err := r.collection.FindOne(ctx, keyFilter(key)).Decode(&booking)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

// CountByUser counts all bookings ever created by a user
func (r *MongoBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"user": userID})
}

// ListByUser returns a user's bookings, most recent first
func (r *MongoBookingRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Booking, error) {
	return r.list(ctx, bson.M{"user": userID})
}

// ListByVendor returns a vendor's bookings, most recent first
func (r *MongoBookingRepository) ListByVendor(ctx context.Context, vendorID string) ([]*entity.Booking, error) {
	return r.list(ctx, bson.M{"vendor": vendorID})
}

func (r *MongoBookingRepository) list(ctx context.Context, filter bson.M) ([]*entity.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bookings []*entity.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// findOneAndUpdate runs a conditional update and returns the post-image.
// A filter that matches nothing becomes repository.ErrNoMatch.
func (r *MongoBookingRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*entity.Booking, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking entity.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, repository.ErrNoMatch
		}
		return nil, err
	}
	return &booking, nil
}

// AcceptLead atomically binds a vendor to a still-unassigned lead. The
// status precondition lives in the filter, so of N concurrent acceptors
// exactly one observes a match; everyone else gets ErrNoMatch.
func (r *MongoBookingRepository) AcceptLead(ctx context.Context, key, vendorID, startOTP, completionOTP string) (*entity.Booking, error) {
	filter := withKey(key, bson.M{"status": entity.StatusPendingAcceptance})
	update := bson.M{
		"$set": bson.M{
			"status":            entity.StatusPending,
			"vendor":            vendorID,
			"otp.startOTP":      startOTP,
			"otp.completionOTP": completionOTP,
			"updatedAt":         time.Now(),
		},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// AddRejectedVendor records an explicit decline; the same vendor leaves the
// deferred set so the two stay mutually exclusive.
func (r *MongoBookingRepository) AddRejectedVendor(ctx context.Context, key, vendorID string) (*entity.Booking, error) {
	filter := withKey(key, bson.M{"status": entity.StatusPendingAcceptance})
	update := bson.M{
		"$addToSet": bson.M{"rejectedVendors": vendorID},
		"$pull":     bson.M{"laterVendors": vendorID},
		"$set":      bson.M{"updatedAt": time.Now()},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// AddLaterVendor records a deferral; the vendor leaves the rejected set.
func (r *MongoBookingRepository) AddLaterVendor(ctx context.Context, key, vendorID string) (*entity.Booking, error) {
	filter := withKey(key, bson.M{"status": entity.StatusPendingAcceptance})
	update := bson.M{
		"$addToSet": bson.M{"laterVendors": vendorID},
		"$pull":     bson.M{"rejectedVendors": vendorID},
		"$set":      bson.M{"updatedAt": time.Now()},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// MarkOnTheWay moves pending -> on_the_way for the assigned vendor
func (r *MongoBookingRepository) MarkOnTheWay(ctx context.Context, key, vendorID string) (*entity.Booking, error) {
	filter := withKey(key, bson.M{
		"status": entity.StatusPending,
		"vendor": vendorID,
	})
	update := bson.M{
		"$set": bson.M{
			"status":    entity.StatusOnTheWay,
			"updatedAt": time.Now(),
		},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// MarkArrived moves on_the_way -> arrived, stamps the arrival time once and
// folds the flat travel charge into the pricing snapshot.
func (r *MongoBookingRepository) MarkArrived(ctx context.Context, key, vendorID string, at time.Time, travelCharge float64) (*entity.Booking, error) {
	filter := withKey(key, bson.M{
		"status": entity.StatusOnTheWay,
		"vendor": vendorID,
	})
	update := bson.M{
		"$set": bson.M{
			"status":               entity.StatusArrived,
			"vendorArrivedAt":      at,
			"pricing.travelCharge": travelCharge,
			"updatedAt":            time.Now(),
		},
		"$inc": bson.M{"pricing.totalPrice": travelCharge},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// StartWork moves arrived -> ongoing when the submitted start code matches.
// A wrong code simply fails the filter and leaves the document untouched.
func (r *MongoBookingRepository) StartWork(ctx context.Context, key, vendorID, code string, at time.Time) (*entity.Booking, error) {
	filter := withKey(key, bson.M{
		"status":       entity.StatusArrived,
		"vendor":       vendorID,
		"otp.startOTP": code,
	})
	update := bson.M{
		"$set": bson.M{
			"status":        entity.StatusOngoing,
			"workStartedAt": at,
			"updatedAt":     time.Now(),
		},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// SetCompletionCode refreshes the completion code while work is ongoing
func (r *MongoBookingRepository) SetCompletionCode(ctx context.Context, key, vendorID, code string) (*entity.Booking, error) {
	filter := withKey(key, bson.M{
		"status": entity.StatusOngoing,
		"vendor": vendorID,
	})
	update := bson.M{
		"$set": bson.M{
			"otp.completionOTP": code,
			"updatedAt":         time.Now(),
		},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// CompleteWork moves ongoing -> completed when the completion code matches,
// stamping the completion time and recording the payment method.
func (r *MongoBookingRepository) CompleteWork(ctx context.Context, key, vendorID, code, paymentMethod string, at time.Time) (*entity.Booking, error) {
	filter := withKey(key, bson.M{
		"status":            entity.StatusOngoing,
		"vendor":            vendorID,
		"otp.completionOTP": code,
	})
	update := bson.M{
		"$set": bson.M{
			"status":          entity.StatusCompleted,
			"workCompletedAt": at,
			"payment.method":  paymentMethod,
			"payment.status":  entity.PaymentStatusCompleted,
			"updatedAt":       time.Now(),
		},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// Cancel moves any cancellable state -> cancelled for the requesting user
func (r *MongoBookingRepository) Cancel(ctx context.Context, key, userID string, record entity.Cancellation) (*entity.Booking, error) {
	filter := withKey(key, bson.M{
		"user":   userID,
		"status": bson.M{"$in": entity.CancellableStatuses},
	})
	update := bson.M{
		"$set": bson.M{
			"status":       entity.StatusCancelled,
			"cancellation": record,
			"updatedAt":    time.Now(),
		},
		"$inc": bson.M{"cancelCount": 1},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}

// Reschedule replaces the scheduled date/time while the reschedule counter
// is still below the limit; the bound lives in the filter so concurrent
// reschedules cannot exceed it.
func (r *MongoBookingRepository) Reschedule(ctx context.Context, key, userID string, date time.Time, timeStr string, limit int) (*entity.Booking, error) {
	filter := withKey(key, bson.M{
		"user":            userID,
		"status":          bson.M{"$in": entity.ReschedulableStatuses},
		"rescheduleCount": bson.M{"$lt": limit},
	})
	update := bson.M{
		"$set": bson.M{
			"scheduledDate": date,
			"scheduledTime": timeStr,
			"updatedAt":     time.Now(),
		},
		"$inc": bson.M{"rescheduleCount": 1},
	}
	return r.findOneAndUpdate(ctx, filter, update)
}
