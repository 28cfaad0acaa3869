package repository

import (
	"context"
	"fmt"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoUserRepository implements the UserRepository interface
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoDB user repository
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &MongoUserRepository{
		collection: db.Collection("users"),
	}
}

// FindByID finds a user by internal id
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// MarkVerified flags the user as verified after their first-booking code check
func (r *MongoUserRepository) MarkVerified(ctx context.Context, id string) error {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"isVerified": true,
			"updatedAt":  time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("no user found with id: %s", id)
	}
	return nil
}
