package entity

import (
	"time"
)

// User is a requesting customer
type User struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	PhoneNumber string    `bson:"phoneNumber" json:"phoneNumber"`
	IsVerified  bool      `bson:"isVerified" json:"isVerified"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}
