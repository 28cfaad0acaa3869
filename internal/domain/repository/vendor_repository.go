package repository

import (
	"context"
	"time"

	"leadcall-service/internal/domain/entity"
)

// VendorRepository defines storage operations for vendors
type VendorRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Vendor, error)

	// FindCandidates returns vendors eligible for a lead: verified, not
	// suspended, registration completed, serving the subcategory and pincode,
	// credit plan unexpired, not excluded, and under today's quota.
	FindCandidates(ctx context.Context, subcategoryID, pincode string, excluded []string, now time.Time) ([]*entity.Vendor, error)

	// ConsumeQuota applies one lead offer to the vendor's daily counter,
	// resetting it to 1 on a calendar rollover. Atomic per vendor.
	ConsumeQuota(ctx context.Context, vendorID string, now time.Time) error
}
