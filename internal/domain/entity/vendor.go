package entity

import (
	"time"

	"leadcall-service/pkg/utils"
)

// Vendor registration steps; only COMPLETED vendors can be offered leads
const (
	RegistrationCompleted = "COMPLETED"
)

// CreditPlan is the vendor's subscription tier: how many leads they may be
// offered per day and until when.
type CreditPlan struct {
	PlanID            string     `bson:"planId,omitempty" json:"planId,omitempty"`
	ExpiryDate        time.Time  `bson:"expiryDate" json:"expiryDate"`
	DailyLimit        int        `bson:"dailyLimit" json:"dailyLimit"`
	DailyLeadsCount   int        `bson:"dailyLeadsCount" json:"dailyLeadsCount"`
	LastLeadResetDate *time.Time `bson:"lastLeadResetDate,omitempty" json:"lastLeadResetDate,omitempty"`
}

// Vendor is a service provider who competes for leads
type Vendor struct {
	ID                    string     `bson:"_id,omitempty" json:"id"`
	VendorID              string     `bson:"vendorID" json:"vendorID"`
	Name                  string     `bson:"name" json:"name"`
	PhoneNumber           string     `bson:"phoneNumber" json:"phoneNumber"`
	WorkPincodes          []string   `bson:"workPincodes" json:"workPincodes"`
	SelectedSubcategories []string   `bson:"selectedSubcategories" json:"selectedSubcategories"`
	RegistrationStep      string     `bson:"registrationStep" json:"registrationStep"`
	CreditPlan            CreditPlan `bson:"creditPlan" json:"creditPlan"`
	IsVerified            bool       `bson:"isVerified" json:"isVerified"`
	IsActive              bool       `bson:"isActive" json:"isActive"`
	IsSuspended           bool       `bson:"isSuspended" json:"isSuspended"`
	IsBlocked             bool       `bson:"isBlocked" json:"isBlocked"`
	DeviceToken           string     `bson:"deviceToken,omitempty" json:"-"`
	CreatedAt             time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// UnderQuota reports whether the vendor can be offered one more lead today.
// A reset date on a previous calendar day means the counter has logically
// rolled over, so only the plan limit itself matters.
func (v *Vendor) UnderQuota(now time.Time) bool {
	if v.CreditPlan.DailyLimit <= 0 {
		return false
	}
	if v.CreditPlan.LastLeadResetDate == nil {
		return true
	}
	if !utils.SameCalendarDay(*v.CreditPlan.LastLeadResetDate, now) {
		return true
	}
	return v.CreditPlan.DailyLeadsCount < v.CreditPlan.DailyLimit
}

// PlanActive reports whether the credit plan is still valid at now
func (v *Vendor) PlanActive(now time.Time) bool {
	return v.CreditPlan.ExpiryDate.After(now)
}
