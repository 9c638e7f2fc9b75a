package entitlements

import (
	"time"

	"github.com/rankpulse/rankpulse/app/models"
)

// HasPaidAccess reports whether a profile currently grants paid features.
// A profile without a package is free tier. A profile with a package but an
// elapsed subscription end date has lost access (cancelled or past due
// subscriptions keep the package until the paid period runs out).
func HasPaidAccess(profile *models.UserProfile, now time.Time) bool {
	if profile == nil || profile.PackageID == nil {
		return false
	}
	if profile.SubscriptionEndDate != nil && !now.Before(*profile.SubscriptionEndDate) {
		return false
	}
	return true
}

// EffectivePackageID returns the package the user may currently use, or nil
// for free tier.
func EffectivePackageID(profile *models.UserProfile, now time.Time) *uint {
	if !HasPaidAccess(profile, now) {
		return nil
	}
	return profile.PackageID
}
