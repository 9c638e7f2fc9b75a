package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProfile stores the billing-relevant slice of a user's account: the
// package they are entitled to and, for cancelled or past-due subscriptions,
// the date their paid access ends.
type UserProfile struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	UserID              uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	PackageID           *uint          `gorm:"index" json:"package_id,omitempty"`
	SubscriptionEndDate *time.Time     `gorm:"type:timestamp;default:null" json:"subscription_end_date,omitempty"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// GetOrCreateUserProfile returns existing profile data or creates an empty
// free-tier profile for the user.
func GetOrCreateUserProfile(db *gorm.DB, userID uint) (*UserProfile, error) {
	var profile UserProfile
	if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			profile = UserProfile{UserID: userID}
			if err := db.Create(&profile).Error; err != nil {
				return nil, err
			}
			return &profile, nil
		}
		return nil, err
	}
	return &profile, nil
}
