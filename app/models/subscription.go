package models

import "time"

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPastDue   = "past_due"
	SubscriptionStatusPaused    = "paused"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription mirrors the Paddle-side subscription state for one user. A
// user holds at most one actively managed subscription; a newly created
// gateway subscription supersedes any prior active one.
type Subscription struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"not null;index" json:"user_id"`
	PackageID             *uint      `gorm:"index" json:"package_id,omitempty"`
	GatewaySubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"gateway_subscription_id"`
	Status                string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart    *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd     bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt            *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	PausedAt              *time.Time `gorm:"type:timestamp;default:null" json:"paused_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the subscription currently grants paid access.
func (s *Subscription) IsEntitling() bool {
	return s.Status == SubscriptionStatusActive
}
