package models

import "time"

// WebhookEvent stores every inbound gateway webhook keyed by the provider's
// event id, with processing state for idempotent delivery handling. Rows are
// never deleted.
type WebhookEvent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EventID      string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_id"`
	EventType    string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON  string     `gorm:"type:longtext;not null" json:"payload_json"`
	Processed    bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt  *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	RetryCount   int        `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
