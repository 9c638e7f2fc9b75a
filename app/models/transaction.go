package models

import "time"

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusRefunded  = "refunded"
)

// Transaction is one payment (or payment attempt) on a user's account.
// Amount is stored in major units (decimal), not gateway minor units.
type Transaction struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UUID                 string    `gorm:"type:char(36);not null;uniqueIndex" json:"uuid"`
	UserID               uint      `gorm:"not null;index" json:"user_id"`
	SubscriptionID       *uint     `gorm:"index" json:"subscription_id,omitempty"`
	GatewayTransactionID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"gateway_transaction_id"`
	Amount               float64   `gorm:"type:decimal(10,2);not null;default:0" json:"amount"`
	Currency             string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Status               string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
