package models

import "time"

// PaddleTransaction links a Paddle transaction id to the internal Transaction
// row and keeps the gateway's native payload. Refund events carry only the
// Paddle-side id, so the refund processor resolves transactions through this
// table.
type PaddleTransaction struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	TransactionID        uint      `gorm:"not null;index" json:"transaction_id"`
	GatewayTransactionID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"gateway_transaction_id"`
	PayloadJSON          string    `gorm:"type:longtext" json:"payload_json"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
