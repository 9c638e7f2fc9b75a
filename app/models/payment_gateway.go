package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const PaymentGatewayPaddle = "paddle"

// PaymentGateway is the persisted configuration for one payment provider.
// Credentials live in the database (not process environment) so the webhook
// secret can be rotated at runtime without a deploy.
type PaymentGateway struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Provider           string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"provider"`
	DisplayName        string    `gorm:"type:varchar(100)" json:"display_name"`
	IsActive           bool      `gorm:"default:false;index" json:"is_active"`
	APICredentialsJSON string    `gorm:"type:text" json:"-"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GatewayCredentials is the decoded shape of APICredentialsJSON.
type GatewayCredentials struct {
	APIKey        string `json:"api_key"`
	WebhookSecret string `json:"webhook_secret"`
}

// Credentials decodes the stored credential blob.
func (g *PaymentGateway) Credentials() (*GatewayCredentials, error) {
	raw := strings.TrimSpace(g.APICredentialsJSON)
	if raw == "" {
		return nil, errors.New("payment gateway has no stored credentials")
	}
	var creds GatewayCredentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}
