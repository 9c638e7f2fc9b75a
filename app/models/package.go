package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Package is a purchasable plan. PaddleProductID/PaddlePriceID link it to the
// catalog entries configured in the Paddle dashboard.
type Package struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"type:varchar(100);not null" json:"name" validate:"required,min=1,max=100"`
	Slug            string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug" validate:"required,min=1,max=100"`
	PaddleProductID string    `gorm:"type:varchar(191);index" json:"paddle_product_id"`
	PaddlePriceID   string    `gorm:"type:varchar(191);index" json:"paddle_price_id"`
	PriceCents      int       `gorm:"not null;default:0" json:"price_cents" validate:"gte=0"`
	BillingInterval string    `gorm:"type:varchar(16);not null;default:'month'" json:"billing_interval" validate:"oneof=month year"`
	KeywordLimit    int       `gorm:"not null;default:0" json:"keyword_limit"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Package) Validate() error {
	v := validator.New()

	return v.Struct(p)
}
