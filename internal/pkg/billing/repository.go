package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/rankpulse/rankpulse/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the billing pipeline.
// Atomically runs a function against a transactional copy of the repository
// so multi-table processor effects commit or roll back as one unit.
type Repository interface {
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint) error
	MarkWebhookFailed(id uint, processingError string) error

	GetActiveGateway(provider string) (*models.PaymentGateway, error)

	GetSubscriptionByID(id uint) (*models.Subscription, error)
	GetSubscriptionByGatewayID(gatewaySubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error
	SupersedeActiveSubscriptions(userID uint, keepGatewaySubscriptionID string) error

	GetTransactionByGatewayID(gatewayTransactionID string) (*models.Transaction, error)
	UpsertTransaction(txn *models.Transaction, payloadJSON string) error
	SaveTransaction(txn *models.Transaction) error

	GetPackageByPaddleRefs(productID, priceID string) (*models.Package, error)
	GetOrCreateUserProfile(userID uint) (*models.UserProfile, error)
	SaveUserProfile(profile *models.UserProfile) error

	Atomically(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Atomically(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// CreateWebhookEventIfNotExists inserts the event unless its event_id is
// already known. The unique index plus ON CONFLICT DO NOTHING makes the
// check-and-insert atomic under concurrent deliveries of the same event.
func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("event_id = ?", event.EventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":     true,
		"processed_at":  &now,
		"error_message": "",
	}).Error
}

// MarkWebhookFailed records the error and bumps retry_count; processed stays
// false so a provider redelivery attempts the event again.
func (r *gormRepository) MarkWebhookFailed(id uint, processingError string) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"error_message": processingError,
		"retry_count":   gorm.Expr("retry_count + 1"),
	}).Error
}

func (r *gormRepository) GetActiveGateway(provider string) (*models.PaymentGateway, error) {
	var gw models.PaymentGateway
	err := r.db.Where("provider = ? AND is_active = ?", provider, true).First(&gw).Error
	if err != nil {
		return nil, err
	}
	return &gw, nil
}

func (r *gormRepository) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByGatewayID(gatewaySubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("gateway_subscription_id = ?", gatewaySubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "gateway_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"package_id",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"canceled_at",
			"paused_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("gateway_subscription_id = ?", sub.GatewaySubscriptionID).First(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// SupersedeActiveSubscriptions cancels any other subscription the pipeline
// still manages for the user. One user, one live subscription.
func (r *gormRepository) SupersedeActiveSubscriptions(userID uint, keepGatewaySubscriptionID string) error {
	now := time.Now()
	return r.db.Model(&models.Subscription{}).
		Where("user_id = ? AND gateway_subscription_id <> ? AND status IN ?",
			userID, keepGatewaySubscriptionID,
			[]string{models.SubscriptionStatusActive, models.SubscriptionStatusPastDue, models.SubscriptionStatusPaused}).
		Updates(map[string]interface{}{
			"status":      models.SubscriptionStatusCancelled,
			"canceled_at": &now,
		}).Error
}

// GetTransactionByGatewayID resolves a Paddle transaction id to the internal
// transaction through the paddle_transactions link table.
func (r *gormRepository) GetTransactionByGatewayID(gatewayTransactionID string) (*models.Transaction, error) {
	var link models.PaddleTransaction
	if err := r.db.Where("gateway_transaction_id = ?", gatewayTransactionID).First(&link).Error; err != nil {
		return nil, err
	}
	var txn models.Transaction
	if err := r.db.First(&txn, link.TransactionID).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpsertTransaction writes the transaction row and its gateway shadow record.
// The internal UUID is assigned on first insert and never overwritten.
func (r *gormRepository) UpsertTransaction(txn *models.Transaction, payloadJSON string) error {
	if txn.UUID == "" {
		txn.UUID = uuid.NewString()
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "gateway_transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"subscription_id",
			"amount",
			"currency",
			"status",
			"updated_at",
		}),
	}).Create(txn).Error; err != nil {
		return err
	}
	if err := r.db.Where("gateway_transaction_id = ?", txn.GatewayTransactionID).First(txn).Error; err != nil {
		return err
	}

	link := &models.PaddleTransaction{
		TransactionID:        txn.ID,
		GatewayTransactionID: txn.GatewayTransactionID,
		PayloadJSON:          payloadJSON,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "gateway_transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"transaction_id",
			"payload_json",
			"updated_at",
		}),
	}).Create(link).Error
}

func (r *gormRepository) SaveTransaction(txn *models.Transaction) error {
	return r.db.Save(txn).Error
}

func (r *gormRepository) GetPackageByPaddleRefs(productID, priceID string) (*models.Package, error) {
	var pkg models.Package
	q := r.db.Where("is_active = ?", true)
	if priceID != "" {
		q = q.Where("paddle_price_id = ? OR paddle_product_id = ?", priceID, productID)
	} else {
		q = q.Where("paddle_product_id = ?", productID)
	}
	if err := q.First(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *gormRepository) GetOrCreateUserProfile(userID uint) (*models.UserProfile, error) {
	return models.GetOrCreateUserProfile(r.db, userID)
}

func (r *gormRepository) SaveUserProfile(profile *models.UserProfile) error {
	return r.db.Save(profile).Error
}
