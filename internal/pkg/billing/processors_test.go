package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rankpulse/rankpulse/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedPackage(t *testing.T, db *gorm.DB) *models.Package {
	t.Helper()
	pkg := &models.Package{
		Name:            "Pro",
		Slug:            "pro",
		PaddleProductID: "pro_01",
		PaddlePriceID:   "pri_01",
		PriceCents:      2900,
		IsActive:        true,
	}
	require.NoError(t, db.Create(pkg).Error)
	return pkg
}

func seedSubscription(t *testing.T, db *gorm.DB, userID uint, gatewayID string, pkgID *uint) *models.Subscription {
	t.Helper()
	end := time.Now().Add(20 * 24 * time.Hour).UTC().Truncate(time.Second)
	sub := &models.Subscription{
		UserID:                userID,
		PackageID:             pkgID,
		GatewaySubscriptionID: gatewayID,
		Status:                models.SubscriptionStatusActive,
		CurrentPeriodEnd:      &end,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func seedProfile(t *testing.T, db *gorm.DB, userID uint, pkgID *uint) *models.UserProfile {
	t.Helper()
	profile := &models.UserProfile{UserID: userID, PackageID: pkgID}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

func seedTransaction(t *testing.T, db *gorm.DB, userID uint, gatewayID string, amount float64, subID *uint) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		UUID:                 fmt.Sprintf("uuid-%s", gatewayID),
		UserID:               userID,
		SubscriptionID:       subID,
		GatewayTransactionID: gatewayID,
		Amount:               amount,
		Status:               models.TransactionStatusCompleted,
	}
	require.NoError(t, db.Create(txn).Error)
	require.NoError(t, db.Create(&models.PaddleTransaction{
		TransactionID:        txn.ID,
		GatewayTransactionID: gatewayID,
		PayloadJSON:          "{}",
	}).Error)
	return txn
}

func process(t *testing.T, svc *Service, eventType, data string) error {
	t.Helper()
	handled, err := svc.Process(context.Background(), eventType, json.RawMessage(data))
	require.True(t, handled, "expected %s to be a known event type", eventType)
	return err
}

func TestProcessSubscriptionCreated(t *testing.T) {
	svc, db, _ := newTestService(t)
	pkg := seedPackage(t, db)

	data := `{
		"id": "sub_new",
		"status": "active",
		"custom_data": {"user_id": "42"},
		"current_billing_period": {"starts_at": "2026-08-01T00:00:00Z", "ends_at": "2026-09-01T00:00:00Z"},
		"items": [{"price": {"id": "pri_01", "product_id": "pro_01"}}]
	}`
	require.NoError(t, process(t, svc, "subscription.created", data))

	var sub models.Subscription
	require.NoError(t, db.Where("gateway_subscription_id = ?", "sub_new").First(&sub).Error)
	assert.Equal(t, uint(42), sub.UserID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.PackageID)
	assert.Equal(t, pkg.ID, *sub.PackageID)
	require.NotNil(t, sub.CurrentPeriodEnd)

	var profile models.UserProfile
	require.NoError(t, db.Where("user_id = ?", 42).First(&profile).Error)
	require.NotNil(t, profile.PackageID)
	assert.Equal(t, pkg.ID, *profile.PackageID)
	assert.Nil(t, profile.SubscriptionEndDate)
}

func TestProcessSubscriptionCreated_SupersedesPriorActive(t *testing.T) {
	svc, db, _ := newTestService(t)
	old := seedSubscription(t, db, 42, "sub_old", nil)

	data := `{"id": "sub_new", "status": "active", "custom_data": {"user_id": "42"}}`
	require.NoError(t, process(t, svc, "subscription.created", data))

	require.NoError(t, db.First(old, old.ID).Error)
	assert.Equal(t, models.SubscriptionStatusCancelled, old.Status)
	assert.NotNil(t, old.CanceledAt)

	var live int64
	require.NoError(t, db.Model(&models.Subscription{}).
		Where("user_id = ? AND status = ?", 42, models.SubscriptionStatusActive).
		Count(&live).Error)
	assert.Equal(t, int64(1), live, "one user, one live subscription")
}

func TestProcessSubscriptionCreated_MissingUserID(t *testing.T) {
	svc, db, _ := newTestService(t)

	err := process(t, svc, "subscription.created", `{"id": "sub_new", "status": "active"}`)
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessSubscriptionUpdated_RefreshesPeriod(t *testing.T) {
	svc, db, _ := newTestService(t)
	sub := seedSubscription(t, db, 7, "sub_1", nil)
	seedProfile(t, db, 7, nil)

	data := `{
		"id": "sub_1",
		"status": "active",
		"current_billing_period": {"starts_at": "2026-09-01T00:00:00Z", "ends_at": "2026-10-01T00:00:00Z"}
	}`
	require.NoError(t, process(t, svc, "subscription.updated", data))

	require.NoError(t, db.First(sub, sub.ID).Error)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, 2026, sub.CurrentPeriodEnd.UTC().Year())
	assert.Equal(t, time.October, sub.CurrentPeriodEnd.UTC().Month())
}

func TestProcessSubscriptionUpdated_UnknownSubscription(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := process(t, svc, "subscription.updated", `{"id": "sub_missing"}`)
	require.Error(t, err)
}

func TestProcessSubscriptionCanceled_ScheduledKeepsActive(t *testing.T) {
	svc, db, _ := newTestService(t)
	sub := seedSubscription(t, db, 7, "sub_1", nil)
	profile := seedProfile(t, db, 7, nil)

	data := `{"id": "sub_1", "status": "active", "scheduled_change": {"action": "cancel"}}`
	require.NoError(t, process(t, svc, "subscription.canceled", data))

	require.NoError(t, db.First(sub, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Nil(t, sub.CanceledAt)

	require.NoError(t, db.First(profile, profile.ID).Error)
	assert.Nil(t, profile.SubscriptionEndDate, "scheduled cancel must not end access early")
}

func TestProcessSubscriptionCanceled_ImmediateEndsAccess(t *testing.T) {
	svc, db, _ := newTestService(t)
	sub := seedSubscription(t, db, 7, "sub_1", nil)
	profile := seedProfile(t, db, 7, nil)

	data := `{"id": "sub_1", "status": "canceled"}`
	require.NoError(t, process(t, svc, "subscription.canceled", data))

	require.NoError(t, db.First(sub, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	assert.False(t, sub.CancelAtPeriodEnd)
	assert.NotNil(t, sub.CanceledAt)

	require.NoError(t, db.First(profile, profile.ID).Error)
	require.NotNil(t, profile.SubscriptionEndDate)
	assert.WithinDuration(t, *sub.CurrentPeriodEnd, *profile.SubscriptionEndDate, time.Second,
		"access runs to the end of the already-paid period")
}

func TestProcessSubscriptionPausedAndResumed(t *testing.T) {
	svc, db, _ := newTestService(t)
	sub := seedSubscription(t, db, 7, "sub_1", nil)
	seedProfile(t, db, 7, nil)

	require.NoError(t, process(t, svc, "subscription.paused", `{"id": "sub_1"}`))
	require.NoError(t, db.First(sub, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusPaused, sub.Status)
	assert.NotNil(t, sub.PausedAt)

	require.NoError(t, process(t, svc, "subscription.resumed", `{"id": "sub_1"}`))
	require.NoError(t, db.First(sub, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Nil(t, sub.PausedAt)
}

func TestProcessSubscriptionPastDue(t *testing.T) {
	svc, db, notifier := newTestService(t)
	pkg := seedPackage(t, db)
	sub := seedSubscription(t, db, 7, "sub_1", &pkg.ID)
	profile := seedProfile(t, db, 7, &pkg.ID)

	require.NoError(t, process(t, svc, "subscription.past_due", `{"id": "sub_1"}`))

	require.NoError(t, db.First(sub, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)

	require.NoError(t, db.First(profile, profile.ID).Error)
	require.NotNil(t, profile.PackageID, "past_due keeps the package reference")
	require.NotNil(t, profile.SubscriptionEndDate, "but ends the effective access window")

	assert.Equal(t, 1, notifier.count(), "operators must hear about failing collection")
}

func TestProcessTransactionCompleted(t *testing.T) {
	svc, db, _ := newTestService(t)
	sub := seedSubscription(t, db, 42, "sub_1", nil)

	data := `{
		"id": "txn_1",
		"subscription_id": "sub_1",
		"status": "completed",
		"custom_data": {"user_id": "42"},
		"details": {"totals": {"total": "2900", "currency_code": "EUR"}}
	}`
	require.NoError(t, process(t, svc, "transaction.completed", data))

	var txn models.Transaction
	require.NoError(t, db.Where("gateway_transaction_id = ?", "txn_1").First(&txn).Error)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.InDelta(t, 29.00, txn.Amount, 0.001)
	assert.NotEmpty(t, txn.UUID)
	require.NotNil(t, txn.SubscriptionID)
	assert.Equal(t, sub.ID, *txn.SubscriptionID)

	var link models.PaddleTransaction
	require.NoError(t, db.Where("gateway_transaction_id = ?", "txn_1").First(&link).Error)
	assert.Equal(t, txn.ID, link.TransactionID)

	// Redelivery converges on the same single row.
	require.NoError(t, process(t, svc, "transaction.completed", data))
	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProcessTransactionCompleted_UserFromSubscription(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedSubscription(t, db, 42, "sub_1", nil)

	// No custom_data; the user is resolved through the subscription link.
	data := `{
		"id": "txn_2",
		"subscription_id": "sub_1",
		"details": {"totals": {"total": "2900"}}
	}`
	require.NoError(t, process(t, svc, "transaction.completed", data))

	var txn models.Transaction
	require.NoError(t, db.Where("gateway_transaction_id = ?", "txn_2").First(&txn).Error)
	assert.Equal(t, uint(42), txn.UserID)
}

func TestProcessTransactionPaymentFailed(t *testing.T) {
	svc, db, _ := newTestService(t)
	pkg := seedPackage(t, db)
	profile := seedProfile(t, db, 42, &pkg.ID)

	data := `{
		"id": "txn_3",
		"custom_data": {"user_id": "42"},
		"details": {"totals": {"total": "2900"}}
	}`
	require.NoError(t, process(t, svc, "transaction.payment_failed", data))

	var txn models.Transaction
	require.NoError(t, db.Where("gateway_transaction_id = ?", "txn_3").First(&txn).Error)
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)

	// No entitlement change; past_due carries that signal.
	require.NoError(t, db.First(profile, profile.ID).Error)
	assert.NotNil(t, profile.PackageID)
	assert.Nil(t, profile.SubscriptionEndDate)
}

func TestProcessTransactionRefunded_FullRefundCascades(t *testing.T) {
	svc, db, _ := newTestService(t)
	pkg := seedPackage(t, db)
	sub := seedSubscription(t, db, 42, "sub_1", &pkg.ID)
	profile := seedProfile(t, db, 42, &pkg.ID)
	txn := seedTransaction(t, db, 42, "txn_1", 100.00, &sub.ID)

	data := `{"transaction_id": "txn_1", "adjustment": {"action": "refund", "total": "10000"}}`
	require.NoError(t, process(t, svc, "transaction.refunded", data))

	require.NoError(t, db.First(txn, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusRefunded, txn.Status)

	require.NoError(t, db.First(sub, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)

	require.NoError(t, db.First(profile, profile.ID).Error)
	assert.Nil(t, profile.PackageID, "full refund revokes the package")
}

func TestProcessTransactionRefunded_OverRefundStillCascades(t *testing.T) {
	svc, db, _ := newTestService(t)
	pkg := seedPackage(t, db)
	sub := seedSubscription(t, db, 42, "sub_1", &pkg.ID)
	profile := seedProfile(t, db, 42, &pkg.ID)
	seedTransaction(t, db, 42, "txn_1", 100.00, &sub.ID)

	data := `{"transaction_id": "txn_1", "adjustment": {"action": "refund", "total": "10050"}}`
	require.NoError(t, process(t, svc, "transaction.refunded", data))

	require.NoError(t, db.First(profile, profile.ID).Error)
	assert.Nil(t, profile.PackageID)
}

func TestProcessTransactionRefunded_PartialDoesNotCascade(t *testing.T) {
	svc, db, _ := newTestService(t)
	pkg := seedPackage(t, db)
	sub := seedSubscription(t, db, 42, "sub_1", &pkg.ID)
	profile := seedProfile(t, db, 42, &pkg.ID)
	txn := seedTransaction(t, db, 42, "txn_1", 100.00, &sub.ID)

	data := `{"transaction_id": "txn_1", "adjustment": {"action": "refund", "total": "5000"}}`
	require.NoError(t, process(t, svc, "transaction.refunded", data))

	require.NoError(t, db.First(txn, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusRefunded, txn.Status)

	require.NoError(t, db.First(sub, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status, "partial refund leaves the subscription alone")

	require.NoError(t, db.First(profile, profile.ID).Error)
	assert.NotNil(t, profile.PackageID)
}

func TestProcessTransactionRefunded_Idempotent(t *testing.T) {
	svc, db, _ := newTestService(t)
	pkg := seedPackage(t, db)
	sub := seedSubscription(t, db, 42, "sub_1", &pkg.ID)
	profile := seedProfile(t, db, 42, &pkg.ID)
	seedTransaction(t, db, 42, "txn_1", 100.00, &sub.ID)

	data := `{"transaction_id": "txn_1", "adjustment": {"action": "refund", "total": "10000"}}`
	require.NoError(t, process(t, svc, "transaction.refunded", data))
	require.NoError(t, process(t, svc, "transaction.refunded", data))

	require.NoError(t, db.First(sub, sub.ID).Error)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	require.NoError(t, db.First(profile, profile.ID).Error)
	assert.Nil(t, profile.PackageID)
}

func TestProcessTransactionRefunded_UnknownTransaction(t *testing.T) {
	svc, _, _ := newTestService(t)
	data := `{"transaction_id": "txn_missing", "adjustment": {"total": "10000"}}`
	err := process(t, svc, "transaction.refunded", data)
	require.Error(t, err)
}

func TestProcess_UnknownEventTypeIsSkipped(t *testing.T) {
	svc, _, _ := newTestService(t)
	handled, err := svc.Process(context.Background(), "something.new", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.False(t, handled)
}
