package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rankpulse/rankpulse/app/models"
	"gorm.io/gorm"
)

func processTransactionCompleted(ctx context.Context, s *Service, raw json.RawMessage) error {
	return recordTransaction(ctx, s, raw, models.TransactionStatusCompleted)
}

// processTransactionPaymentFailed records the failed attempt. Entitlement is
// untouched; subscription.past_due carries that signal.
func processTransactionPaymentFailed(ctx context.Context, s *Service, raw json.RawMessage) error {
	return recordTransaction(ctx, s, raw, models.TransactionStatusFailed)
}

func recordTransaction(_ context.Context, s *Service, raw json.RawMessage, status string) error {
	data, err := parseTransactionData(raw)
	if err != nil {
		return err
	}
	amount, err := MinorUnitsToAmount(data.TotalMinorUnits())
	if err != nil {
		return fmt.Errorf("transaction %s: %w", data.ID, err)
	}

	return s.repo.Atomically(func(repo Repository) error {
		var subID *uint
		userID, userErr := data.CustomData.ParseUserID()

		if data.SubscriptionID != "" {
			sub, err := repo.GetSubscriptionByGatewayID(data.SubscriptionID)
			if err == nil {
				subID = &sub.ID
				if userErr != nil {
					userID, userErr = sub.UserID, nil
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}
		if userErr != nil {
			return fmt.Errorf("transaction %s has no resolvable user: %w", data.ID, userErr)
		}

		txn := &models.Transaction{
			UserID:               userID,
			SubscriptionID:       subID,
			GatewayTransactionID: data.ID,
			Amount:               amount,
			Status:               status,
		}
		if c := data.Currency(); c != "" {
			txn.Currency = c
		}
		return repo.UpsertTransaction(txn, string(raw))
	})
}

// processTransactionRefunded marks the linked transaction refunded. A full
// refund (refunded amount >= original amount, tolerating over-refunds)
// additionally cancels the associated subscription and revokes the user's
// package — all in one database transaction.
func processTransactionRefunded(ctx context.Context, s *Service, raw json.RawMessage) error {
	_ = ctx
	data, err := parseTransactionRefundedData(raw)
	if err != nil {
		return err
	}
	refundCents, err := ParseMinorUnits(data.Adjustment.Total)
	if err != nil {
		return fmt.Errorf("refund for transaction %s: %w", data.TransactionID, err)
	}

	return s.repo.Atomically(func(repo Repository) error {
		txn, err := repo.GetTransactionByGatewayID(data.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("transaction %s not found", data.TransactionID)
			}
			return err
		}

		txn.Status = models.TransactionStatusRefunded
		if err := repo.SaveTransaction(txn); err != nil {
			return err
		}

		txnCents := int64(math.Round(txn.Amount * 100))
		if refundCents < txnCents || txn.SubscriptionID == nil {
			return nil
		}

		sub, err := repo.GetSubscriptionByID(*txn.SubscriptionID)
		if err != nil {
			return err
		}
		now := time.Now()
		sub.Status = models.SubscriptionStatusCancelled
		sub.CancelAtPeriodEnd = false
		if sub.CanceledAt == nil {
			sub.CanceledAt = &now
		}
		if err := repo.SaveSubscription(sub); err != nil {
			return err
		}

		profile, err := repo.GetOrCreateUserProfile(txn.UserID)
		if err != nil {
			return err
		}
		profile.PackageID = nil
		return repo.SaveUserProfile(profile)
	})
}
