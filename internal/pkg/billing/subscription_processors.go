package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rankpulse/rankpulse/app/models"
	"github.com/rankpulse/rankpulse/internal/pkg/alerts"
	"gorm.io/gorm"
)

// processSubscriptionCreated inserts (or re-applies) the subscription as the
// user's single managed subscription. Any prior live subscription for the
// same user is superseded in the same transaction.
func processSubscriptionCreated(ctx context.Context, s *Service, raw json.RawMessage) error {
	_ = ctx
	data, err := parseSubscriptionData(raw)
	if err != nil {
		return err
	}
	userID, err := data.CustomData.ParseUserID()
	if err != nil {
		return fmt.Errorf("subscription %s: %w", data.ID, err)
	}

	return s.repo.Atomically(func(repo Repository) error {
		if err := repo.SupersedeActiveSubscriptions(userID, data.ID); err != nil {
			return err
		}

		pkgID := resolvePackageID(repo, data)
		sub := &models.Subscription{
			UserID:                userID,
			PackageID:             pkgID,
			GatewaySubscriptionID: data.ID,
			Status:                mapGatewayStatus(data.Status),
		}
		applyBillingPeriod(sub, data)
		if err := repo.UpsertSubscription(sub); err != nil {
			return err
		}

		profile, err := repo.GetOrCreateUserProfile(userID)
		if err != nil {
			return err
		}
		profile.PackageID = pkgID
		profile.SubscriptionEndDate = nil
		return repo.SaveUserProfile(profile)
	})
}

// processSubscriptionUpdated refreshes period bounds and the plan reference.
func processSubscriptionUpdated(ctx context.Context, s *Service, raw json.RawMessage) error {
	_ = ctx
	data, err := parseSubscriptionData(raw)
	if err != nil {
		return err
	}

	return s.repo.Atomically(func(repo Repository) error {
		sub, err := repo.GetSubscriptionByGatewayID(data.ID)
		if err != nil {
			return subscriptionLookupError(data.ID, err)
		}

		applyBillingPeriod(sub, data)
		if pkgID := resolvePackageID(repo, data); pkgID != nil {
			sub.PackageID = pkgID
			profile, err := repo.GetOrCreateUserProfile(sub.UserID)
			if err != nil {
				return err
			}
			if sub.IsEntitling() {
				profile.PackageID = pkgID
				if err := repo.SaveUserProfile(profile); err != nil {
					return err
				}
			}
		}
		return repo.SaveSubscription(sub)
	})
}

// processSubscriptionCanceled distinguishes a scheduled end-of-period cancel
// (subscription stays active, flag set) from an immediate cancellation.
func processSubscriptionCanceled(ctx context.Context, s *Service, raw json.RawMessage) error {
	_ = ctx
	data, err := parseSubscriptionData(raw)
	if err != nil {
		return err
	}

	if data.ScheduledChange != nil && data.ScheduledChange.Action == "cancel" {
		sub, err := s.repo.GetSubscriptionByGatewayID(data.ID)
		if err != nil {
			return subscriptionLookupError(data.ID, err)
		}
		sub.CancelAtPeriodEnd = true
		return s.repo.SaveSubscription(sub)
	}

	return s.repo.Atomically(func(repo Repository) error {
		sub, err := repo.GetSubscriptionByGatewayID(data.ID)
		if err != nil {
			return subscriptionLookupError(data.ID, err)
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

		profile, err := repo.GetOrCreateUserProfile(sub.UserID)
		if err != nil {
			return err
		}
		profile.SubscriptionEndDate = accessEndDate(sub, now)
		return repo.SaveUserProfile(profile)
	})
}

func processSubscriptionPaused(ctx context.Context, s *Service, raw json.RawMessage) error {
	_ = ctx
	data, err := parseSubscriptionData(raw)
	if err != nil {
		return err
	}
	sub, err := s.repo.GetSubscriptionByGatewayID(data.ID)
	if err != nil {
		return subscriptionLookupError(data.ID, err)
	}

	now := time.Now()
	sub.Status = models.SubscriptionStatusPaused
	if sub.PausedAt == nil {
		sub.PausedAt = &now
	}
	return s.repo.SaveSubscription(sub)
}

func processSubscriptionResumed(ctx context.Context, s *Service, raw json.RawMessage) error {
	return reactivateSubscription(ctx, s, raw)
}

func processSubscriptionActivated(ctx context.Context, s *Service, raw json.RawMessage) error {
	return reactivateSubscription(ctx, s, raw)
}

func reactivateSubscription(_ context.Context, s *Service, raw json.RawMessage) error {
	data, err := parseSubscriptionData(raw)
	if err != nil {
		return err
	}
	return s.repo.Atomically(func(repo Repository) error {
		sub, err := repo.GetSubscriptionByGatewayID(data.ID)
		if err != nil {
			return subscriptionLookupError(data.ID, err)
		}

		sub.Status = models.SubscriptionStatusActive
		sub.PausedAt = nil
		applyBillingPeriod(sub, data)
		if err := repo.SaveSubscription(sub); err != nil {
			return err
		}

		// A subscription coming back to life re-opens access.
		profile, err := repo.GetOrCreateUserProfile(sub.UserID)
		if err != nil {
			return err
		}
		profile.SubscriptionEndDate = nil
		if profile.PackageID == nil {
			profile.PackageID = sub.PackageID
		}
		return repo.SaveUserProfile(profile)
	})
}

// processSubscriptionPastDue marks the subscription past due and ends the
// user's effective access date. The package reference stays on the profile;
// only the access window closes. Operators get a high-severity alert.
func processSubscriptionPastDue(ctx context.Context, s *Service, raw json.RawMessage) error {
	_ = ctx
	data, err := parseSubscriptionData(raw)
	if err != nil {
		return err
	}

	var userID uint
	err = s.repo.Atomically(func(repo Repository) error {
		sub, err := repo.GetSubscriptionByGatewayID(data.ID)
		if err != nil {
			return subscriptionLookupError(data.ID, err)
		}

		now := time.Now()
		sub.Status = models.SubscriptionStatusPastDue
		applyBillingPeriod(sub, data)
		if err := repo.SaveSubscription(sub); err != nil {
			return err
		}

		profile, err := repo.GetOrCreateUserProfile(sub.UserID)
		if err != nil {
			return err
		}
		profile.SubscriptionEndDate = accessEndDate(sub, now)
		userID = sub.UserID
		return repo.SaveUserProfile(profile)
	})
	if err != nil {
		return err
	}

	if nerr := s.notifier.Notify(alerts.SeverityHigh, "Subscription past due",
		fmt.Sprintf("Subscription %s (user %d) is past due; payment collection is failing.", data.ID, userID)); nerr != nil {
		log.Printf("past_due alert delivery failed: %v", nerr)
	}
	return nil
}

func mapGatewayStatus(status string) string {
	switch status {
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "paused":
		return models.SubscriptionStatusPaused
	case "canceled", "cancelled":
		return models.SubscriptionStatusCancelled
	default:
		return models.SubscriptionStatusActive
	}
}

func applyBillingPeriod(sub *models.Subscription, data *SubscriptionData) {
	if data.CurrentBillingPeriod == nil {
		return
	}
	if data.CurrentBillingPeriod.StartsAt != nil {
		sub.CurrentPeriodStart = data.CurrentBillingPeriod.StartsAt
	}
	if data.CurrentBillingPeriod.EndsAt != nil {
		sub.CurrentPeriodEnd = data.CurrentBillingPeriod.EndsAt
	}
}

// resolvePackageID maps the first subscription item to an internal package.
// Unmapped catalog entries are tolerated; the subscription still syncs.
func resolvePackageID(repo Repository, data *SubscriptionData) *uint {
	if len(data.Items) == 0 {
		return nil
	}
	price := data.Items[0].Price
	if price.ID == "" && price.ProductID == "" {
		return nil
	}
	pkg, err := repo.GetPackageByPaddleRefs(price.ProductID, price.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("package lookup for price %s/%s failed: %v", price.ProductID, price.ID, err)
		}
		return nil
	}
	return &pkg.ID
}

// accessEndDate is when the user's paid access effectively stops: the end of
// the already-paid period, or immediately when no period is known.
func accessEndDate(sub *models.Subscription, now time.Time) *time.Time {
	if sub.CurrentPeriodEnd != nil {
		return sub.CurrentPeriodEnd
	}
	return &now
}

func subscriptionLookupError(gatewayID string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("subscription %s not found", gatewayID)
	}
	return err
}
