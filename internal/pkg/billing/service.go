package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/rankpulse/rankpulse/app/models"
	"github.com/rankpulse/rankpulse/internal/pkg/alerts"
	"gorm.io/gorm"
)

// Service ties the webhook event store and the event processors together.
type Service struct {
	repo     Repository
	notifier alerts.Notifier
}

// NewService creates a billing service from an injected repository and
// notifier.
func NewService(repo Repository, notifier alerts.Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// NewServiceFromDB creates a billing service from a GORM DB handle with the
// default SMTP-backed notifier.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), alerts.NewMailNotifier())
}

// RecordEventIfNew persists the webhook event unless its id is already known.
// Returns whether this delivery is the first sighting plus the stored row,
// whose Processed flag decides if a duplicate can short-circuit.
func (s *Service) RecordEventIfNew(ctx context.Context, eventID, eventType, payloadJSON string) (bool, *models.WebhookEvent, error) {
	_ = ctx
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, nil, errors.New("event_id is required")
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return false, nil, errors.New("event_type is required")
	}

	event := &models.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		PayloadJSON: payloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkEventProcessed finalizes an event after successful (or intentionally
// skipped) processing. A processed event is never reprocessed.
func (s *Service) MarkEventProcessed(ctx context.Context, eventID uint) error {
	_ = ctx
	if eventID == 0 {
		return errors.New("webhook event id is required")
	}
	return s.repo.MarkWebhookProcessed(eventID)
}

// MarkEventFailed annotates an event with the processor error and leaves it
// unprocessed so a provider redelivery retries it.
func (s *Service) MarkEventFailed(ctx context.Context, eventID uint, processingErr error) error {
	_ = ctx
	if eventID == 0 {
		return errors.New("webhook event id is required")
	}
	msg := ""
	if processingErr != nil {
		msg = processingErr.Error()
	}
	return s.repo.MarkWebhookFailed(eventID, msg)
}
