package billing

import (
	"context"
	"encoding/json"
)

// Processor applies the business effect of one event type.
type Processor func(ctx context.Context, s *Service, data json.RawMessage) error

// processors is the dispatch table from Paddle event_type to processor.
// Event types missing here are acknowledged and ignored: Paddle adds new
// types over time, and treating them as failures would make it retry forever.
var processors = map[string]Processor{
	"subscription.created":       processSubscriptionCreated,
	"subscription.updated":       processSubscriptionUpdated,
	"subscription.canceled":      processSubscriptionCanceled,
	"subscription.paused":        processSubscriptionPaused,
	"subscription.resumed":       processSubscriptionResumed,
	"subscription.activated":     processSubscriptionActivated,
	"subscription.past_due":      processSubscriptionPastDue,
	"transaction.completed":      processTransactionCompleted,
	"transaction.payment_failed": processTransactionPaymentFailed,
	"transaction.refunded":       processTransactionRefunded,
}

// Process routes an event to its processor. handled=false means the event
// type is unknown and was deliberately skipped.
func (s *Service) Process(ctx context.Context, eventType string, data json.RawMessage) (handled bool, err error) {
	p, ok := processors[eventType]
	if !ok {
		return false, nil
	}
	return true, p(ctx, s, data)
}
