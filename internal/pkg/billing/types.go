package billing

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Envelope is the outer shape every Paddle webhook shares. Data stays raw
// until a processor decodes it into its event-specific type.
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

var (
	ErrMissingEventID   = errors.New("webhook payload missing event_id")
	ErrMissingEventType = errors.New("webhook payload missing event_type")
)

// ParseEnvelope decodes the raw webhook body. Malformed JSON or a missing
// event_id/event_type is a validation failure the endpoint answers with 400.
func ParseEnvelope(rawBody []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.EventID) == "" {
		return nil, ErrMissingEventID
	}
	if strings.TrimSpace(env.EventType) == "" {
		return nil, ErrMissingEventType
	}
	return &env, nil
}

// CustomData carries the passthrough values we attach at checkout time.
type CustomData struct {
	UserID string `json:"user_id"`
}

// ParseUserID converts the passthrough user reference to a local user id.
func (cd CustomData) ParseUserID() (uint, error) {
	raw := strings.TrimSpace(cd.UserID)
	if raw == "" {
		return 0, errors.New("custom_data missing user_id")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("custom_data has invalid user_id")
	}
	return uint(id), nil
}

// ScheduledChange describes a pending change Paddle will apply at the end of
// the current billing period.
type ScheduledChange struct {
	Action      string     `json:"action"`
	EffectiveAt *time.Time `json:"effective_at"`
}

// SubscriptionItem is one line of a subscription; the price links back to the
// Paddle catalog entries our packages reference.
type SubscriptionItem struct {
	Price struct {
		ID        string `json:"id"`
		ProductID string `json:"product_id"`
	} `json:"price"`
}

// SubscriptionData is the payload of all subscription.* events.
type SubscriptionData struct {
	ID                   string           `json:"id" validate:"required"`
	Status               string           `json:"status"`
	CustomData           CustomData       `json:"custom_data"`
	CurrentBillingPeriod *struct {
		StartsAt *time.Time `json:"starts_at"`
		EndsAt   *time.Time `json:"ends_at"`
	} `json:"current_billing_period"`
	ScheduledChange *ScheduledChange   `json:"scheduled_change"`
	Items           []SubscriptionItem `json:"items"`
}

// TransactionData is the payload of transaction.completed and
// transaction.payment_failed events.
type TransactionData struct {
	ID             string     `json:"id" validate:"required"`
	SubscriptionID string     `json:"subscription_id"`
	Status         string     `json:"status"`
	CustomData     CustomData `json:"custom_data"`
	CurrencyCode   string     `json:"currency_code"`
	Details        struct {
		Totals struct {
			Total        string `json:"total"`
			GrandTotal   string `json:"grand_total"`
			CurrencyCode string `json:"currency_code"`
		} `json:"totals"`
	} `json:"details"`
}

// TransactionRefundedData is the payload of transaction.refunded events. It
// carries only the gateway-side transaction id; the processor resolves the
// internal transaction through the paddle_transactions link table.
type TransactionRefundedData struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	Adjustment    struct {
		ID           string `json:"id"`
		Action       string `json:"action"`
		Total        string `json:"total"`
		CurrencyCode string `json:"currency_code"`
	} `json:"adjustment"`
}

func parseSubscriptionData(raw json.RawMessage) (*SubscriptionData, error) {
	var data SubscriptionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if err := validate.Struct(&data); err != nil {
		return nil, errors.New("subscription event missing subscription id")
	}
	return &data, nil
}

func parseTransactionData(raw json.RawMessage) (*TransactionData, error) {
	var data TransactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if err := validate.Struct(&data); err != nil {
		return nil, errors.New("transaction event missing transaction id")
	}
	return &data, nil
}

func parseTransactionRefundedData(raw json.RawMessage) (*TransactionRefundedData, error) {
	var data TransactionRefundedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if err := validate.Struct(&data); err != nil {
		return nil, errors.New("refund event missing transaction id")
	}
	return &data, nil
}

// ParseMinorUnits parses a gateway integer minor-units string ("10000").
func ParseMinorUnits(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, errors.New("amount is empty")
	}
	cents, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("amount is not integer minor units: " + raw)
	}
	return cents, nil
}

// MinorUnitsToAmount converts a gateway integer minor-units string ("10000")
// to a major-units decimal amount (100.00). Conversion happens exactly once,
// at the processor boundary.
func MinorUnitsToAmount(s string) (float64, error) {
	cents, err := ParseMinorUnits(s)
	if err != nil {
		return 0, err
	}
	return float64(cents) / 100, nil
}

// TotalMinorUnits picks the transaction total, preferring grand_total when
// both are present.
func (d *TransactionData) TotalMinorUnits() string {
	if strings.TrimSpace(d.Details.Totals.GrandTotal) != "" {
		return d.Details.Totals.GrandTotal
	}
	return d.Details.Totals.Total
}

// Currency returns the transaction currency, defaulting to the totals block.
func (d *TransactionData) Currency() string {
	if c := strings.TrimSpace(d.Details.Totals.CurrencyCode); c != "" {
		return c
	}
	return strings.TrimSpace(d.CurrencyCode)
}
