package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Outcome is the provider-agnostic verdict a webhook event carries after
// normalization. Adapters map each vendor vocabulary onto these values.
type Outcome string

const (
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeRefunded  Outcome = "REFUNDED"
)

// PaymentEvent is the canonical, normalized form of a vendor webhook.
type PaymentEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	// ExternalRef is the provider-side transaction/session id the order was
	// tagged with at checkout.
	ExternalRef string
	// OrderRef is the local order id echoed back through provider metadata.
	// Used as a lookup fallback when the webhook races checkout persistence.
	OrderRef   string
	Outcome    Outcome
	Amount     int64
	Currency   string
	OccurredAt time.Time
	RawPayload []byte
}

type CheckoutItem struct {
	CourseID snowflake.ID
	Title    string
	Amount   int64
}

type CheckoutRequest struct {
	OrderID    snowflake.ID
	UserID     snowflake.ID
	Amount     int64
	Currency   string
	Items      []CheckoutItem
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is what a provider hands back when a hosted payment
// session is created.
type CheckoutSession struct {
	// TransactionID is the provider-side reference later echoed in webhooks.
	TransactionID string
	RedirectURL   string
}

// Adapter is one payment provider integration. Verify authenticates a raw
// webhook, Parse normalizes it into a PaymentEvent.
type Adapter interface {
	Provider() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	Verify(ctx context.Context, payload []byte, headers map[string]string) error
	Parse(ctx context.Context, payload []byte, headers map[string]string) (*PaymentEvent, error)
}

var (
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrInvalidSignature = errors.New("payment_invalid_signature")
	ErrInvalidPayload   = errors.New("payment_invalid_payload")
	// ErrEventIgnored marks vendor events outside the vocabulary we act on.
	// Callers acknowledge them without touching any order.
	ErrEventIgnored          = errors.New("payment_event_ignored")
	ErrEventAlreadyProcessed = errors.New("payment_event_already_processed")
	ErrGatewayUnavailable    = errors.New("payment_gateway_unavailable")
)

// EventRecord is the durable dedup log of every accepted webhook.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	ExternalRef     string         `json:"external_ref" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }
