package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harborline/storefront/internal/identity"
	"go.uber.org/zap"
)

// EventType enumerates the identity event kinds the provider delivers.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

var (
	// ErrUnknownEventType indicates an event type outside the contract.
	ErrUnknownEventType = errors.New("webhook: unknown event type")
	// ErrMalformedEvent indicates the payload could not be decoded.
	ErrMalformedEvent = errors.New("webhook: malformed event payload")

	errMissingReconciler = errors.New("webhook: reconciler is required")
)

// Envelope is a decoded provider event.
type Envelope struct {
	Type EventType
	Data EventData
}

// EventData is the identity payload carried by created/updated/deleted events.
type EventData struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	AvatarURL  string
}

type rawEnvelope struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		Email          string `json:"email"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		AvatarURL string `json:"avatar_url"`
		ImageURL  string `json:"image_url"`
	} `json:"data"`
}

// ParseEvent decodes a verified raw body into an Envelope. Both the bare
// {created,updated,deleted} types and the provider's user.-prefixed variants
// are accepted.
func ParseEvent(body []byte) (Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	eventType := EventType(strings.TrimPrefix(strings.TrimSpace(raw.Type), "user."))
	switch eventType {
	case EventCreated, EventUpdated, EventDeleted:
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEventType, raw.Type)
	}

	data := EventData{
		ExternalID: strings.TrimSpace(raw.Data.ID),
		Email:      strings.TrimSpace(raw.Data.Email),
		FirstName:  strings.TrimSpace(raw.Data.FirstName),
		LastName:   strings.TrimSpace(raw.Data.LastName),
		AvatarURL:  strings.TrimSpace(raw.Data.AvatarURL),
	}
	if data.Email == "" && len(raw.Data.EmailAddresses) > 0 {
		data.Email = strings.TrimSpace(raw.Data.EmailAddresses[0].EmailAddress)
	}
	if data.AvatarURL == "" {
		data.AvatarURL = strings.TrimSpace(raw.Data.ImageURL)
	}
	if data.ExternalID == "" {
		return Envelope{}, fmt.Errorf("%w: missing external id", ErrMalformedEvent)
	}
	if data.Email == "" && eventType != EventDeleted {
		return Envelope{}, fmt.Errorf("%w: missing email", ErrMalformedEvent)
	}
	return Envelope{Type: eventType, Data: data}, nil
}

// Reconciler is the slice of the identity service the gate dispatches into.
type Reconciler interface {
	Reconcile(ctx context.Context, event identity.Event) (identity.User, error)
	Remove(ctx context.Context, externalID string) error
}

// ProcessorConfig describes the dispatch dependencies.
type ProcessorConfig struct {
	Reconciler Reconciler
	Logger     *zap.Logger
}

// Processor forwards verified events into the identity reconciler. Delivery
// is at-least-once, so every path through Process is idempotent.
type Processor struct {
	reconciler Reconciler
	logger     *zap.Logger
}

// NewProcessor constructs the dispatcher.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Reconciler == nil {
		return nil, errMissingReconciler
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{reconciler: cfg.Reconciler, logger: logger}, nil
}

// Process applies one verified event. Created and updated both flow through
// reconciliation; deleted removes the user and succeeds when already absent.
func (p *Processor) Process(ctx context.Context, envelope Envelope) error {
	switch envelope.Type {
	case EventCreated, EventUpdated:
		_, err := p.reconciler.Reconcile(ctx, identity.Event{
			Origin:     identity.OriginWebhook,
			ExternalID: envelope.Data.ExternalID,
			Email:      envelope.Data.Email,
			GivenName:  envelope.Data.FirstName,
			FamilyName: envelope.Data.LastName,
			AvatarURL:  envelope.Data.AvatarURL,
		})
		return err
	case EventDeleted:
		return p.reconciler.Remove(ctx, envelope.Data.ExternalID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, envelope.Type)
	}
}
