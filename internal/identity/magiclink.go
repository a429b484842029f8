package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultMagicLinkTTL = 15 * time.Minute
	magicTokenBytes     = 32
)

var (
	// ErrDeliveryFailed indicates the link email could not be handed to the
	// mail collaborator. The stored token stays inert and simply expires.
	ErrDeliveryFailed = errors.New("identity: magic link delivery failed")

	errMissingIdentityService = errors.New("identity: reconciler is required")
	errMissingLinkSender      = errors.New("identity: link sender is required")
)

// LinkSender delivers a magic link to a destination address.
type LinkSender interface {
	SendMagicLink(ctx context.Context, to, link string) error
}

// MagicLinkConfig describes the dependencies of the magic link flow.
type MagicLinkConfig struct {
	Identity      *Service
	Sender        LinkSender
	TTL           time.Duration
	VerifyBaseURL string
	Clock         func() time.Time
	Logger        *zap.Logger
}

// MagicLink issues and verifies single-use, time-boxed sign-in tokens stored
// on the canonical user row. Only one live token exists per user.
type MagicLink struct {
	identity *Service
	sender   LinkSender
	ttl      time.Duration
	baseURL  string
	clock    func() time.Time
	logger   *zap.Logger
}

// NewMagicLink constructs the token issuer/verifier.
func NewMagicLink(cfg MagicLinkConfig) (*MagicLink, error) {
	if cfg.Identity == nil {
		return nil, errMissingIdentityService
	}
	if cfg.Sender == nil {
		return nil, errMissingLinkSender
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultMagicLinkTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &MagicLink{
		identity: cfg.Identity,
		sender:   cfg.Sender,
		ttl:      ttl,
		baseURL:  cfg.VerifyBaseURL,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Issue stores a fresh token for the email's canonical user, overwriting any
// prior token, and hands the link to the mail collaborator. The user is
// created through the reconciler when the email has never been seen.
func (m *MagicLink) Issue(ctx context.Context, email string) error {
	user, err := m.identity.Reconcile(ctx, Event{Origin: OriginMagicLink, Email: email})
	if err != nil {
		return err
	}

	raw := make([]byte, magicTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	token := hex.EncodeToString(raw)
	expiresAt := m.clock().UTC().Add(m.ttl)

	err = m.identity.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"magic_token":            token,
			"magic_token_expires_at": expiresAt,
		}).Error
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/auth/magic-link/verify?token=%s", m.baseURL, token)
	if err := m.sender.SendMagicLink(ctx, user.Email, link); err != nil {
		m.logger.Warn("magic link delivery failed",
			zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// Verify resolves a presented token to its user and consumes it. A token
// verifies successfully exactly once; a second attempt, or any attempt past
// expiry, fails with ErrInvalidCredential without saying which.
func (m *MagicLink) Verify(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrInvalidCredential
	}

	var user User
	err := m.identity.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := m.clock().UTC()
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("magic_token = ? AND magic_token_expires_at > ?", token, now).
			Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCredential
		}
		if err != nil {
			return err
		}

		result := tx.Model(&User{}).
			Where("id = ? AND magic_token = ?", user.ID, token).
			Updates(map[string]interface{}{
				"magic_token":            nil,
				"magic_token_expires_at": nil,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return ErrInvalidCredential
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	user.MagicToken = nil
	user.MagicTokenExpiresAt = nil
	return user, nil
}
