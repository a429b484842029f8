package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidEvent indicates the identity event did not carry a usable email.
	ErrInvalidEvent = errors.New("identity: invalid event")
	// ErrUserNotFound indicates no canonical user matched the lookup.
	ErrUserNotFound = errors.New("identity: user not found")

	errMissingDatabase = errors.New("identity: database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig describes the dependencies required for identity reconciliation.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger

	// OnCreate runs inside the creating transaction the first time a canonical
	// user comes into existence, after the default profile has been written.
	OnCreate func(tx *gorm.DB, user *User) error
}

// Service merges identity events from every origin into the canonical user
// table and owns the profile and address records hanging off it.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	logger   *zap.Logger
	onCreate func(tx *gorm.DB, user *User) error
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:       cfg.Database,
		clock:    clock,
		logger:   logger,
		onCreate: cfg.OnCreate,
	}, nil
}

// Reconcile applies one identity event and returns the canonical user it
// resolved to. It is idempotent under redelivery and safe under concurrent
// delivery of events that resolve to the same email: creation races are
// settled by the unique email index, with the loser falling back to the
// update path rather than producing a second row.
func (s *Service) Reconcile(ctx context.Context, event Event) (User, error) {
	email := NormalizeEmail(event.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, ErrInvalidEvent
	}
	externalID := normalize(event.ExternalID)

	for attempt := 0; attempt < 2; attempt++ {
		user, found, err := s.applyToExisting(ctx, event, email, externalID)
		if err != nil {
			return User{}, err
		}
		if found {
			return user, nil
		}

		user, err = s.createFromEvent(ctx, event, email, externalID)
		if err == nil {
			s.logger.Info("canonical user created",
				zap.String("user_id", user.ID),
				zap.String("origin", string(event.Origin)))
			return user, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, err
		}
		// Another request created the row between our lookup and insert.
		// The retry lands on the update path.
	}
	return User{}, fmt.Errorf("identity: reconcile did not converge for %s", email)
}

// applyToExisting matches the event to an existing user by external id first,
// then by email. Updates touch mutable fields only; email and an established
// external id are never rewritten.
func (s *Service) applyToExisting(ctx context.Context, event Event, email, externalID string) (User, bool, error) {
	var user User
	var found bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := gorm.ErrRecordNotFound
		if externalID != "" {
			err = tx.Where("external_id = ?", externalID).Take(&user).Error
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = tx.Where("email = ?", email).Take(&user).Error
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		updates := map[string]interface{}{}
		if given := normalize(event.GivenName); given != "" && given != user.FirstName {
			updates["first_name"] = given
			user.FirstName = given
		}
		if family := normalize(event.FamilyName); family != "" && family != user.LastName {
			updates["last_name"] = family
			user.LastName = family
		}
		if avatar := normalize(event.AvatarURL); avatar != "" && avatar != user.AvatarURL {
			updates["avatar_url"] = avatar
			user.AvatarURL = avatar
		}
		if len(updates) > 0 {
			updates["updated_at"] = s.clock().UTC()
			if err := tx.Model(&User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if externalID != "" && user.ExternalID == nil {
			return s.linkExternalID(tx, &user, externalID)
		}
		return nil
	})
	if err != nil {
		return User{}, false, err
	}
	return user, found, nil
}

// linkExternalID attaches the provider id unless another writer already did.
// The guard runs at the row, not against the snapshot, so a stale read of an
// unlinked column cannot overwrite an established link; the first writer wins
// and later writers see its link.
func (s *Service) linkExternalID(tx *gorm.DB, user *User, externalID string) error {
	result := tx.Model(&User{}).
		Where("id = ? AND external_id IS NULL", user.ID).
		Update("external_id", externalID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		user.ExternalID = &externalID
		return nil
	}
	return tx.Where("id = ?", user.ID).Take(user).Error
}

func (s *Service) createFromEvent(ctx context.Context, event Event, email, externalID string) (User, error) {
	user := User{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: normalize(event.GivenName),
		LastName:  normalize(event.FamilyName),
		AvatarURL: normalize(event.AvatarURL),
	}
	if externalID != "" {
		user.ExternalID = &externalID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&Profile{UserID: user.ID}).Error; err != nil {
			return err
		}
		if s.onCreate != nil {
			return s.onCreate(tx, &user)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Remove deletes the canonical user linked to the given external id, cascading
// to profile, addresses and all commerce state. An absent user is treated as
// success so redelivered or out-of-order delete events stay idempotent.
func (s *Service) Remove(ctx context.Context, externalID string) error {
	id := normalize(externalID)
	if id == "" {
		return ErrInvalidEvent
	}
	result := s.db.WithContext(ctx).Where("external_id = ?", id).Delete(&User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.logger.Info("canonical user removed", zap.String("external_id", id))
	}
	return nil
}

// UserByID loads a canonical user by internal id.
func (s *Service) UserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UserByEmail loads a canonical user by normalized email.
func (s *Service) UserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}
