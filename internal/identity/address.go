package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrAddressNotFound indicates the address does not exist.
	ErrAddressNotFound = errors.New("identity: address not found")
	// ErrNotAddressOwner indicates the requesting user does not own the address.
	ErrNotAddressOwner = errors.New("identity: address owned by another user")
	// ErrInvalidAddress indicates a malformed address payload.
	ErrInvalidAddress = errors.New("identity: invalid address")
)

// AddressInput carries the writable address fields.
type AddressInput struct {
	Type       AddressType
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
	IsDefault  bool
}

func (in AddressInput) validate() error {
	if in.Type != AddressTypeShipping && in.Type != AddressTypeBilling {
		return ErrInvalidAddress
	}
	if normalize(in.Line1) == "" {
		return ErrInvalidAddress
	}
	return nil
}

// CreateAddress stores a new address for the user. When the new address is
// flagged default, any prior default of the same type is demoted in the same
// transaction so the one-default-per-type invariant holds throughout.
func (s *Service) CreateAddress(ctx context.Context, userID string, in AddressInput) (Address, error) {
	if err := in.validate(); err != nil {
		return Address{}, err
	}

	address := Address{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       in.Type,
		Line1:      normalize(in.Line1),
		Line2:      normalize(in.Line2),
		City:       normalize(in.City),
		Region:     normalize(in.Region),
		PostalCode: normalize(in.PostalCode),
		Country:    normalize(in.Country),
		IsDefault:  in.IsDefault,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.IsDefault {
			if err := demoteDefaults(tx, userID, in.Type, address.ID); err != nil {
				return err
			}
		}
		return tx.Create(&address).Error
	})
	if err != nil {
		return Address{}, err
	}
	return address, nil
}

// SetDefaultAddress promotes the address to the default of its type, demoting
// any sibling first. Demote-then-promote runs inside one transaction; a unique
// index cannot express this multi-row invariant.
func (s *Service) SetDefaultAddress(ctx context.Context, userID, addressID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		address, err := ownedAddress(tx, userID, addressID)
		if err != nil {
			return err
		}
		if err := demoteDefaults(tx, userID, address.Type, address.ID); err != nil {
			return err
		}
		return tx.Model(&Address{}).
			Where("id = ?", address.ID).
			Update("is_default", true).Error
	})
}

// UpdateAddress rewrites the address fields. Ownership is required; a type
// change moves the default flag handling to the new type.
func (s *Service) UpdateAddress(ctx context.Context, userID, addressID string, in AddressInput) (Address, error) {
	if err := in.validate(); err != nil {
		return Address{}, err
	}

	var updated Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		address, err := ownedAddress(tx, userID, addressID)
		if err != nil {
			return err
		}
		if in.IsDefault {
			if err := demoteDefaults(tx, userID, in.Type, address.ID); err != nil {
				return err
			}
		}
		updated = Address{
			ID:         address.ID,
			UserID:     address.UserID,
			Type:       in.Type,
			Line1:      normalize(in.Line1),
			Line2:      normalize(in.Line2),
			City:       normalize(in.City),
			Region:     normalize(in.Region),
			PostalCode: normalize(in.PostalCode),
			Country:    normalize(in.Country),
			IsDefault:  in.IsDefault,
			CreatedAt:  address.CreatedAt,
		}
		return tx.Save(&updated).Error
	})
	if err != nil {
		return Address{}, err
	}
	return updated, nil
}

// DeleteAddress removes an owned address. Deleting an absent address fails
// loud with ErrAddressNotFound since it represents explicit user intent.
func (s *Service) DeleteAddress(ctx context.Context, userID, addressID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		address, err := ownedAddress(tx, userID, addressID)
		if err != nil {
			return err
		}
		return tx.Delete(&Address{}, "id = ?", address.ID).Error
	})
}

// Addresses lists the user's addresses, defaults first.
func (s *Service) Addresses(ctx context.Context, userID string) ([]Address, error) {
	var addresses []Address
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC").
		Find(&addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

func ownedAddress(tx *gorm.DB, userID, addressID string) (Address, error) {
	var address Address
	err := tx.Where("id = ?", addressID).Take(&address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Address{}, ErrAddressNotFound
	}
	if err != nil {
		return Address{}, err
	}
	if address.UserID != userID {
		return Address{}, ErrNotAddressOwner
	}
	return address, nil
}

func demoteDefaults(tx *gorm.DB, userID string, addressType AddressType, exceptID string) error {
	return tx.Model(&Address{}).
		Where("user_id = ? AND type = ? AND id <> ?", userID, addressType, exceptID).
		Update("is_default", false).Error
}
