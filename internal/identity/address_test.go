package identity

import (
	"context"
	"errors"
	"testing"
)

func seedUser(t *testing.T, service *Service, email string) User {
	t.Helper()
	user, err := service.Reconcile(context.Background(), Event{Origin: OriginCredentials, Email: email})
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func shippingAddress(isDefault bool) AddressInput {
	return AddressInput{
		Type:      AddressTypeShipping,
		Line1:     "1 Harbor Way",
		City:      "Portside",
		Country:   "US",
		IsDefault: isDefault,
	}
}

func defaultCount(t *testing.T, service *Service, userID string, addressType AddressType) int {
	t.Helper()
	addresses, err := service.Addresses(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to list addresses: %v", err)
	}
	count := 0
	for _, address := range addresses {
		if address.Type == addressType && address.IsDefault {
			count++
		}
	}
	return count
}

func TestSetDefaultAddressDemotesPriorDefault(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)
	user := seedUser(t, service, "addr@example.com")

	first, err := service.CreateAddress(context.Background(), user.ID, shippingAddress(true))
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := service.CreateAddress(context.Background(), user.ID, shippingAddress(false))
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	if err := service.SetDefaultAddress(context.Background(), user.ID, second.ID); err != nil {
		t.Fatalf("set default failed: %v", err)
	}
	if got := defaultCount(t, service, user.ID, AddressTypeShipping); got != 1 {
		t.Fatalf("expected exactly one default shipping address, got %d", got)
	}

	// Flip back and forth; the invariant must hold after every operation.
	for _, target := range []string{first.ID, second.ID, first.ID} {
		if err := service.SetDefaultAddress(context.Background(), user.ID, target); err != nil {
			t.Fatalf("set default failed: %v", err)
		}
		if got := defaultCount(t, service, user.ID, AddressTypeShipping); got != 1 {
			t.Fatalf("expected exactly one default after promotion of %s, got %d", target, got)
		}
	}
}

func TestCreateDefaultAddressDemotesSibling(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)
	user := seedUser(t, service, "addr2@example.com")

	if _, err := service.CreateAddress(context.Background(), user.ID, shippingAddress(true)); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := service.CreateAddress(context.Background(), user.ID, shippingAddress(true)); err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if got := defaultCount(t, service, user.ID, AddressTypeShipping); got != 1 {
		t.Fatalf("expected exactly one default shipping address, got %d", got)
	}
}

func TestDefaultsAreIndependentPerType(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)
	user := seedUser(t, service, "addr3@example.com")

	if _, err := service.CreateAddress(context.Background(), user.ID, shippingAddress(true)); err != nil {
		t.Fatalf("shipping create failed: %v", err)
	}
	billing := shippingAddress(true)
	billing.Type = AddressTypeBilling
	if _, err := service.CreateAddress(context.Background(), user.ID, billing); err != nil {
		t.Fatalf("billing create failed: %v", err)
	}

	if got := defaultCount(t, service, user.ID, AddressTypeShipping); got != 1 {
		t.Fatalf("expected shipping default to survive, got %d", got)
	}
	if got := defaultCount(t, service, user.ID, AddressTypeBilling); got != 1 {
		t.Fatalf("expected billing default, got %d", got)
	}
}

func TestAddressOwnershipEnforced(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)
	owner := seedUser(t, service, "owner@example.com")
	other := seedUser(t, service, "other@example.com")

	address, err := service.CreateAddress(context.Background(), owner.ID, shippingAddress(true))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := service.SetDefaultAddress(context.Background(), other.ID, address.ID); !errors.Is(err, ErrNotAddressOwner) {
		t.Fatalf("expected ErrNotAddressOwner, got %v", err)
	}
	if err := service.DeleteAddress(context.Background(), other.ID, address.ID); !errors.Is(err, ErrNotAddressOwner) {
		t.Fatalf("expected ErrNotAddressOwner on delete, got %v", err)
	}
	if err := service.DeleteAddress(context.Background(), owner.ID, "missing"); !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestCreateAddressValidatesInput(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)
	user := seedUser(t, service, "addr4@example.com")

	if _, err := service.CreateAddress(context.Background(), user.ID, AddressInput{Type: "warehouse", Line1: "x"}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for bad type, got %v", err)
	}
	if _, err := service.CreateAddress(context.Background(), user.ID, AddressInput{Type: AddressTypeShipping}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for missing line1, got %v", err)
	}
}
