package identity

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	user, err := service.Register(context.Background(), "signup@example.com", "correct horse", "Sam", "Rivers")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.PasswordHash == nil {
		t.Fatalf("expected password hash to be stored")
	}

	authed, err := service.Authenticate(context.Background(), "Signup@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected the same canonical user")
	}

	if _, err := service.Authenticate(context.Background(), "signup@example.com", "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("unknown email must fail the same way, got %v", err)
	}
}

func TestRegisterRejectsExistingCredentials(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	if _, err := service.Register(context.Background(), "taken@example.com", "password-one", "", ""); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := service.Register(context.Background(), "taken@example.com", "password-two", "", ""); !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}

	// The losing registration must not displace the stored credentials. The
	// guarded password_hash IS NULL write is what enforces this, so the first
	// password keeps working and the second never does.
	if _, err := service.Authenticate(context.Background(), "taken@example.com", "password-one"); err != nil {
		t.Fatalf("winner's password must keep working: %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "taken@example.com", "password-two"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("loser's password must never work, got %v", err)
	}
}

func TestRegisterCompletesPasswordlessAccount(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	// Account born from a webhook event carries no credentials.
	origin, err := service.Reconcile(context.Background(), Event{Origin: OriginWebhook, ExternalID: "ext-pw", Email: "passwordless@example.com"})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "passwordless@example.com", "anything"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("passwordless account must not authenticate, got %v", err)
	}

	registered, err := service.Register(context.Background(), "passwordless@example.com", "now-with-pass", "", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if registered.ID != origin.ID {
		t.Fatalf("register must attach to the existing canonical user")
	}
	if got := countUsers(t, db); got != 1 {
		t.Fatalf("expected one user row, got %d", got)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	db := openTestDB(t)
	service := mustService(t, db)

	if _, err := service.Register(context.Background(), "short@example.com", "tiny", "", ""); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if got := countUsers(t, db); got != 0 {
		t.Fatalf("weak password must not create a user, got %d rows", got)
	}
}
