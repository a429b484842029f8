package auth

import (
	"errors"
	"testing"
	"time"
)

func newIssuer(t *testing.T, secret string, ttl time.Duration, clock func() time.Time) *SessionIssuer {
	t.Helper()
	issuer, err := NewSessionIssuer(SessionIssuerConfig{
		SigningSecret: []byte(secret),
		TTL:           ttl,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to create session issuer: %v", err)
	}
	return issuer
}

func TestSessionRoundTrip(t *testing.T) {
	issuer := newIssuer(t, "session-secret", 30*time.Minute, time.Now)

	token, expiresIn, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("expected lifetime in seconds, got %d", expiresIn)
	}

	subject, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if subject != "user-123" {
		t.Fatalf("expected the issued subject, got %q", subject)
	}
}

func TestSessionRejectsWrongSecret(t *testing.T) {
	issuer := newIssuer(t, "secret-a", 30*time.Minute, time.Now)
	other := newIssuer(t, "secret-b", 30*time.Minute, time.Now)

	token, _, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestSessionRejectsExpiredToken(t *testing.T) {
	current := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	issuer := newIssuer(t, "session-secret", 10*time.Minute, clock)

	token, _, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	current = current.Add(11 * time.Minute)
	if _, err := issuer.Validate(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken after expiry, got %v", err)
	}
}

func TestSessionRejectsGarbageToken(t *testing.T) {
	issuer := newIssuer(t, "session-secret", 30*time.Minute, time.Now)

	for _, token := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		if _, err := issuer.Validate(token); !errors.Is(err, ErrInvalidSessionToken) {
			t.Fatalf("expected ErrInvalidSessionToken for %q, got %v", token, err)
		}
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	issuer := newIssuer(t, "session-secret", 30*time.Minute, time.Now)

	if _, _, err := issuer.Issue("   "); err == nil {
		t.Fatalf("expected an error for an empty subject")
	}
}
