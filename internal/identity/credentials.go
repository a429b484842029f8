package identity

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredential covers every failed credential check. Wrong
	// password, unknown email, wrong token and expired token are deliberately
	// indistinguishable to the caller.
	ErrInvalidCredential = errors.New("identity: invalid or expired credential")
	// ErrEmailInUse indicates a registration attempt against an email that
	// already carries a password.
	ErrEmailInUse = errors.New("identity: email already registered")
	// ErrWeakPassword indicates the supplied password missed the length floor.
	ErrWeakPassword = errors.New("identity: password too short")
)

const minPasswordLength = 8

// Register creates or completes a credentials-origin account. The event flows
// through the same reconciler as every other origin; the password hash is then
// attached if no prior credentials exist for the user.
func (s *Service) Register(ctx context.Context, email, password, givenName, familyName string) (User, error) {
	if len(password) < minPasswordLength {
		return User{}, ErrWeakPassword
	}

	user, err := s.Reconcile(ctx, Event{
		Origin:     OriginCredentials,
		Email:      email,
		GivenName:  givenName,
		FamilyName: familyName,
	})
	if err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	hashed := string(hash)
	// The guarded write is the only enforcement point: a zero-row match means
	// credentials already exist, whether they predate this call or were
	// attached by a concurrent registration.
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND password_hash IS NULL", user.ID).
		Update("password_hash", hashed)
	if result.Error != nil {
		return User{}, result.Error
	}
	if result.RowsAffected == 0 {
		return User{}, ErrEmailInUse
	}
	user.PasswordHash = &hashed
	return user, nil
}

// Authenticate checks a credentials-origin sign-in. Accounts created by other
// origins carry no password hash and fail the same way a bad password does.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.UserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredential
	}
	if err != nil {
		return User{}, err
	}
	if user.PasswordHash == nil {
		return User{}, ErrInvalidCredential
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredential
	}
	return user, nil
}
