package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	defaultKeyCacheTTL  = 10 * time.Minute
	defaultGoogleIssuer = "https://accounts.google.com"
	altGoogleIssuer     = "accounts.google.com"
)

var (
	// ErrInvalidIDToken covers every failed ID-token check.
	ErrInvalidIDToken = errors.New("auth: invalid id token")

	errMissingAudience   = errors.New("auth: oauth audience is required")
	errMissingKeySetURL  = errors.New("auth: jwks url is required")
	errUnknownSigningKey = errors.New("auth: signing key not present in key set")
)

// IDTokenClaims carries the identity payload the reconciler consumes from a
// verified OAuth sign-in.
type IDTokenClaims struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

type idTokenPayload struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
	jwt.RegisteredClaims
}

// OAuthVerifierConfig configures offline ID-token verification.
type OAuthVerifierConfig struct {
	Audience   string
	KeySetURL  string
	HTTPClient *http.Client
	CacheTTL   time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
}

// OAuthVerifier validates provider-signed ID tokens against a cached JWKS.
type OAuthVerifier struct {
	audience   string
	keySetURL  string
	httpClient *http.Client
	clock      func() time.Time
	logger     *zap.Logger
	keys       *keyCache
}

// NewOAuthVerifier constructs a verifier with validated configuration.
func NewOAuthVerifier(cfg OAuthVerifierConfig) (*OAuthVerifier, error) {
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, errMissingAudience
	}
	keySetURL := strings.TrimSpace(cfg.KeySetURL)
	if keySetURL == "" {
		return nil, errMissingKeySetURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultKeyCacheTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthVerifier{
		audience:   audience,
		keySetURL:  keySetURL,
		httpClient: httpClient,
		clock:      clock,
		logger:     logger,
		keys:       &keyCache{ttl: cacheTTL},
	}, nil
}

// Verify validates the raw ID token and returns its identity claims.
func (v *OAuthVerifier) Verify(ctx context.Context, rawToken string) (IDTokenClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return IDTokenClaims{}, ErrInvalidIDToken
	}

	payload := &idTokenPayload{}
	_, err := jwt.ParseWithClaims(
		rawToken,
		payload,
		func(token *jwt.Token) (interface{}, error) {
			keyID, _ := token.Header["kid"].(string)
			if keyID == "" {
				return nil, fmt.Errorf("%w: missing key id", ErrInvalidIDToken)
			}
			return v.signingKey(ctx, keyID)
		},
		jwt.WithAudience(v.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		return IDTokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	if payload.Issuer != defaultGoogleIssuer && payload.Issuer != altGoogleIssuer {
		return IDTokenClaims{}, fmt.Errorf("%w: untrusted issuer %q", ErrInvalidIDToken, payload.Issuer)
	}
	if payload.Subject == "" || payload.Email == "" {
		return IDTokenClaims{}, fmt.Errorf("%w: missing subject or email", ErrInvalidIDToken)
	}

	return IDTokenClaims{
		Subject:    payload.Subject,
		Email:      payload.Email,
		GivenName:  payload.GivenName,
		FamilyName: payload.FamilyName,
		Picture:    payload.Picture,
	}, nil
}

func (v *OAuthVerifier) signingKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	now := v.clock()
	if key := v.keys.get(keyID, now); key != nil {
		return key, nil
	}
	if err := v.refreshKeys(ctx, now); err != nil {
		return nil, err
	}
	if key := v.keys.get(keyID, now); key != nil {
		return key, nil
	}
	return nil, errUnknownSigningKey
}

func (v *OAuthVerifier) refreshKeys(ctx context.Context, fetchedAt time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.keySetURL, nil)
	if err != nil {
		return err
	}
	response, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: key set request returned status %d", response.StatusCode)
	}

	var document struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(response.Body).Decode(&document); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(document.Keys))
	for _, candidate := range document.Keys {
		if candidate.KeyType != "RSA" || candidate.Use != "sig" {
			continue
		}
		publicKey, err := candidate.rsaPublicKey()
		if err != nil {
			v.logger.Debug("skipping unusable jwk", zap.String("kid", candidate.KeyID), zap.Error(err))
			continue
		}
		keys[candidate.KeyID] = publicKey
	}
	if len(keys) == 0 {
		return errors.New("auth: key set contained no usable keys")
	}

	v.keys.store(keys, fetchedAt)
	return nil
}

type keyCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	ttl       time.Duration
}

func (c *keyCache) get(keyID string, now time.Time) *rsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil || now.After(c.expiresAt) {
		return nil
	}
	return c.keys[keyID]
}

func (c *keyCache) store(keys map[string]*rsa.PublicKey, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = keys
	c.expiresAt = now.Add(c.ttl)
}

type jsonWebKey struct {
	KeyType string `json:"kty"`
	KeyID   string `json:"kid"`
	Use     string `json:"use"`
	Modulus string `json:"n"`
	Exp     string `json:"e"`
}

func (k jsonWebKey) rsaPublicKey() (*rsa.PublicKey, error) {
	modulusBytes, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus encoding: %w", err)
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(k.Exp)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent encoding: %w", err)
	}
	if len(exponentBytes) == 0 {
		return nil, errors.New("missing exponent bytes")
	}

	exponent := 0
	for _, b := range exponentBytes {
		exponent = exponent<<8 + int(b)
	}
	if exponent == 0 {
		return nil, errors.New("invalid exponent value")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulusBytes),
		E: exponent,
	}, nil
}
