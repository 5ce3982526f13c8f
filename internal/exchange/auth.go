package exchange

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = time.Minute

// Credentials authenticate a session. With an API key the token subject is the key,
// otherwise the session acts for the wallet that owns PrivateKey.
type Credentials struct {
	APIKey     string
	PrivateKey string
	TTL        time.Duration
}

// Subject is the identity the venue attributes orders to.
func (c Credentials) Subject() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return "wallet"
}

// Token mints a short-lived HS256 bearer token signed with the private key material.
func (c Credentials) Token() (string, error) {
	if c.PrivateKey == "" {
		return "", errors.New("private key is required")
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": c.Subject(),
		"iat": now.Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
