// Package auth verifies Clerk session tokens.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/square/go-jose/v3"
	"github.com/square/go-jose/v3/jwt"
)

var (
	ErrInvalidToken      = errors.New("invalid session token")
	ErrTokenExpired      = errors.New("session token expired")
	ErrUnauthorizedParty = errors.New("session token issued for an unknown party")
	ErrInvalidKey        = errors.New("invalid token verification key")
)

// Claims is the subset of a Clerk session token the API relies on.
type Claims struct {
	UserID          string
	SessionID       string
	AuthorizedParty string
	Expiry          time.Time
}

type sessionClaims struct {
	AuthorizedParty string `json:"azp,omitempty"`
	SessionID       string `json:"sid,omitempty"`
}

type Verifier struct {
	key     *rsa.PublicKey
	parties map[string]struct{}
	leeway  time.Duration
	now     func() time.Time
}

// NewVerifier parses a PEM encoded RSA public key. Escaped newlines, as they
// often appear in environment variables, are accepted.
func NewVerifier(pemKey string, authorizedParties []string) (*Verifier, error) {
	key, err := parsePublicKey(pemKey)
	if err != nil {
		return nil, err
	}

	parties := make(map[string]struct{}, len(authorizedParties))
	for _, p := range authorizedParties {
		parties[strings.TrimRight(p, "/")] = struct{}{}
	}

	return &Verifier{
		key:     key,
		parties: parties,
		leeway:  5 * time.Second,
		now:     time.Now,
	}, nil
}

func (v *Verifier) Verify(raw string) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(tok.Headers) != 1 || tok.Headers[0].Algorithm != string(jose.RS256) {
		return nil, fmt.Errorf("%w: unexpected signing algorithm", ErrInvalidToken)
	}

	var std jwt.Claims
	var extra sessionClaims
	if err := tok.Claims(v.key, &std, &extra); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := std.ValidateWithLeeway(jwt.Expected{Time: v.now()}, v.leeway); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if std.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	if len(v.parties) > 0 && extra.AuthorizedParty != "" {
		if _, ok := v.parties[strings.TrimRight(extra.AuthorizedParty, "/")]; !ok {
			return nil, ErrUnauthorizedParty
		}
	}

	claims := &Claims{
		UserID:          std.Subject,
		SessionID:       extra.SessionID,
		AuthorizedParty: extra.AuthorizedParty,
	}
	if std.Expiry != nil {
		claims.Expiry = std.Expiry.Time()
	}
	return claims, nil
}

func parsePublicKey(pemKey string) (*rsa.PublicKey, error) {
	pemKey = strings.ReplaceAll(strings.TrimSpace(pemKey), `\n`, "\n")
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return rsaKey, nil
}
