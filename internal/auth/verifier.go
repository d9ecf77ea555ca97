// Package auth verifies the storefront's bearer tokens. The payment service
// never mints tokens; it only checks signatures issued by the account
// service, which shares the HS256 secret.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier parses and validates HS256 access tokens.
type Verifier struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// ParseAccessToken verifies the signature and registered claims and returns
// the subject.
func (v Verifier) ParseAccessToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("auth: token is empty")
	}
	if len(v.Secret) == 0 {
		return "", errors.New("auth: secret not configured")
	}
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.Secret),
		jwt.WithValidate(true),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	tok, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}
	sub := strings.TrimSpace(tok.Subject())
	if sub == "" {
		return "", errors.New("auth: token missing subject")
	}
	return sub, nil
}
