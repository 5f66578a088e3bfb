// Package usertoken verifies platform-issued user access tokens. The advisor
// never mints tokens; it trusts the auth service's published JWKS and reads
// the user id from the token subject.
package usertoken

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultIssuer   = "skinadvisor-auth"
	defaultAudience = "skinadvisor-api"
	defaultLeeway   = 30 * time.Second
)

var errUnknownKey = errors.New("unknown token key")

// Config configures user access-token verification.
type Config struct {
	JWKSURL    string
	Issuer     string
	Audience   string
	Leeway     time.Duration
	HTTPClient *http.Client
}

// Verifier validates RS256 user tokens against a cached JWKS.
type Verifier struct {
	issuer   string
	audience string
	leeway   time.Duration
	keys     *jwksCache
}

// NewVerifier creates a verifier and performs an initial JWKS fetch so a bad
// endpoint fails at startup rather than on the first request.
func NewVerifier(cfg Config) (*Verifier, error) {
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		return nil, errors.New("token verifier requires jwksURL")
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	keys := newJWKSCache(jwksURL, client)
	if err := keys.refresh(); err != nil {
		return nil, fmt.Errorf("initial jwks fetch: %w", err)
	}
	return &Verifier{
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
		keys:     keys,
	}, nil
}

// VerifyRequest extracts the bearer token from an HTTP request and returns
// the subject user ID.
func (v *Verifier) VerifyRequest(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", errors.New("missing bearer token")
	}
	return v.VerifySubject(strings.TrimSpace(auth[len(prefix):]))
}

// VerifySubject validates the token and returns the subject user ID. An
// unknown key id triggers one JWKS re-fetch, which is how key rotation is
// picked up.
func (v *Verifier) VerifySubject(token string) (string, error) {
	claims, err := v.parse(token)
	if errors.Is(err, errUnknownKey) || (err != nil && v.keys.expired()) {
		if refreshErr := v.keys.refresh(); refreshErr != nil {
			return "", refreshErr
		}
		claims, err = v.parse(token)
	}
	if err != nil {
		return "", err
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.New("token subject missing")
	}
	return subject, nil
}

func (v *Verifier) parse(token string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := v.keys.lookup(strings.TrimSpace(kid))
		if !ok {
			return nil, errUnknownKey
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return claims, err
	}
	if !parsed.Valid {
		return claims, errors.New("invalid token")
	}
	return claims, nil
}
