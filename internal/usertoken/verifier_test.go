package usertoken

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type jwksFixture struct {
	keys   map[string]*rsa.PrivateKey
	active string
	server *httptest.Server
}

func newJWKSFixture(t *testing.T, kids ...string) *jwksFixture {
	t.Helper()
	f := &jwksFixture{keys: map[string]*rsa.PrivateKey{}}
	for _, kid := range kids {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate key %s: %v", kid, err)
		}
		f.keys[kid] = key
	}
	f.active = kids[0]
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=1")
		pub := f.keys[f.active].PublicKey
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": f.active,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}}})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) sign(t *testing.T, kid string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(f.keys[kid])
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func baseClaims(subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "issuer-a",
		Audience:  jwt.ClaimStrings{"aud-a"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
	}
}

func TestNewVerifierRequiresJWKSURL(t *testing.T) {
	if _, err := NewVerifier(Config{}); err == nil {
		t.Fatalf("expected missing jwks url to fail")
	}
}

func TestVerifySubjectAndKeyRotation(t *testing.T) {
	f := newJWKSFixture(t, "kid-1", "kid-2")
	v, err := NewVerifier(Config{JWKSURL: f.server.URL, Issuer: "issuer-a", Audience: "aud-a"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	if sub, err := v.VerifySubject(f.sign(t, "kid-1", baseClaims("user-a"))); err != nil || sub != "user-a" {
		t.Fatalf("verify with kid-1: sub=%q err=%v", sub, err)
	}

	// Rotate: unknown kid must trigger a refetch and then verify.
	f.active = "kid-2"
	if sub, err := v.VerifySubject(f.sign(t, "kid-2", baseClaims("user-b"))); err != nil || sub != "user-b" {
		t.Fatalf("verify after rotation: sub=%q err=%v", sub, err)
	}
}

func TestVerifySubjectRejectsBadClaims(t *testing.T) {
	f := newJWKSFixture(t, "kid-1")
	v, err := NewVerifier(Config{JWKSURL: f.server.URL, Issuer: "issuer-a", Audience: "aud-a", Leeway: 5 * time.Second})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	future := baseClaims("user-1")
	future.IssuedAt = jwt.NewNumericDate(time.Now().Add(2 * time.Minute))
	if _, err := v.VerifySubject(f.sign(t, "kid-1", future)); err == nil {
		t.Fatalf("future iat must fail")
	}

	wrongAud := baseClaims("user-1")
	wrongAud.Audience = jwt.ClaimStrings{"someone-else"}
	if _, err := v.VerifySubject(f.sign(t, "kid-1", wrongAud)); err == nil {
		t.Fatalf("wrong audience must fail")
	}

	noSubject := baseClaims("")
	if _, err := v.VerifySubject(f.sign(t, "kid-1", noSubject)); err == nil {
		t.Fatalf("missing subject must fail")
	}
}

func TestVerifyRequest(t *testing.T) {
	f := newJWKSFixture(t, "kid-1")
	v, err := NewVerifier(Config{JWKSURL: f.server.URL, Issuer: "issuer-a", Audience: "aud-a"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	if _, err := v.VerifyRequest(r); err == nil {
		t.Fatalf("missing header must fail")
	}

	r.Header.Set("Authorization", "Bearer "+f.sign(t, "kid-1", baseClaims("user-9")))
	sub, err := v.VerifyRequest(r)
	if err != nil || sub != "user-9" {
		t.Fatalf("verify request: sub=%q err=%v", sub, err)
	}
}

func TestCacheMaxAge(t *testing.T) {
	if got := cacheMaxAge("public, max-age=120"); got != 2*time.Minute {
		t.Fatalf("max-age = %v", got)
	}
	if got := cacheMaxAge("no-store"); got != 0 {
		t.Fatalf("missing max-age = %v, want 0", got)
	}
}
