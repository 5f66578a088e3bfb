package usertoken

import (
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
)

const defaultJWKSCacheTTL = 5 * time.Minute

// jwksCache fetches and caches the RSA public keys published at a JWKS URL,
// keyed by kid. The cache TTL honors the endpoint's Cache-Control max-age.
type jwksCache struct {
	url    string
	client *http.Client

	mu      sync.RWMutex
	rsaKeys map[string]*rsa.PublicKey
	expires time.Time
}

func newJWKSCache(url string, client *http.Client) *jwksCache {
	return &jwksCache{url: url, client: client}
}

func (c *jwksCache) lookup(kid string) (*rsa.PublicKey, bool) {
	if kid == "" {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.rsaKeys[kid]
	return key, ok
}

func (c *jwksCache) expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().UTC().After(c.expires)
}

func (c *jwksCache) refresh() error {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var payload struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(payload.Keys))
	for _, k := range payload.Keys {
		if !strings.EqualFold(strings.TrimSpace(k.Kty), "RSA") {
			continue
		}
		kid := strings.TrimSpace(k.Kid)
		if kid == "" {
			continue
		}
		pub, err := decodeRSAKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("jwks contains no usable rsa keys")
	}

	ttl := cacheMaxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = defaultJWKSCacheTTL
	}

	c.mu.Lock()
	c.rsaKeys = keys
	c.expires = time.Now().UTC().Add(ttl)
	c.mu.Unlock()
	return nil
}

func decodeRSAKey(nRaw, eRaw string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(nRaw))
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(eRaw))
	if err != nil {
		return nil, err
	}
	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	if n.Sign() <= 0 || !e.IsInt64() || e.Int64() <= 0 {
		return nil, errors.New("invalid rsa key")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func cacheMaxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		raw, found := strings.CutPrefix(part, "max-age=")
		if !found {
			continue
		}
		d, err := time.ParseDuration(raw + "s")
		if err != nil {
			return 0
		}
		return d
	}
	return 0
}
