package auth

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Get(url string) (*http.Response, error)
}

// KeySet fetches the issuer's published signing keys. With a positive ttl
// the last fetched set is reused until it is ttl old; with ttl zero every
// lookup goes to the issuer. Concurrent fetches are collapsed into one.
type KeySet struct {
	url     string
	client  HTTPClient
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	set       jwk.Set
	fetchedAt time.Time
}

func NewKeySet(url string, client HTTPClient, timeout, ttl time.Duration) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &KeySet{
		url:     url,
		client:  client,
		timeout: timeout,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Key returns the RSA public key published under kid.
func (ks *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	set, err := ks.load(ctx)
	if err != nil {
		return nil, authErr(KindKeySetUnavailable, err, "Could not load the issuer's public keys. Try again later.")
	}
	key, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, authErr(KindNoPublicKey, nil, "Found no public key with id %s", kid)
	}
	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, authErr(KindNoPublicKey, err, "Found no public key with id %s", kid)
	}
	pub, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, authErr(KindNoPublicKey, nil, "Key %s is not an RSA public key", kid)
	}
	return pub, nil
}

func (ks *KeySet) cached() (jwk.Set, bool) {
	if ks.ttl <= 0 {
		return nil, false
	}
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.set == nil || ks.now().Sub(ks.fetchedAt) >= ks.ttl {
		return nil, false
	}
	return ks.set, true
}

func (ks *KeySet) load(ctx context.Context) (jwk.Set, error) {
	if set, ok := ks.cached(); ok {
		return set, nil
	}
	// The fetch is shared between callers, so one caller going away must
	// not cancel it for the others.
	v, err, _ := ks.group.Do("jwks", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ks.timeout)
		defer cancel()
		set, err := jwk.Fetch(fctx, ks.url, jwk.WithHTTPClient(ks.client))
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", ks.url, err)
		}
		ks.mu.Lock()
		ks.set = set
		ks.fetchedAt = ks.now()
		ks.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(jwk.Set), nil
}
