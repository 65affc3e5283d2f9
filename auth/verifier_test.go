package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://cidc-test.auth0.com/"
	testAudience = "test-client-id"
	testKid      = "key-1"
)

var (
	keyOnce   sync.Once
	signKey   *rsa.PrivateKey
	otherKey  *rsa.PrivateKey
	keyGenErr error
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		signKey, keyGenErr = rsa.GenerateKey(rand.Reader, 2048)
		if keyGenErr != nil {
			return
		}
		otherKey, keyGenErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, keyGenErr)
	return signKey, otherKey
}

// jwksServer publishes pub under kid and counts requests.
func jwksServer(t *testing.T, kid string, pub *rsa.PublicKey, hits *int32) *httptest.Server {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kid": kid,
			"kty": "RSA",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   "auth0|123",
		"email": "researcher@example.org",
		"iat":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

func sign(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func newTestVerifier(t *testing.T, url string, ttl time.Duration) *Verifier {
	t.Helper()
	ks := NewKeySet(url, nil, time.Second, ttl)
	return NewVerifier(ks, testIssuer, testAudience, 0)
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	var ae *AuthError
	require.True(t, errors.As(err, &ae), "expected *AuthError, got %v", err)
	assert.Equal(t, kind, ae.Kind, "error: %v", err)
}

func TestVerify_Valid(t *testing.T) {
	key, _ := testKeys(t)
	srv := jwksServer(t, testKid, &key.PublicKey, nil)
	v := newTestVerifier(t, srv.URL, 0)

	claims, err := v.Verify(context.Background(), sign(t, key, testKid, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "researcher@example.org", claims.Email)
}

func TestVerify_Failures(t *testing.T) {
	key, other := testKeys(t)
	srv := jwksServer(t, testKid, &key.PublicKey, nil)
	v := newTestVerifier(t, srv.URL, 0)

	expired := validClaims()
	expired["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	noEmail := validClaims()
	delete(noEmail, "email")

	wrongAudience := validClaims()
	wrongAudience["aud"] = "someone-else"

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "https://evil.example.org/"

	tests := []struct {
		name  string
		token string
		kind  Kind
	}{
		{"unknown kid", sign(t, key, "rotated-away", validClaims()), KindNoPublicKey},
		{"expired", sign(t, key, testKid, expired), KindExpiredToken},
		{"no email", sign(t, key, testKid, noEmail), KindIDTokenRequired},
		{"wrong audience", sign(t, key, testKid, wrongAudience), KindInvalidClaims},
		{"wrong issuer", sign(t, key, testKid, wrongIssuer), KindInvalidClaims},
		{"wrong signing key", sign(t, other, testKid, validClaims()), KindInvalidSignature},
		{"malformed", "not.a.jwt", KindInvalidHeader},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tc.token)
			requireKind(t, err, tc.kind)
		})
	}
}

func TestVerify_HMACTokenRejected(t *testing.T) {
	key, _ := testKeys(t)
	srv := jwksServer(t, testKid, &key.PublicKey, nil)
	v := newTestVerifier(t, srv.URL, 0)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	tok.Header["kid"] = testKid
	s, err := tok.SignedString([]byte("guessable"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), s)
	requireKind(t, err, KindInvalidSignature)
}

func TestVerify_KeySetUnavailable(t *testing.T) {
	key, _ := testKeys(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	v := newTestVerifier(t, srv.URL, 0)

	_, err := v.Verify(context.Background(), sign(t, key, testKid, validClaims()))
	requireKind(t, err, KindKeySetUnavailable)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.True(t, ae.Transient())
}

func TestVerify_KeySetTimeout(t *testing.T) {
	key, _ := testKeys(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ks := NewKeySet(srv.URL, nil, 50*time.Millisecond, 0)
	v := NewVerifier(ks, testIssuer, testAudience, 0)

	_, err := v.Verify(context.Background(), sign(t, key, testKid, validClaims()))
	requireKind(t, err, KindKeySetUnavailable)
}

func TestKeySet_Cache(t *testing.T) {
	key, _ := testKeys(t)
	token := sign(t, key, testKid, validClaims())

	var hits int32
	srv := jwksServer(t, testKid, &key.PublicKey, &hits)

	cached := newTestVerifier(t, srv.URL, time.Minute)
	for i := 0; i < 3; i++ {
		_, err := cached.Verify(context.Background(), token)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	atomic.StoreInt32(&hits, 0)
	uncached := newTestVerifier(t, srv.URL, 0)
	for i := 0; i < 3; i++ {
		_, err := uncached.Verify(context.Background(), token)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestKeySet_CacheExpires(t *testing.T) {
	key, _ := testKeys(t)
	var hits int32
	srv := jwksServer(t, testKid, &key.PublicKey, &hits)

	now := time.Now()
	ks := NewKeySet(srv.URL, nil, time.Second, time.Minute)
	ks.now = func() time.Time { return now }

	_, err := ks.Key(context.Background(), testKid)
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = ks.Key(context.Background(), testKid)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestKeySet_NonRSAKey(t *testing.T) {
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	k, err := jwk.FromRaw(&ec.PublicKey)
	require.NoError(t, err)
	require.NoError(t, k.Set(jwk.KeyIDKey, "ec-1"))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(k))
	body, err := json.Marshal(set)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	ks := NewKeySet(srv.URL, nil, time.Second, 0)
	_, err = ks.Key(context.Background(), "ec-1")
	requireKind(t, err, KindNoPublicKey)
	_, err = ks.Key(context.Background(), testKid)
	requireKind(t, err, KindNoPublicKey)
}
