package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims are the verified contents of an identity token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// KeyProvider resolves a key id to the issuer's public key.
type KeyProvider interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// Verifier checks identity tokens issued by a single trusted issuer.
type Verifier struct {
	keys   KeyProvider
	parser *jwt.Parser
}

func NewVerifier(keys KeyProvider, issuer, audience string, leeway time.Duration) *Verifier {
	return &Verifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(leeway),
		),
	}
}

// Verify checks the signature and claims of token and returns its claims.
// Every failure is an *AuthError.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, classify(err)
	}

	// Only id_tokens carry the email we identify users by.
	if claims.Email == "" {
		return nil, authErr(KindIDTokenRequired, nil,
			"An id_token with an 'email' field is required to authenticate")
	}
	return claims, nil
}

func classify(err error) *AuthError {
	var ae *AuthError
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, jwt.ErrTokenMalformed):
		return authErr(KindInvalidHeader, err, "Unable to parse authentication token.")
	case errors.Is(err, jwt.ErrTokenExpired):
		return authErr(KindExpiredToken, err, "Signature has expired. Try log in again with cidc login.")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return authErr(KindInvalidSignature, err, "Invalid token signature.")
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return authErr(KindInvalidClaims, err, "Incorrect claims, please check the audience and issuer.")
	}
	return authErr(KindInvalidSignature, err, "Unable to verify authentication token.")
}
