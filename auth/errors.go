package auth

import (
	"fmt"
	"net/http"

	"cidc/response"
)

// Kind classifies why a token was rejected.
type Kind string

const (
	KindMissingToken     Kind = "missing_token"
	KindInvalidHeader    Kind = "invalid_header"
	KindInvalidSignature Kind = "invalid_signature"
	KindExpiredToken     Kind = "expired_token"
	KindInvalidClaims    Kind = "invalid_claims"
	KindIDTokenRequired  Kind = "id_token_required"
	KindNoPublicKey      Kind = "no_public_key"
	// The issuer's key set could not be fetched. Says nothing about the token.
	KindKeySetUnavailable Kind = "key_set_unavailable"
)

// AuthError is an authentication failure. Its message is safe to show.
type AuthError struct {
	Kind Kind
	Msg  string
	Err  error
}

func authErr(kind Kind, err error, format string, args ...any) *AuthError {
	return &AuthError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Transient reports whether the same token may be accepted on retry.
func (e *AuthError) Transient() bool { return e.Kind == KindKeySetUnavailable }

func (e *AuthError) HTTPStatus() int                { return http.StatusUnauthorized }
func (e *AuthError) ErrorCode() response.ErrorCode { return response.ErrorCode(e.Kind) }
func (e *AuthError) PublicMessage() string          { return e.Msg }

// DeniedError means the caller is authenticated but may not perform the
// request. It is an expected outcome, not a fault.
type DeniedError struct {
	Email  string
	Reason string
}

func (e *DeniedError) Error() string                  { return e.Reason }
func (e *DeniedError) HTTPStatus() int                { return http.StatusUnauthorized }
func (e *DeniedError) ErrorCode() response.ErrorCode { return response.Unauthorized }
func (e *DeniedError) PublicMessage() string          { return e.Reason }
