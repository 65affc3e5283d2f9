package auth

import (
	"context"
	"errors"
	"strings"

	"cidc/dao/model"
	"cidc/logutils"
	"cidc/response"

	"github.com/gin-gonic/gin"
)

// TokenVerifier turns a bearer token into verified claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// IdentityResolver turns a verified email into a user.
type IdentityResolver interface {
	Resolve(ctx context.Context, email string) (*model.User, bool, error)
}

type ctxKey string

const userKey ctxKey = "currentUser"

// WithUser returns a copy of ctx carrying the acting user.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the acting user stored by the middleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// CurrentUser returns the acting user of an authenticated gin request.
func CurrentUser(c *gin.Context) *model.User {
	u, _ := UserFromContext(c.Request.Context())
	return u
}

// Authenticator runs token verification, identity resolution and the access
// policy in front of protected handlers.
type Authenticator struct {
	verifier TokenVerifier
	resolver IdentityResolver
}

func NewAuthenticator(verifier TokenVerifier, resolver IdentityResolver) *Authenticator {
	return &Authenticator{verifier: verifier, resolver: resolver}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Require protects a route. roles restricts access to approved users with
// one of those roles; none means any approved user.
func (a *Authenticator) Require(resource string, roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logutils.Log.WithFields(logutils.Fields{
			"method": c.Request.Method,
			"uri":    c.Request.RequestURI,
		})

		token := bearerToken(c)
		if token == "" {
			response.Error(c, authErr(KindMissingToken, nil, "Please provide proper credentials"))
			return
		}

		claims, err := a.verifier.Verify(ctx, token)
		if err != nil {
			var ae *AuthError
			if errors.As(err, &ae) && ae.Transient() {
				log.WithField("reason", ae.Kind).Errorf("issuer unavailable: %v", err)
			} else {
				log.WithField("reason", kindOf(err)).Warnf("rejected token: %v", err)
			}
			response.Error(c, err)
			return
		}

		user, _, err := a.resolver.Resolve(ctx, claims.Email)
		if err != nil {
			response.ServerError(c, "failed to look up user", err)
			return
		}
		c.Request = c.Request.WithContext(WithUser(ctx, user))

		if err := Authorize(user, roles, resource, c.Request.Method); err != nil {
			log.Infof("UNAUTHORIZED %s %s (user:%d:%s)", c.Request.Method, c.Request.RequestURI, user.ID, user.Email)
			response.Error(c, err)
			return
		}
		log.Infof("AUTHORIZED %s %s (user:%d:%s)", c.Request.Method, c.Request.RequestURI, user.ID, user.Email)
		c.Next()
	}
}

func kindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
