package auth

import (
	"context"
	"errors"
	"time"

	"cidc/dao/model"
	"cidc/dao/query"
	"cidc/logutils"
)

// UserFinder is the part of the user store identity resolution needs.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	TouchAccessed(ctx context.Context, id uint, t time.Time) error
}

// Resolver maps a verified email to the application's user record.
type Resolver struct {
	users UserFinder
	now   func() time.Time
}

func NewResolver(users UserFinder) *Resolver {
	return &Resolver{users: users, now: time.Now}
}

// Resolve returns the user registered under email. For unknown emails it
// returns an unsaved placeholder and isNew=true; lookups never register
// anyone.
func (r *Resolver) Resolve(ctx context.Context, email string) (user *model.User, isNew bool, err error) {
	user, err = r.users.FindByEmail(ctx, email)
	if errors.Is(err, query.ErrNotFound) {
		return model.Unregistered(email), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	now := r.now()
	if err := r.users.TouchAccessed(ctx, user.ID, now); err != nil {
		// Not worth failing the request over.
		logutils.Log.WithField("email", email).Warnf("updating last access: %v", err)
	} else {
		user.AccessedAt = now
	}
	return user, false, nil
}
