package auth

import (
	"fmt"
	"net/http"

	"cidc/dao/model"
)

// Resources with special meaning for users who are not fully enrolled.
const (
	// ResourceNewUsers is the registration endpoint.
	ResourceNewUsers = "new_users"
	// ResourceSelf is a user's own account info.
	ResourceSelf = "self"
)

// Authorize decides whether user may call method on resource. An empty
// allowed list admits any approved user. Denials are *DeniedError.
//
// Rules, first match wins:
//  1. unregistered users may only register;
//  2. disabled users may only read their own account;
//  3. unapproved users may only read their own account;
//  4. approved users need one of the allowed roles.
func Authorize(user *model.User, allowed []model.Role, resource, method string) error {
	if !user.IsRegistered() {
		if resource == ResourceNewUsers && method == http.MethodPost {
			return nil
		}
		return deny(user, "%s is not registered.", user.Email)
	}

	if user.Disabled {
		if resource == ResourceSelf && method == http.MethodGet {
			return nil
		}
		return deny(user, "%s's account is disabled.", user.Email)
	}

	if !user.IsApproved() {
		if resource == ResourceSelf && method == http.MethodGet {
			return nil
		}
		return deny(user, "%s's registration is pending approval", user.Email)
	}

	if len(allowed) > 0 && !user.HasRole(allowed...) {
		return deny(user, "%s is not authorized to access this endpoint.", user.Email)
	}
	return nil
}

func deny(user *model.User, format string, args ...any) *DeniedError {
	return &DeniedError{Email: user.Email, Reason: fmt.Sprintf(format, args...)}
}
