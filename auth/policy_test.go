package auth

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"cidc/dao/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedUser(role model.Role) *model.User {
	now := time.Now()
	u := &model.User{Email: "approved@example.org", Role: &role, ApprovalDate: &now}
	u.ID = 1
	return u
}

func TestAuthorize_Unregistered(t *testing.T) {
	u := model.Unregistered("new@example.org")

	assert.NoError(t, Authorize(u, nil, ResourceNewUsers, http.MethodPost))

	err := Authorize(u, nil, ResourceNewUsers, http.MethodGet)
	var denied *DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, "new@example.org is not registered.", denied.Reason)

	assert.Error(t, Authorize(u, nil, "ingestion/upload", http.MethodPost))
	assert.Error(t, Authorize(u, nil, ResourceSelf, http.MethodGet))
}

func TestAuthorize_PendingApproval(t *testing.T) {
	u := &model.User{Email: "pending@example.org"}
	u.ID = 2

	assert.NoError(t, Authorize(u, nil, ResourceSelf, http.MethodGet))

	err := Authorize(u, nil, "ingestion/upload", http.MethodPost)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration is pending approval")

	assert.Error(t, Authorize(u, nil, ResourceSelf, http.MethodPatch))
}

func TestAuthorize_Disabled(t *testing.T) {
	u := approvedUser(model.RoleAdmin)
	u.Disabled = true

	assert.NoError(t, Authorize(u, nil, ResourceSelf, http.MethodGet))
	err := Authorize(u, []model.Role{model.RoleAdmin}, "users", http.MethodGet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account is disabled")
}

func TestAuthorize_Roles(t *testing.T) {
	u := approvedUser(model.RoleCIMACBiofxUser)

	assert.NoError(t, Authorize(u, nil, "upload_jobs", http.MethodPatch))
	assert.NoError(t, Authorize(u, []model.Role{model.RoleCIMACBiofxUser}, "ingestion/upload", http.MethodPost))
	assert.NoError(t, Authorize(u, []model.Role{model.RoleAdmin, model.RoleCIMACBiofxUser}, "ingestion/upload", http.MethodPost))

	err := Authorize(u, []model.Role{model.RoleNCIBiobankUser}, "ingestion/validate", http.MethodPost)
	require.Error(t, err)
	assert.Equal(t, "approved@example.org is not authorized to access this endpoint.", err.Error())
}

func TestAuthorize_ApprovedWithoutRole(t *testing.T) {
	now := time.Now()
	u := &model.User{Email: "norole@example.org", ApprovalDate: &now}
	u.ID = 3

	assert.NoError(t, Authorize(u, nil, "users", http.MethodGet))
	assert.Error(t, Authorize(u, []model.Role{model.RoleAdmin}, "users", http.MethodGet))
}
