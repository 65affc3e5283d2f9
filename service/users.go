package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cidc/auth"
	"cidc/dao/model"
	"cidc/dao/query"
	"cidc/logutils"
	"cidc/response"

	"github.com/gin-gonic/gin"
)

// UserStore is the persistence the user endpoints need.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id uint) (*model.User, error)
	Save(ctx context.Context, u *model.User) error
}

type UserHandler struct {
	users UserStore
	now   func() time.Time
}

func NewUserHandler(users UserStore) *UserHandler {
	return &UserHandler{users: users, now: time.Now}
}

func (h *UserHandler) Register(g *gin.RouterGroup, a *auth.Authenticator) {
	g.POST("/new_users", a.Require(auth.ResourceNewUsers), h.Create)
	g.GET("/users/self", a.Require(auth.ResourceSelf), h.Self)
	g.PATCH("/users/:id", a.Require("users", model.RoleAdmin), h.Update)
}

type newUser struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Organization string `json:"organization"`
}

// Create registers the token holder. The email always comes from the
// token; new users start unapproved and without a role.
func (h *UserHandler) Create(c *gin.Context) {
	current := auth.CurrentUser(c)
	if current.IsRegistered() {
		response.BadRequestError(c, current.Email+" is already registered.")
		return
	}
	var req newUser
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, err.Error())
		return
	}
	u := &model.User{
		Email:        current.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Organization: req.Organization,
		AccessedAt:   h.now(),
	}
	if err := h.users.Create(c.Request.Context(), u); err != nil {
		response.ServerError(c, "failed to register user", err)
		return
	}
	logutils.Log.WithField("email", u.Email).Info("registered new user")
	c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) Self(c *gin.Context) {
	response.Success(c, auth.CurrentUser(c))
}

type userURI struct {
	ID uint `uri:"id" binding:"required"`
}

type userUpdate struct {
	Role     *string `json:"role"`
	Approve  *bool   `json:"approve"`
	Disabled *bool   `json:"disabled"`
}

// Update lets admins assign roles, approve and disable accounts. Approval
// is recorded once and never moved.
func (h *UserHandler) Update(c *gin.Context) {
	var uri userURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequestError(c, "invalid user id")
		return
	}
	var req userUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	u, err := h.users.Get(ctx, uri.ID)
	if errors.Is(err, query.ErrNotFound) {
		response.HTTPError(c, http.StatusNotFound, "user not found", response.NotFound)
		return
	}
	if err != nil {
		response.ServerError(c, "failed to load user", err)
		return
	}

	if req.Role != nil {
		role, err := model.ParseRole(*req.Role)
		if err != nil {
			response.BadRequestError(c, err.Error())
			return
		}
		u.Role = &role
	}
	if req.Approve != nil && *req.Approve && u.ApprovalDate == nil {
		now := h.now()
		u.ApprovalDate = &now
	}
	if req.Disabled != nil {
		u.Disabled = *req.Disabled
	}
	if err := h.users.Save(ctx, u); err != nil {
		response.ServerError(c, "failed to update user", err)
		return
	}
	logutils.Log.WithFields(logutils.Fields{
		"admin": auth.CurrentUser(c).Email,
		"user":  u.Email,
	}).Info("updated user")
	response.Success(c, u)
}
