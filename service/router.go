package service

import (
	"cidc/auth"
	"cidc/logutils"

	"github.com/gin-gonic/gin"
)

// Handlers are the route groups served by the API.
type Handlers struct {
	Auth       *auth.Authenticator
	Ingestion  *IngestionHandler
	UploadJobs *UploadJobHandler
	Users      *UserHandler
	MinCLI     string
}

// NewRouter wires every route behind request logging and the CLI version
// check.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(logutils.GinLogger(), gin.Recovery(), CLIVersion(h.MinCLI))

	api := r.Group("")
	h.Ingestion.Register(api, h.Auth)
	h.UploadJobs.Register(api, h.Auth)
	h.Users.Register(api, h.Auth)
	return r
}
