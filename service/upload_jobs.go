package service

import (
	"net/http"
	"strings"

	"cidc/auth"
	"cidc/dao/model"
	"cidc/response"

	"github.com/gin-gonic/gin"
)

type UploadJobHandler struct {
	coordinator Coordinator
}

func NewUploadJobHandler(c Coordinator) *UploadJobHandler {
	return &UploadJobHandler{coordinator: c}
}

func (h *UploadJobHandler) Register(g *gin.RouterGroup, a *auth.Authenticator) {
	g.GET("/upload_jobs/:id", a.Require("upload_jobs"), h.Get)
	g.PATCH("/upload_jobs/:id", a.Require("upload_jobs"), h.Update)
}

type jobURI struct {
	ID uint `uri:"id" binding:"required"`
}

type jobUpdate struct {
	Status        string  `json:"status" binding:"required"`
	StatusDetails *string `json:"status_details"`
}

func (h *UploadJobHandler) Get(c *gin.Context) {
	var uri jobURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequestError(c, "invalid upload job id")
		return
	}
	job, err := h.coordinator.GetJob(c.Request.Context(), uri.ID, auth.CurrentUser(c).Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("ETag", `"`+job.ETag+`"`)
	response.Success(c, job)
}

// ifMatch returns the etag of the If-Match header without quotes.
func ifMatch(c *gin.Context) string {
	v := strings.TrimSpace(c.GetHeader("If-Match"))
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

// Update changes a job's status. The caller must send the job's current
// etag in If-Match.
func (h *UploadJobHandler) Update(c *gin.Context) {
	var uri jobURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequestError(c, "invalid upload job id")
		return
	}
	etag := ifMatch(c)
	if etag == "" {
		response.HTTPError(c, http.StatusPreconditionRequired,
			"If-Match header with the job's etag is required", response.PreconditionNeeded)
		return
	}
	var body jobUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequestError(c, err.Error())
		return
	}
	status, err := model.ParseJobStatus(body.Status)
	if err != nil {
		response.BadRequestError(c, err.Error())
		return
	}

	job, err := h.coordinator.UpdateJobStatus(c.Request.Context(), uri.ID, auth.CurrentUser(c).Email,
		etag, status, body.StatusDetails)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("ETag", `"`+job.ETag+`"`)
	response.Success(c, job)
}
