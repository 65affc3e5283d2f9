package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"cidc/auth"
	"cidc/dao/model"
	"cidc/ingestion"
	"cidc/response"

	"github.com/gin-gonic/gin"
)

// Templates bigger than this are rejected.
const maxTemplateSize = 32 << 20

// Coordinator is the upload protocol the handlers drive.
type Coordinator interface {
	ValidateTemplate(ctx context.Context, schemaID string, xlsx []byte) (*ingestion.ValidationResult, error)
	InitiateUpload(ctx context.Context, schemaID string, xlsx []byte, email string) (*ingestion.UploadResult, *ingestion.ValidationResult, error)
	GetJob(ctx context.Context, id uint, email string) (*model.UploadJob, error)
	UpdateJobStatus(ctx context.Context, id uint, email, etag string, status model.JobStatus, details *string) (*model.UploadJob, error)
	PollMergeStatus(ctx context.Context, id uint, email string) (*ingestion.MergeStatus, error)
}

// ValidateRoles may check templates without uploading them.
var ValidateRoles = []model.Role{model.RoleAdmin, model.RoleNCIBiobankUser}

// UploadRoles may start assay uploads and poll their merge status.
var UploadRoles = []model.Role{model.RoleAdmin, model.RoleCIMACBiofxUser}

type IngestionHandler struct {
	coordinator Coordinator
}

func NewIngestionHandler(c Coordinator) *IngestionHandler {
	return &IngestionHandler{coordinator: c}
}

func (h *IngestionHandler) Register(g *gin.RouterGroup, a *auth.Authenticator) {
	g.POST("/ingestion/validate", a.Require("ingestion.validate", ValidateRoles...), h.Validate)
	g.POST("/ingestion/upload", a.Require("ingestion.upload", UploadRoles...), h.Upload)
	g.GET("/ingestion/poll_upload_merge_status", a.Require("ingestion.poll_upload_merge_status", UploadRoles...), h.PollMergeStatus)
}

var errBadForm = errors.New("bad form")

// templateForm reads the schema id and the spreadsheet from a multipart
// request. It answers the request itself when the form is unusable.
func templateForm(c *gin.Context) (string, []byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxTemplateSize)
	if _, err := c.MultipartForm(); err != nil {
		response.BadRequestError(c, "Expected form content in request body, or failed to parse form content")
		return "", nil, errBadForm
	}
	fh, err := c.FormFile("template")
	if err != nil {
		response.BadRequestError(c, "Expected a template file in request body")
		return "", nil, errBadForm
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".xlsx") {
		response.BadRequestError(c, "Expected a .xlsx file")
		return "", nil, errBadForm
	}

	f, err := fh.Open()
	if err != nil {
		response.ServerError(c, "failed to read template", err)
		return "", nil, err
	}
	defer f.Close()
	xlsx, err := io.ReadAll(f)
	if err != nil {
		response.ServerError(c, "failed to read template", err)
		return "", nil, err
	}
	return c.PostForm("schema"), xlsx, nil
}

// Validate checks a template. Problems come back with status 200.
func (h *IngestionHandler) Validate(c *gin.Context) {
	schemaID, xlsx, err := templateForm(c)
	if err != nil {
		return
	}
	res, err := h.coordinator.ValidateTemplate(c.Request.Context(), schemaID, xlsx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// Upload starts an upload job and returns where each file must go.
func (h *IngestionHandler) Upload(c *gin.Context) {
	schemaID, xlsx, err := templateForm(c)
	if err != nil {
		return
	}
	user := auth.CurrentUser(c)
	res, invalid, err := h.coordinator.InitiateUpload(c.Request.Context(), schemaID, xlsx, user.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	if invalid != nil {
		response.Success(c, invalid)
		return
	}
	response.Success(c, res)
}

type pollRequest struct {
	ID uint `form:"id" binding:"required"`
}

func (h *IngestionHandler) PollMergeStatus(c *gin.Context) {
	var req pollRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequestError(c, "Expected a job id in query param 'id'")
		return
	}
	user := auth.CurrentUser(c)
	st, err := h.coordinator.PollMergeStatus(c.Request.Context(), req.ID, user.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, st)
}
