package ingestion

import (
	"fmt"
	"net/http"

	"cidc/response"
)

// codedError is a coordinator failure with a fixed HTTP mapping.
type codedError struct {
	status int
	code   response.ErrorCode
	msg    string
}

func (e *codedError) Error() string                  { return e.msg }
func (e *codedError) HTTPStatus() int                { return e.status }
func (e *codedError) ErrorCode() response.ErrorCode { return e.code }
func (e *codedError) PublicMessage() string          { return e.msg }

var (
	ErrBadRequest        = &codedError{http.StatusBadRequest, response.InvalidRequest, "bad request"}
	ErrJobNotFound       = &codedError{http.StatusNotFound, response.NotFound, "upload job not found"}
	ErrStaleETag         = &codedError{http.StatusPreconditionFailed, response.PreconditionFailed, "the job was modified since you last read it"}
	ErrInvalidTransition = &codedError{http.StatusBadRequest, response.InvalidRequest, "invalid status transition"}
)

// detailed carries a specific message for one of the sentinels above.
type detailed struct {
	base *codedError
	msg  string
}

func (e *detailed) Error() string                  { return e.msg }
func (e *detailed) Unwrap() error                  { return e.base }
func (e *detailed) HTTPStatus() int                { return e.base.status }
func (e *detailed) ErrorCode() response.ErrorCode { return e.base.code }
func (e *detailed) PublicMessage() string          { return e.msg }

func badRequest(format string, args ...any) error {
	return &detailed{base: ErrBadRequest, msg: fmt.Sprintf(format, args...)}
}

// GrantError means the job was persisted but its uploader could not be
// given write access. The job is not rolled back.
type GrantError struct {
	JobID uint
	Email string
	Err   error
}

func (e *GrantError) Error() string {
	return fmt.Sprintf("granting upload access to %s for job %d: %v", e.Email, e.JobID, e.Err)
}
func (e *GrantError) Unwrap() error                  { return e.Err }
func (e *GrantError) HTTPStatus() int                { return http.StatusInternalServerError }
func (e *GrantError) ErrorCode() response.ErrorCode { return response.InternalError }
func (e *GrantError) PublicMessage() string {
	return fmt.Sprintf("upload job %d was created but write access could not be granted", e.JobID)
}

// RevokeError means a user kept write access it should have lost.
type RevokeError struct {
	Email string
	Err   error
}

func (e *RevokeError) Error() string {
	return fmt.Sprintf("revoking upload access of %s: %v", e.Email, e.Err)
}
func (e *RevokeError) Unwrap() error                  { return e.Err }
func (e *RevokeError) HTTPStatus() int                { return http.StatusInternalServerError }
func (e *RevokeError) ErrorCode() response.ErrorCode { return response.InternalError }
func (e *RevokeError) PublicMessage() string          { return "failed to revoke upload access" }
