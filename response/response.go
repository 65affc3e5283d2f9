package response

import (
	"errors"
	"net/http"

	"cidc/logutils"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    ErrorCode `json:"error_code"`
	Message string    `json:"message"`
}

// Success sends data back to the client with HTTP 200.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// HTTPError aborts the request with the given HTTP code, error code and message.
func HTTPError(c *gin.Context, httpCode int, msg string, errorCode ErrorCode) {
	c.AbortWithStatusJSON(httpCode, ErrorBody{Code: errorCode, Message: msg})
}

// BadRequestError is used when the client sent something we cannot process.
func BadRequestError(c *gin.Context, msg string) {
	HTTPError(c, http.StatusBadRequest, msg, InvalidRequest)
}

// ServerError logs err with detail and sends a generic message to the client.
func ServerError(c *gin.Context, msg string, err error) {
	logutils.Log.WithFields(logutils.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Errorf("%s: %v", msg, err)
	_ = c.Error(err)
	HTTPError(c, http.StatusInternalServerError, msg, InternalError)
}

// Coded is implemented by errors that know their own HTTP status and code.
// PublicMessage is what the client sees; Error() may carry more detail and
// only reaches the logs for 5xx statuses.
type Coded interface {
	error
	HTTPStatus() int
	ErrorCode() ErrorCode
	PublicMessage() string
}

// Error sends err to the client. Errors implementing Coded choose their own
// status; anything else is treated as an internal error.
func Error(c *gin.Context, err error) {
	var coded Coded
	if errors.As(err, &coded) {
		if coded.HTTPStatus() >= http.StatusInternalServerError {
			ServerError(c, coded.PublicMessage(), err)
			return
		}
		HTTPError(c, coded.HTTPStatus(), coded.PublicMessage(), coded.ErrorCode())
		return
	}
	ServerError(c, "internal server error", err)
}
