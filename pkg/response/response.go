package response

import (
	"net/http"

	appErrors "github.com/charlesng35/waitlist/pkg/errors"
	"github.com/gin-gonic/gin"
)

// Response defines the API payload returned to the landing page forms.
type Response struct {
	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// OK writes the `{"ok": true}` acknowledgement.
func OK(c *gin.Context) {
	c.JSON(http.StatusOK, Response{OK: true})
}

// NoContent writes an empty response with the supplied status.
func NoContent(c *gin.Context, statusCode int) {
	c.Status(statusCode)
	c.Writer.WriteHeaderNow()
}

// Error writes a JSON error response derived from an AppError. Only the public message
// reaches the client; internal causes stay in the server logs.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, Response{Error: appErr.Message})
}

// Abort writes the error response and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
