package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dosegate-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError writes err using the status and code of the *apierr.Error
// it wraps. Anything else is a 500 whose message is not echoed.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae.Status >= http.StatusInternalServerError && ae.Code == apierr.CodeInternal {
		_ = c.Error(err)
		RespondError(c, ae.Status, ae.Code, errInternal)
		return
	}
	RespondError(c, ae.Status, ae.Code, ae)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
