package handlers

import (
	"errors"
	"net/http"

	"opsdash/apperrors"

	"github.com/gin-gonic/gin"
)

var statusByCode = map[apperrors.Code]int{
	apperrors.CodeInvalidArgument:  http.StatusBadRequest,
	apperrors.CodeNotFound:         http.StatusNotFound,
	apperrors.CodeUnauthenticated:  http.StatusUnauthorized,
	apperrors.CodeUnavailable:      http.StatusServiceUnavailable,
	apperrors.CodeCanceled:         http.StatusRequestTimeout,
	apperrors.CodeDeadlineExceeded: http.StatusGatewayTimeout,
}

// writeError renders err as {"error", "code"}. Causes (driver errors) are
// never echoed to the client.
func writeError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := "Internal server error"
	var appErr *apperrors.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		message = appErr.Message
	}

	c.JSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}
