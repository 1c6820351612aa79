package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
)

type JSONResponse struct {
	Status    bool        `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

func RespondJSON(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, JSONResponse{
		Status:  code >= 200 && code < 300,
		Message: message,
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, err error) {
	c.JSON(code, JSONResponse{
		Status:  false,
		Message: err.Error(),
		Data:    nil,
	})
}

// RespondServiceError is the one place service errors become HTTP answers.
// Taxonomy messages are shown as is, anything else is logged and hidden.
func RespondServiceError(c *gin.Context, err error) {
	code := apperror.HTTPStatus(err)
	if code == http.StatusInternalServerError {
		ErrorLogger.WithFields(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Errorf("Unhandled error: %v", err)
		c.AbortWithStatusJSON(code, JSONResponse{Status: false, Message: "internal server error"})
		return
	}

	message := err.Error()
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(code, JSONResponse{
		Status:    false,
		Message:   message,
		Retryable: apperror.Retryable(err),
	})
}
