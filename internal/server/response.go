package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskpilot/internal/errs"
)

// Resp is the common JSON envelope.
type Resp struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func successResp(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Resp{Code: http.StatusOK, Message: "success", Data: data})
}

// errorResp maps the service error taxonomy onto HTTP status codes.
func errorResp(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	}
	c.JSON(status, Resp{Code: status, Message: err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Resp{Code: http.StatusBadRequest, Message: message})
}
