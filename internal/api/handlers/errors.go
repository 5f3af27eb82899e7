package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"example.com/backstage/services/marketsync/internal/services"
)

// errorBody is the wire shape of an API error. The field casing is
// what existing integrations parse, so it stays as is.
type errorBody struct {
	Message string `json:"Message"`
	Code    string `json:"code"`
}

// writeError maps a service error onto the API error envelope. Domain
// errors come back as 400 so existing callers keep working; anything
// unrecognized is a 500.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "GENERAL"

	switch {
	case errors.Is(err, services.ErrAccountNotFound):
		status = http.StatusBadRequest
		code = "ACCOUNT_NOT_FOUND"
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrCredential),
		errors.Is(err, services.ErrStoreConflict):
		status = http.StatusBadRequest
	}

	c.JSON(status, errorBody{
		Message: err.Error(),
		Code:    code,
	})
}
