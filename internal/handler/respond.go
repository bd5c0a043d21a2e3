// Package handler exposes the service over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stayloft/service-booking/internal/domain/shared"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondError maps a domain error kind to an HTTP status. Unknown errors
// surface as 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	kind := shared.KindOf(err)
	status := http.StatusInternalServerError
	message := "internal server error"

	switch kind {
	case shared.KindValidation:
		status, message = http.StatusBadRequest, err.Error()
	case shared.KindNotFound:
		status, message = http.StatusNotFound, err.Error()
	case shared.KindConflict:
		status, message = http.StatusConflict, err.Error()
	case shared.KindInvalidState:
		status, message = http.StatusUnprocessableEntity, err.Error()
	case shared.KindUnavailable:
		status, message = http.StatusServiceUnavailable, err.Error()
	}

	c.JSON(status, errorBody{Error: message, Kind: string(kind)})
}
