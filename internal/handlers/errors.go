package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shoporders/internal/orders"
)

var errBadRequest = errors.New("bad request")

// writeError maps a failure onto a status code. Unexpected errors are
// attached to the context for the request log and hidden from the client.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrUnscoped):
		status = http.StatusBadRequest
	case errors.Is(err, orders.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orders.ErrIllegalTransition):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
