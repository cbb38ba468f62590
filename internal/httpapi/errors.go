package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stationcargo/cargostow/internal/apperr"
)

// writeError attaches err to the gin context (for ZapLogger's access log)
// and writes the status the error's Kind maps to (spec §7).
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.InvalidInput:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.PreconditionFailed:
		status = http.StatusUnprocessableEntity
	case apperr.Conflict:
		status = http.StatusConflict
	case apperr.Cancelled:
		status = 499 // client closed request, nginx convention
	}
	c.JSON(status, gin.H{"message": err.Error()})
}
