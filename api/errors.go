package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

func writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, domain.ErrInvalidApprovalStep):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrIllegalTransition), errors.Is(err, domain.ErrJobStateConflict):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrNotFound.Error()})
}
