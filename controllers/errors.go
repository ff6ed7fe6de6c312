package controllers

import (
	"errors"
	"net/http"

	"escrim/app"
	"escrim/db"
	"escrim/models"
	"escrim/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError 把仓储/校验错误映射成 HTTP 状态；存储故障只记日志，不回传细节
func (s *Srv) respondError(c *gin.Context, op string, err error) {
	var (
		vErr     *validation.Error
		descErr  *models.DescriptorError
		stockErr *db.InsufficientStockError
	)
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, vErr)
	case errors.As(err, &descErr):
		c.JSON(http.StatusBadRequest, app.H{"error": descErr.Error(), "field": descErr.Kind})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, app.H{
			"error":     stockErr.Error(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.Is(err, db.ErrDuplicatePrescription), errors.Is(err, db.ErrDuplicate):
		c.JSON(http.StatusConflict, app.H{"error": err.Error()})
	case errors.Is(err, db.ErrMedicationNotFound), errors.Is(err, db.ErrIncidentNotFound), errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, app.H{"error": err.Error()})
	case errors.Is(err, db.ErrInvalidQuantity), errors.Is(err, db.ErrNegativeQuantity):
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error(), "field": "quantity"})
	default:
		s.Log.Error(op, zap.Error(err), zap.String("user_id", app.UserID(c)))
		c.JSON(http.StatusInternalServerError, app.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, field, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg, "field": field})
}
