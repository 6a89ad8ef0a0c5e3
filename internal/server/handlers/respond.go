package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/service/mutation"
	"github.com/mamadbah2/harvest/internal/store"
)

// Snapshots supplies the current documents the write side computes from.
type Snapshots interface {
	Session(ctx context.Context, id string) (models.HarvestSession, error)
	Register(ctx context.Context, id string) (models.Register, error)
	Silobag(ctx context.Context, id string) (models.Silobag, error)
}

// writeResult answers 202 when the mutation was queued for later replay.
func writeResult(c *gin.Context, created bool, res mutation.Result) {
	status := http.StatusOK
	switch {
	case res.Queued:
		status = http.StatusAccepted
	case created:
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Error(), "entity": ve.Entity, "id": ve.ID})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case store.IsRejected(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case store.IsUnavailable(err), errors.Is(err, store.ErrLinkDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func bindJSON(c *gin.Context, logger *zap.Logger, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}
