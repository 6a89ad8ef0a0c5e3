package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/service/logistics"
)

// LogisticsHandler exposes transport order mutations.
type LogisticsHandler struct {
	svc    *logistics.Service
	logger *zap.Logger
}

// NewLogisticsHandler constructs the HTTP handler adapter.
func NewLogisticsHandler(svc *logistics.Service, logger *zap.Logger) *LogisticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogisticsHandler{svc: svc, logger: logger}
}

// Create handles POST /logistics.
func (h *LogisticsHandler) Create(c *gin.Context) {
	var in models.LogisticsInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	res, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, true, res)
}

// UpdateStatus handles PATCH /logistics/:id/status.
func (h *LogisticsHandler) UpdateStatus(c *gin.Context) {
	var in models.LogisticsStatusInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	res, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, false, res)
}
