package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/service/silobag"
)

// SilobagHandler exposes silo-bag lifecycle mutations.
type SilobagHandler struct {
	svc       *silobag.Service
	snapshots Snapshots
	logger    *zap.Logger
}

// NewSilobagHandler constructs the HTTP handler adapter.
func NewSilobagHandler(svc *silobag.Service, snapshots Snapshots, logger *zap.Logger) *SilobagHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SilobagHandler{svc: svc, snapshots: snapshots, logger: logger}
}

// Create handles POST /silobags.
func (h *SilobagHandler) Create(c *gin.Context) {
	var in models.SilobagInput
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

// Extract handles POST /silobags/:id/extractions.
func (h *SilobagHandler) Extract(c *gin.Context) {
	var in models.ExtractInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	bag, err := h.snapshots.Silobag(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.svc.Extract(c.Request.Context(), bag, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, true, res)
}

// Close handles POST /silobags/:id/close.
func (h *SilobagHandler) Close(c *gin.Context) {
	bag, err := h.snapshots.Silobag(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.svc.Close(c.Request.Context(), bag)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, false, res)
}
