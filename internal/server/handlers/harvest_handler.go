package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/service/harvest"
)

// HarvestHandler exposes harvest session and register mutations.
type HarvestHandler struct {
	svc       *harvest.Service
	snapshots Snapshots
	logger    *zap.Logger
}

// NewHarvestHandler constructs the HTTP handler adapter.
func NewHarvestHandler(svc *harvest.Service, snapshots Snapshots, logger *zap.Logger) *HarvestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HarvestHandler{svc: svc, snapshots: snapshots, logger: logger}
}

type startSessionRequest struct {
	Session models.StartSessionInput `json:"session"`
	Catalog models.Catalog           `json:"catalog"`
}

// StartSession handles POST /sessions.
func (h *HarvestHandler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	res, err := h.svc.StartHarvestSession(c.Request.Context(), req.Session, req.Catalog)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, true, res)
}

// UpdateManager handles PATCH /sessions/:id/manager.
func (h *HarvestHandler) UpdateManager(c *gin.Context) {
	var manager models.Ref
	if !bindJSON(c, h.logger, &manager) {
		return
	}
	res, err := h.svc.UpdateHarvestManager(c.Request.Context(), c.Param("id"), manager)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, false, res)
}

// UpsertHarvesters handles PUT /sessions/:id/harvesters.
func (h *HarvestHandler) UpsertHarvesters(c *gin.Context) {
	var harvesters []models.HarvesterInput
	if !bindJSON(c, h.logger, &harvesters) {
		return
	}
	res, err := h.svc.UpsertHarvesters(c.Request.Context(), c.Param("id"), harvesters)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, false, res)
}

// UpdateProgress handles PATCH /sessions/:id/progress.
func (h *HarvestHandler) UpdateProgress(c *gin.Context) {
	var in models.ProgressInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	session, err := h.snapshots.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.svc.UpdateSessionProgress(c.Request.Context(), session, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, false, res)
}

// AddRegister handles POST /sessions/:id/registers.
func (h *HarvestHandler) AddRegister(c *gin.Context) {
	var in models.RegisterInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	session, err := h.snapshots.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.svc.AddRegister(c.Request.Context(), session, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, true, res)
}

// UpdateRegister handles PUT /sessions/:id/registers/:registerId.
func (h *HarvestHandler) UpdateRegister(c *gin.Context) {
	var in models.RegisterInput
	if !bindJSON(c, h.logger, &in) {
		return
	}
	ctx := c.Request.Context()
	session, err := h.snapshots.Session(ctx, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	previous, err := h.snapshots.Register(ctx, c.Param("registerId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.svc.UpdateRegister(ctx, session, previous, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, false, res)
}

// DeleteRegister handles DELETE /sessions/:id/registers/:registerId.
func (h *HarvestHandler) DeleteRegister(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := h.snapshots.Session(ctx, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	register, err := h.snapshots.Register(ctx, c.Param("registerId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	res, err := h.svc.DeleteRegister(ctx, session, register)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	writeResult(c, false, res)
}
