package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/queue"
)

// SyncQueue is the part of the offline queue the sync endpoints need.
type SyncQueue interface {
	Drain(ctx context.Context) (queue.DrainResult, error)
	Status(ctx context.Context) (queue.Status, error)
	PeekAll(ctx context.Context) ([]queue.Entry, error)
}

// SyncHandler exposes manual sync and the sync indicator.
type SyncHandler struct {
	queue  SyncQueue
	logger *zap.Logger
}

// NewSyncHandler constructs the HTTP handler adapter.
func NewSyncHandler(q SyncQueue, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{queue: q, logger: logger}
}

type drainResponse struct {
	Replayed  int          `json:"replayed"`
	Remaining int          `json:"remaining"`
	Halted    *queue.Entry `json:"halted,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Drain handles POST /sync. A halted drain is reported in the body; the
// halted entry stays queued.
func (h *SyncHandler) Drain(c *gin.Context) {
	// the drain outlives a client that disconnects mid-way
	result, err := h.queue.Drain(context.WithoutCancel(c.Request.Context()))
	resp := drainResponse{Replayed: result.Replayed, Remaining: result.Remaining, Halted: result.Halted}
	if err != nil {
		if result.Halted == nil {
			writeError(c, h.logger, err)
			return
		}
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// Status handles GET /sync/status.
func (h *SyncHandler) Status(c *gin.Context) {
	st, err := h.queue.Status(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Queue handles GET /sync/queue.
func (h *SyncHandler) Queue(c *gin.Context) {
	entries, err := h.queue.PeekAll(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if entries == nil {
		entries = []queue.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
