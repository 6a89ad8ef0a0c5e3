package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/store"
)

var subscribable = map[string]bool{
	models.CollectionSessions:  true,
	models.CollectionRegisters: true,
	models.CollectionSilobags:  true,
	models.CollectionMovements: true,
	models.CollectionLogistics: true,
}

// SubscriptionHandler streams live query snapshots as server-sent events.
type SubscriptionHandler struct {
	subscriber     store.Subscriber
	organizationID string
	logger         *zap.Logger
}

// NewSubscriptionHandler constructs the HTTP handler adapter.
func NewSubscriptionHandler(subscriber store.Subscriber, organizationID string, logger *zap.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionHandler{subscriber: subscriber, organizationID: organizationID, logger: logger}
}

// Stream handles GET /subscriptions/:collection. Query string pairs become
// equality filters; results are always scoped to the organization.
func (h *SubscriptionHandler) Stream(c *gin.Context) {
	collection := c.Param("collection")
	if !subscribable[collection] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
		return
	}

	query := store.Query{Collection: collection}
	for field, values := range c.Request.URL.Query() {
		if field == "organization_id" || len(values) == 0 {
			continue
		}
		query.Filters = append(query.Filters, store.Where(field, values[0]))
	}
	if h.organizationID != "" {
		query.Filters = append(query.Filters, store.Where("organization_id", h.organizationID))
	}

	snapshots, err := h.subscriber.Subscribe(c.Request.Context(), query)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Debug("subscription opened", zap.String("collection", collection), zap.Int("filters", len(query.Filters)))
	c.Stream(func(w io.Writer) bool {
		snap, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("snapshot", gin.H{"at": snap.At, "documents": snap.Documents})
		return true
	})
}
