// Package logistics records transport orders.
package logistics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/operations"
	"github.com/mamadbah2/harvest/internal/service/mutation"
	"github.com/mamadbah2/harvest/internal/store"
)

// Service builds and submits logistics mutations.
type Service struct {
	pipeline       *mutation.Pipeline
	organizationID string
	logger         *zap.Logger
	now            func() time.Time
	newID          func() string
}

// NewService constructs the logistics service for one organization.
func NewService(pipeline *mutation.Pipeline, organizationID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pipeline:       pipeline,
		organizationID: organizationID,
		logger:         logger,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// Create records a new order, always starting in transit.
func (s *Service) Create(ctx context.Context, in models.LogisticsInput) (mutation.Result, error) {
	if err := models.Validate(in); err != nil {
		return mutation.Result{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	order := models.Logistics{
		ID:             s.newID(),
		OrganizationID: s.organizationID,
		Field:          in.Field,
		Crop:           in.Crop,
		Company:        in.Company,
		Driver:         in.Driver,
		LicensePlate:   in.LicensePlate,
		Destination:    in.Destination,
		Status:         models.LogisticsInTransit,
		Date:           date.UTC(),
	}
	op := operations.CreateLogistics{Envelope: operations.Envelope{OpID: s.newID()}, Logistics: order}
	return s.submit(ctx, order.ID, op, BuildCreate(op))
}

// UpdateStatus moves an order to in.Status.
func (s *Service) UpdateStatus(ctx context.Context, id string, in models.LogisticsStatusInput) (mutation.Result, error) {
	if id == "" {
		return mutation.Result{}, &models.ValidationError{Entity: "logistics_id", Reason: "required"}
	}
	if err := models.Validate(in); err != nil {
		return mutation.Result{}, err
	}
	op := operations.UpdateLogisticsStatus{Envelope: operations.Envelope{OpID: s.newID()}, LogisticsID: id, Status: in.Status}
	return s.submit(ctx, id, op, BuildUpdateStatus(op))
}

func (s *Service) submit(ctx context.Context, id string, op operations.Operation, batch *store.Batch) (mutation.Result, error) {
	queued, err := s.pipeline.Submit(ctx, op, batch)
	if err != nil {
		s.logger.Warn("mutation failed", zap.String("kind", string(op.Kind())), zap.String("id", id), zap.Error(err))
		return mutation.Result{}, err
	}
	return mutation.Result{ID: id, Queued: queued}, nil
}

// BuildCreate writes the order document.
func BuildCreate(op operations.CreateLogistics) *store.Batch {
	b := store.NewBatch()
	b.Create(models.CollectionLogistics, op.Logistics.ID, op.Logistics)
	return b
}

// BuildUpdateStatus patches the order status.
func BuildUpdateStatus(op operations.UpdateLogisticsStatus) *store.Batch {
	b := store.NewBatch()
	b.Update(models.CollectionLogistics, op.LogisticsID, store.Patch{"status": op.Status})
	return b
}
