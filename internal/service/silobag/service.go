// Package silobag holds silo-bag lifecycle mutations: creation, extraction
// and close.
package silobag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/operations"
	"github.com/mamadbah2/harvest/internal/service/mutation"
	"github.com/mamadbah2/harvest/internal/store"
)

// ErrClosed is wrapped by errors for mutations against a closed bag.
var ErrClosed = errors.New("silo bag is closed")

// Service builds and submits silo-bag mutations.
type Service struct {
	pipeline       *mutation.Pipeline
	organizationID string
	logger         *zap.Logger
	now            func() time.Time
	newID          func() string
}

// NewService constructs the silo-bag service for one organization.
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

// Create opens an active bag holding in.InitialKg.
func (s *Service) Create(ctx context.Context, in models.SilobagInput) (mutation.Result, error) {
	if err := models.Validate(in); err != nil {
		return mutation.Result{}, err
	}
	bag := models.Silobag{
		ID:             s.newID(),
		OrganizationID: s.organizationID,
		Name:           in.Name,
		Field:          in.Field,
		Crop:           in.Crop,
		InitialKg:      in.InitialKg,
		CurrentKg:      in.InitialKg,
		Status:         models.SilobagActive,
		Date:           s.dateOrNow(in.Date),
	}
	op := operations.CreateSilobag{Envelope: s.envelope(), Silobag: bag, MovementID: s.newID()}
	return s.submit(ctx, bag.ID, op, BuildCreate(op))
}

// Extract removes in.Kg from bag. The movement type defaults to substract.
// Extracting more than the current balance is allowed.
func (s *Service) Extract(ctx context.Context, bag models.Silobag, in models.ExtractInput) (mutation.Result, error) {
	if err := requireActive(bag); err != nil {
		return mutation.Result{}, err
	}
	if err := models.Validate(in); err != nil {
		return mutation.Result{}, err
	}
	kind := in.Type
	if kind == "" {
		kind = models.MovementSubstract
	}
	m := models.SilobagMovement{
		ID:             s.newID(),
		OrganizationID: bag.OrganizationID,
		SilobagID:      bag.ID,
		Type:           kind,
		KgChange:       -in.Kg,
		Date:           s.dateOrNow(in.Date),
		Notes:          in.Notes,
	}
	op := operations.ExtractSilobag{Envelope: s.envelope(), Movement: m}
	return s.submit(ctx, m.ID, op, BuildExtract(op))
}

// Close ends bag's lifecycle, writing off whatever balance it still holds
// when the close commits. bag only needs to identify an active bag.
func (s *Service) Close(ctx context.Context, bag models.Silobag) (mutation.Result, error) {
	if err := requireActive(bag); err != nil {
		return mutation.Result{}, err
	}
	m := models.SilobagMovement{
		ID:             s.newID(),
		OrganizationID: bag.OrganizationID,
		SilobagID:      bag.ID,
		Type:           models.MovementClose,
		Date:           s.now().UTC(),
	}
	op := operations.CloseSilobag{Envelope: s.envelope(), Movement: m}
	return s.submit(ctx, bag.ID, op, BuildClose(op))
}

func (s *Service) submit(ctx context.Context, id string, op operations.Operation, batch *store.Batch) (mutation.Result, error) {
	queued, err := s.pipeline.Submit(ctx, op, batch)
	if err != nil {
		s.logger.Warn("mutation failed", zap.String("kind", string(op.Kind())), zap.String("id", id), zap.Error(err))
		return mutation.Result{}, err
	}
	return mutation.Result{ID: id, Queued: queued}, nil
}

func (s *Service) envelope() operations.Envelope {
	return operations.Envelope{OpID: s.newID()}
}

func (s *Service) dateOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}

func requireActive(bag models.Silobag) error {
	if bag.ID == "" {
		return &models.ValidationError{Entity: "silo_bag", Reason: "snapshot without id"}
	}
	if bag.Status == models.SilobagClosed {
		return store.NewRejected(fmt.Errorf("silo bag %s: %w: %w", bag.ID, ErrClosed, store.ErrPreconditionFailed))
	}
	return nil
}
