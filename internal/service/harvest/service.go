// Package harvest holds the harvest session and delivery register mutations.
package harvest

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

// Service builds and submits harvest mutations.
type Service struct {
	pipeline       *mutation.Pipeline
	organizationID string
	logger         *zap.Logger
	now            func() time.Time
	newID          func() string
}

// NewService constructs the harvest service for one organization.
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

// StartHarvestSession resolves every reference against catalog and creates a
// pending session with zeroed accumulators.
func (s *Service) StartHarvestSession(ctx context.Context, in models.StartSessionInput, catalog models.Catalog) (mutation.Result, error) {
	if err := models.Validate(in); err != nil {
		return mutation.Result{}, err
	}

	campaign, err := models.Resolve("campaign", catalog.Campaigns, in.CampaignID)
	if err != nil {
		return mutation.Result{}, err
	}
	field, err := models.Resolve("field", catalog.Fields, in.FieldID)
	if err != nil {
		return mutation.Result{}, err
	}
	plot, err := models.Resolve("plot", catalog.Plots, in.PlotID)
	if err != nil {
		return mutation.Result{}, err
	}
	crop, err := models.Resolve("crop", catalog.Crops, in.CropID)
	if err != nil {
		return mutation.Result{}, err
	}
	manager, err := models.Resolve("harvest_manager", catalog.Managers, in.ManagerID)
	if err != nil {
		return mutation.Result{}, err
	}
	harvesters := make([]models.Harvester, 0, len(in.HarvesterIDs))
	for _, id := range in.HarvesterIDs {
		ref, err := models.Resolve("harvester", catalog.Harvesters, id)
		if err != nil {
			return mutation.Result{}, err
		}
		harvesters = append(harvesters, models.Harvester{ID: ref.ID, Name: ref.Name})
	}

	session := models.HarvestSession{
		ID:             s.newID(),
		OrganizationID: s.organizationID,
		Campaign:       campaign,
		Field:          field,
		Plot:           plot,
		Crop:           crop,
		HarvestManager: manager,
		Harvesters:     harvesters,
		Status:         models.SessionPending,
		Hectares:       in.Hectares,
		EstimatedYield: in.EstimatedYield,
		Yields:         models.ComputeYields(0, 0, in.Hectares, in.EstimatedYield),
		Date:           s.dateOrNow(in.Date),
	}

	op := operations.StartHarvestSession{Envelope: s.envelope(), Session: session}
	return s.submit(ctx, op.Session.ID, op, BuildStartSession(op))
}

// UpdateHarvestManager replaces the session manager.
func (s *Service) UpdateHarvestManager(ctx context.Context, sessionID string, manager models.Ref) (mutation.Result, error) {
	if sessionID == "" {
		return mutation.Result{}, &models.ValidationError{Entity: "session_id", Reason: "required"}
	}
	if err := models.Validate(manager); err != nil {
		return mutation.Result{}, err
	}
	op := operations.UpdateHarvestManager{Envelope: s.envelope(), SessionID: sessionID, Manager: manager}
	return s.submit(ctx, sessionID, op, BuildUpdateManager(op))
}

// UpsertHarvesters replaces the roster, coercing numeric fields.
func (s *Service) UpsertHarvesters(ctx context.Context, sessionID string, in []models.HarvesterInput) (mutation.Result, error) {
	if sessionID == "" {
		return mutation.Result{}, &models.ValidationError{Entity: "session_id", Reason: "required"}
	}
	harvesters := make([]models.Harvester, 0, len(in))
	for _, h := range in {
		if err := models.Validate(h); err != nil {
			return mutation.Result{}, err
		}
		harvesters = append(harvesters, h.Harvester())
	}
	op := operations.UpsertHarvesters{Envelope: s.envelope(), SessionID: sessionID, Harvesters: harvesters}
	return s.submit(ctx, sessionID, op, BuildUpsertHarvesters(op))
}

// UpdateSessionProgress sets status and harvested hectares on session.
func (s *Service) UpdateSessionProgress(ctx context.Context, session models.HarvestSession, in models.ProgressInput) (mutation.Result, error) {
	if err := requireSession(session); err != nil {
		return mutation.Result{}, err
	}
	if err := models.Validate(in); err != nil {
		return mutation.Result{}, err
	}
	op := operations.UpdateSessionProgress{
		Envelope:          s.envelope(),
		SessionID:         session.ID,
		Status:            in.Status,
		HarvestedHectares: in.HarvestedHectares,
	}
	return s.submit(ctx, session.ID, op, BuildUpdateProgress(op))
}

// AddRegister records a delivery against session.
func (s *Service) AddRegister(ctx context.Context, session models.HarvestSession, in models.RegisterInput) (mutation.Result, error) {
	if err := requireSession(session); err != nil {
		return mutation.Result{}, err
	}
	if err := in.Check(); err != nil {
		return mutation.Result{}, err
	}

	register := s.register(s.newID(), session.ID, in)
	op := operations.AddRegister{Envelope: s.envelope(), Register: register}

	if register.Type == models.RegisterSilobag && in.NewSilobag != nil {
		bag := models.Silobag{
			ID:             s.newID(),
			OrganizationID: s.organizationID,
			Name:           in.NewSilobag.Name,
			Field:          in.NewSilobag.Field,
			Crop:           in.NewSilobag.Crop,
			Status:         models.SilobagActive,
			Date:           register.Date,
		}
		op.NewSilobag = &bag
		op.Register.Silobag = &models.SilobagDetails{Silobag: models.Ref{ID: bag.ID, Name: bag.Name}}
	}

	return s.submit(ctx, register.ID, op, BuildAddRegister(op))
}

// UpdateRegister replaces previous with the values of in.
func (s *Service) UpdateRegister(ctx context.Context, session models.HarvestSession, previous models.Register, in models.RegisterInput) (mutation.Result, error) {
	if err := requireSession(session); err != nil {
		return mutation.Result{}, err
	}
	if err := requireRegister(session, previous); err != nil {
		return mutation.Result{}, err
	}
	if in.NewSilobag != nil {
		return mutation.Result{}, &models.ValidationError{Entity: "new_silo_bag", Reason: "not supported when editing a register"}
	}
	if err := in.Check(); err != nil {
		return mutation.Result{}, err
	}

	next := s.register(previous.ID, session.ID, in)
	next.OrganizationID = previous.OrganizationID
	op := operations.UpdateRegister{Envelope: s.envelope(), Previous: previous, Register: next}
	return s.submit(ctx, previous.ID, op, BuildUpdateRegister(op))
}

// DeleteRegister removes register from session.
func (s *Service) DeleteRegister(ctx context.Context, session models.HarvestSession, register models.Register) (mutation.Result, error) {
	if err := requireSession(session); err != nil {
		return mutation.Result{}, err
	}
	if err := requireRegister(session, register); err != nil {
		return mutation.Result{}, err
	}
	op := operations.DeleteRegister{Envelope: s.envelope(), Register: register}
	return s.submit(ctx, register.ID, op, BuildDeleteRegister(op))
}

func (s *Service) submit(ctx context.Context, id string, op operations.Operation, batch *store.Batch) (mutation.Result, error) {
	queued, err := s.pipeline.Submit(ctx, op, batch)
	if err != nil {
		s.logger.Warn("mutation failed", zap.String("kind", string(op.Kind())), zap.String("id", id), zap.Error(err))
		return mutation.Result{}, err
	}
	s.logger.Debug("mutation accepted", zap.String("kind", string(op.Kind())), zap.String("id", id), zap.Bool("queued", queued))
	return mutation.Result{ID: id, Queued: queued}, nil
}

func (s *Service) envelope() operations.Envelope {
	return operations.Envelope{OpID: s.newID()}
}

func (s *Service) register(id, sessionID string, in models.RegisterInput) models.Register {
	r := models.Register{
		ID:               id,
		OrganizationID:   s.organizationID,
		HarvestSessionID: sessionID,
		Type:             in.Type,
		WeightKg:         in.WeightKg,
		Humidity:         in.Humidity,
		Date:             s.dateOrNow(in.Date),
	}
	switch in.Type {
	case models.RegisterTruck:
		truck := *in.Truck
		r.Truck = &truck
	case models.RegisterSilobag:
		if in.Silobag != nil {
			r.Silobag = &models.SilobagDetails{Silobag: *in.Silobag}
		}
	}
	return r
}

func (s *Service) dateOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}

func requireSession(session models.HarvestSession) error {
	if session.ID == "" {
		return &models.ValidationError{Entity: "session", Reason: "snapshot without id"}
	}
	return nil
}

func requireRegister(session models.HarvestSession, r models.Register) error {
	if r.ID == "" {
		return &models.ValidationError{Entity: "register", Reason: "snapshot without id"}
	}
	if r.HarvestSessionID != session.ID {
		return &models.ValidationError{Entity: "register", ID: r.ID, Reason: "belongs to another session"}
	}
	return nil
}
