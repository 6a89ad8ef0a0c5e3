// Package operations is the closed set of mutations the write pipeline can
// queue and replay. Each kind is a struct carrying exactly the arguments its
// service needs, with ids and timestamps fixed at the time of the original
// call so a replay writes the same documents.
package operations

import (
	"fmt"

	"github.com/mamadbah2/harvest/internal/domain/models"
)

// Kind identifies an operation in the durable queue.
type Kind string

const (
	KindStartHarvestSession   Kind = "harvest.start_session"
	KindUpdateHarvestManager  Kind = "harvest.update_manager"
	KindUpsertHarvesters      Kind = "harvest.upsert_harvesters"
	KindUpdateSessionProgress Kind = "harvest.update_progress"
	KindAddRegister           Kind = "harvest.add_register"
	KindUpdateRegister        Kind = "harvest.update_register"
	KindDeleteRegister        Kind = "harvest.delete_register"
	KindCreateSilobag         Kind = "silobag.create"
	KindExtractSilobag        Kind = "silobag.extract"
	KindCloseSilobag          Kind = "silobag.close"
	KindCreateLogistics       Kind = "logistics.create"
	KindUpdateLogisticsStatus Kind = "logistics.update_status"
)

// Operation is implemented only by the types of this package.
type Operation interface {
	Kind() Kind
	OperationID() string
	operation()
}

// Envelope carries the id one submission keeps across every replay attempt.
// The store records it when the operation commits, so a second attempt is
// recognized instead of applied twice.
type Envelope struct {
	OpID string `json:"op_id,omitempty"`
}

// OperationID returns the submission id.
func (e Envelope) OperationID() string { return e.OpID }

// ReplayDispatchError is returned when a queued entry names a kind this
// build does not know. The entry must stay queued.
type ReplayDispatchError struct {
	Kind Kind
}

func (e *ReplayDispatchError) Error() string {
	return fmt.Sprintf("no replay handler for operation %q", e.Kind)
}

type StartHarvestSession struct {
	Envelope
	Session models.HarvestSession `json:"session"`
}

type UpdateHarvestManager struct {
	Envelope
	SessionID string     `json:"session_id"`
	Manager   models.Ref `json:"manager"`
}

type UpsertHarvesters struct {
	Envelope
	SessionID  string             `json:"session_id"`
	Harvesters []models.Harvester `json:"harvesters"`
}

type UpdateSessionProgress struct {
	Envelope
	SessionID         string               `json:"session_id"`
	Status            models.SessionStatus `json:"status"`
	HarvestedHectares float64              `json:"harvested_hectares"`
}

// AddRegister optionally creates the target silo bag in the same batch.
type AddRegister struct {
	Envelope
	Register   models.Register `json:"register"`
	NewSilobag *models.Silobag `json:"new_silo_bag,omitempty"`
}

// UpdateRegister carries the register as the caller saw it. The commit only
// applies while the stored register still matches it.
type UpdateRegister struct {
	Envelope
	Previous models.Register `json:"previous"`
	Register models.Register `json:"register"`
}

type DeleteRegister struct {
	Envelope
	Register models.Register `json:"register"`
}

type CreateSilobag struct {
	Envelope
	Silobag    models.Silobag `json:"silo_bag"`
	MovementID string         `json:"movement_id"`
}

type ExtractSilobag struct {
	Envelope
	Movement models.SilobagMovement `json:"movement"`
}

// CloseSilobag carries the close movement. Its kg_change and the bag's
// difference_kg are taken from the stored balance when the close commits.
type CloseSilobag struct {
	Envelope
	Movement models.SilobagMovement `json:"movement"`
}

type CreateLogistics struct {
	Envelope
	Logistics models.Logistics `json:"logistics"`
}

type UpdateLogisticsStatus struct {
	Envelope
	LogisticsID string                 `json:"logistics_id"`
	Status      models.LogisticsStatus `json:"status"`
}

func (StartHarvestSession) Kind() Kind   { return KindStartHarvestSession }
func (UpdateHarvestManager) Kind() Kind  { return KindUpdateHarvestManager }
func (UpsertHarvesters) Kind() Kind      { return KindUpsertHarvesters }
func (UpdateSessionProgress) Kind() Kind { return KindUpdateSessionProgress }
func (AddRegister) Kind() Kind           { return KindAddRegister }
func (UpdateRegister) Kind() Kind        { return KindUpdateRegister }
func (DeleteRegister) Kind() Kind        { return KindDeleteRegister }
func (CreateSilobag) Kind() Kind         { return KindCreateSilobag }
func (ExtractSilobag) Kind() Kind        { return KindExtractSilobag }
func (CloseSilobag) Kind() Kind          { return KindCloseSilobag }
func (CreateLogistics) Kind() Kind       { return KindCreateLogistics }
func (UpdateLogisticsStatus) Kind() Kind { return KindUpdateLogisticsStatus }

func (StartHarvestSession) operation()   {}
func (UpdateHarvestManager) operation()  {}
func (UpsertHarvesters) operation()      {}
func (UpdateSessionProgress) operation() {}
func (AddRegister) operation()           {}
func (UpdateRegister) operation()        {}
func (DeleteRegister) operation()        {}
func (CreateSilobag) operation()         {}
func (ExtractSilobag) operation()        {}
func (CloseSilobag) operation()          {}
func (CreateLogistics) operation()       {}
func (UpdateLogisticsStatus) operation() {}
