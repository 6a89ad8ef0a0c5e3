package models

import "time"

// SilobagStatus is either active or closed. Closed is terminal.
type SilobagStatus string

const (
	SilobagActive SilobagStatus = "active"
	SilobagClosed SilobagStatus = "closed"
)

// MovementType classifies silo-bag ledger entries.
type MovementType string

const (
	MovementCreation     MovementType = "creation"
	MovementHarvestEntry MovementType = "harvest_entry"
	MovementSubstract    MovementType = "substract"
	MovementLoss         MovementType = "loss"
	MovementClose        MovementType = "close"
)

// Silobag is an on-field storage container.
type Silobag struct {
	ID             string        `bson:"_id" json:"id"`
	OrganizationID string        `bson:"organization_id" json:"organization_id"`
	Name           string        `bson:"name" json:"name"`
	Field          Ref           `bson:"field" json:"field"`
	Crop           Ref           `bson:"crop" json:"crop"`
	InitialKg      float64       `bson:"initial_kg" json:"initial_kg"`
	CurrentKg      float64       `bson:"current_kg" json:"current_kg"`
	Status         SilobagStatus `bson:"status" json:"status"`
	DifferenceKg   *float64      `bson:"difference_kg,omitempty" json:"difference_kg,omitempty"`
	Date           time.Time     `bson:"date" json:"date"`
	CreatedAt      time.Time     `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt      time.Time     `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// SilobagMovement is one ledger entry under a silo bag. KgChange is signed.
type SilobagMovement struct {
	ID               string       `bson:"_id" json:"id"`
	OrganizationID   string       `bson:"organization_id" json:"organization_id"`
	SilobagID        string       `bson:"silo_bag_id" json:"silo_bag_id"`
	Type             MovementType `bson:"type" json:"type"`
	KgChange         float64      `bson:"kg_change" json:"kg_change"`
	Date             time.Time    `bson:"date" json:"date"`
	RegisterID       string       `bson:"register_id,omitempty" json:"register_id,omitempty"`
	HarvestSessionID string       `bson:"harvest_session_id,omitempty" json:"harvest_session_id,omitempty"`
	Notes            string       `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt        time.Time    `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt        time.Time    `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
