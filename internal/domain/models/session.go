package models

import "time"

// SessionStatus enumerates the lifecycle of a harvest session.
type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in-progress"
	SessionFinished   SessionStatus = "finished"
)

// Valid reports whether the status is one of the known values.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionPending, SessionInProgress, SessionFinished:
		return true
	}
	return false
}

// Yields holds the derived yield figures of a session, in kg/ha.
type Yields struct {
	Seed            float64 `bson:"seed" json:"seed"`
	Harvested       float64 `bson:"harvested" json:"harvested"`
	RealVsProjected float64 `bson:"real_vs_projected" json:"real_vs_projected"`
}

// HarvestSession is one plot's harvest effort.
type HarvestSession struct {
	ID                string        `bson:"_id" json:"id"`
	OrganizationID    string        `bson:"organization_id" json:"organization_id"`
	Campaign          Ref           `bson:"campaign" json:"campaign"`
	Field             Ref           `bson:"field" json:"field"`
	Plot              Ref           `bson:"plot" json:"plot"`
	Crop              Ref           `bson:"crop" json:"crop"`
	HarvestManager    Ref           `bson:"harvest_manager" json:"harvest_manager"`
	Harvesters        []Harvester   `bson:"harvesters" json:"harvesters"`
	Status            SessionStatus `bson:"status" json:"status"`
	Hectares          float64       `bson:"hectares" json:"hectares"`
	EstimatedYield    float64       `bson:"estimated_yield" json:"estimated_yield"`
	HarvestedKgs      float64       `bson:"harvested_kgs" json:"harvested_kgs"`
	HarvestedHectares float64       `bson:"harvested_hectares" json:"harvested_hectares"`
	Yields            Yields        `bson:"yields" json:"yields"`
	Date              time.Time     `bson:"date" json:"date"`
	CreatedAt         time.Time     `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt         time.Time     `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Totals returns the accumulator snapshot the write side recomputes from.
func (s HarvestSession) Totals() SessionTotals {
	return SessionTotals{
		HarvestedKgs:      s.HarvestedKgs,
		HarvestedHectares: s.HarvestedHectares,
		Hectares:          s.Hectares,
		EstimatedYield:    s.EstimatedYield,
	}
}

// SessionTotals is the set of inputs yields are computed from.
type SessionTotals struct {
	HarvestedKgs      float64 `bson:"harvested_kgs" json:"harvested_kgs"`
	HarvestedHectares float64 `bson:"harvested_hectares" json:"harvested_hectares"`
	Hectares          float64 `bson:"hectares" json:"hectares"`
	EstimatedYield    float64 `bson:"estimated_yield" json:"estimated_yield"`
}

// Yields recomputes the derived yields for these totals.
func (t SessionTotals) Yields() Yields {
	return ComputeYields(t.HarvestedKgs, t.HarvestedHectares, t.Hectares, t.EstimatedYield)
}

// ComputeYields derives session yields from its accumulators. Zero
// denominators yield 0 instead of Inf/NaN.
func ComputeYields(harvestedKgs, harvestedHectares, hectares, estimatedYield float64) Yields {
	var harvested, seed float64
	if harvestedHectares != 0 {
		harvested = harvestedKgs / harvestedHectares
	}
	if hectares != 0 {
		seed = harvestedKgs / hectares
	}
	return Yields{
		Seed:            seed,
		Harvested:       harvested,
		RealVsProjected: harvested - estimatedYield,
	}
}
