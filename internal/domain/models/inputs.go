package models

import "time"

// Catalog is the caller-supplied lookup context used to resolve references
// when a session is started.
type Catalog struct {
	Campaigns  []Ref `json:"campaigns"`
	Fields     []Ref `json:"fields"`
	Plots      []Ref `json:"plots"`
	Crops      []Ref `json:"crops"`
	Managers   []Ref `json:"managers"`
	Harvesters []Ref `json:"harvesters"`
}

// Resolve finds id in refs or returns a ValidationError naming entity.
func Resolve(entity string, refs []Ref, id string) (Ref, error) {
	for _, ref := range refs {
		if ref.ID == id {
			return ref, nil
		}
	}
	return Ref{}, &ValidationError{Entity: entity, ID: id}
}

// StartSessionInput starts a harvest session on one plot.
type StartSessionInput struct {
	CampaignID     string    `json:"campaign_id" validate:"required"`
	FieldID        string    `json:"field_id" validate:"required"`
	PlotID         string    `json:"plot_id" validate:"required"`
	CropID         string    `json:"crop_id" validate:"required"`
	ManagerID      string    `json:"harvest_manager_id" validate:"required"`
	HarvesterIDs   []string  `json:"harvester_ids" validate:"dive,required"`
	Hectares       float64   `json:"hectares" validate:"gte=0"`
	EstimatedYield float64   `json:"estimated_yield" validate:"gte=0"`
	Date           time.Time `json:"date"`
}

// HarvesterInput is a roster entry as sent by clients; numeric fields may
// arrive as strings.
type HarvesterInput struct {
	ID                string    `json:"id" validate:"required"`
	Name              string    `json:"name"`
	Mapped            bool      `json:"mapped"`
	HarvestedHectares FlexFloat `json:"harvested_hectares"`
	Hours             FlexFloat `json:"hours"`
}

// Harvester converts the input into a roster entry.
func (in HarvesterInput) Harvester() Harvester {
	return Harvester{
		ID:                in.ID,
		Name:              in.Name,
		Mapped:            in.Mapped,
		HarvestedHectares: float64(in.HarvestedHectares),
		Hours:             float64(in.Hours),
	}
}

// ProgressInput moves a session forward.
type ProgressInput struct {
	Status            SessionStatus `json:"status" validate:"required,oneof=pending in-progress finished"`
	HarvestedHectares float64       `json:"harvested_hectares" validate:"gte=0"`
}

// NewSilobagInput describes a silo bag created implicitly by a register.
type NewSilobagInput struct {
	Name  string `json:"name" validate:"required"`
	Field Ref    `json:"field"`
	Crop  Ref    `json:"crop"`
}

// RegisterInput records or edits one delivery.
type RegisterInput struct {
	Type       RegisterType     `json:"type" validate:"required,oneof=truck silo_bag"`
	WeightKg   float64          `json:"weight_kg" validate:"gt=0"`
	Humidity   float64          `json:"humidity" validate:"gte=0,lte=100"`
	Date       time.Time        `json:"date"`
	Truck      *TruckDetails    `json:"truck,omitempty" validate:"required_if=Type truck"`
	Silobag    *Ref             `json:"silo_bag,omitempty"`
	NewSilobag *NewSilobagInput `json:"new_silo_bag,omitempty"`
}

// Check validates tags plus the cross-field rules tags cannot express.
func (in RegisterInput) Check() error {
	if err := Validate(in); err != nil {
		return err
	}
	if in.Type == RegisterSilobag && in.Silobag == nil && in.NewSilobag == nil {
		return &ValidationError{Entity: "silo_bag", Reason: "required for silo_bag registers"}
	}
	return nil
}

// SilobagInput creates a standalone silo bag.
type SilobagInput struct {
	Name      string    `json:"name" validate:"required"`
	Field     Ref       `json:"field"`
	Crop      Ref       `json:"crop"`
	InitialKg float64   `json:"initial_kg" validate:"gte=0"`
	Date      time.Time `json:"date"`
}

// ExtractInput removes mass from an active silo bag.
type ExtractInput struct {
	Kg    float64      `json:"kg" validate:"gt=0"`
	Type  MovementType `json:"type" validate:"omitempty,oneof=substract loss"`
	Notes string       `json:"notes"`
	Date  time.Time    `json:"date"`
}

// LogisticsInput creates a transport order.
type LogisticsInput struct {
	Field        Ref       `json:"field"`
	Crop         Ref       `json:"crop"`
	Company      string    `json:"company" validate:"required"`
	Driver       string    `json:"driver"`
	LicensePlate string    `json:"license_plate"`
	Destination  Ref       `json:"destination"`
	Date         time.Time `json:"date"`
}

// LogisticsStatusInput advances a transport order.
type LogisticsStatusInput struct {
	Status LogisticsStatus `json:"status" validate:"required,oneof=in-transit delivered cancelled"`
}
