package models

import "time"

// RegisterType distinguishes truck deliveries from silo-bag deposits.
type RegisterType string

const (
	RegisterTruck   RegisterType = "truck"
	RegisterSilobag RegisterType = "silo_bag"
)

// TruckDetails is the truck-specific payload of a register.
type TruckDetails struct {
	Driver       string `bson:"driver" json:"driver"`
	LicensePlate string `bson:"license_plate" json:"license_plate"`
	Destination  Ref    `bson:"destination" json:"destination"`
	CTG          string `bson:"ctg,omitempty" json:"ctg,omitempty"`
	CPE          string `bson:"cpe,omitempty" json:"cpe,omitempty"`
}

// SilobagDetails points a register at the silo bag it was deposited into.
type SilobagDetails struct {
	Silobag Ref `bson:"silo_bag" json:"silo_bag"`
}

// Register is one delivery recorded against a harvest session.
type Register struct {
	ID               string          `bson:"_id" json:"id"`
	OrganizationID   string          `bson:"organization_id" json:"organization_id"`
	HarvestSessionID string          `bson:"harvest_session_id" json:"harvest_session_id"`
	Type             RegisterType    `bson:"type" json:"type"`
	WeightKg         float64         `bson:"weight_kg" json:"weight_kg"`
	Humidity         float64         `bson:"humidity" json:"humidity"`
	Date             time.Time       `bson:"date" json:"date"`
	Truck            *TruckDetails   `bson:"truck,omitempty" json:"truck,omitempty"`
	Silobag          *SilobagDetails `bson:"silo_bag,omitempty" json:"silo_bag,omitempty"`
	CreatedAt        time.Time       `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt        time.Time       `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// SilobagID returns the target bag id for silo-bag registers, or "".
func (r Register) SilobagID() string {
	if r.Type != RegisterSilobag || r.Silobag == nil {
		return ""
	}
	return r.Silobag.Silobag.ID
}
