package models

import "time"

// LogisticsStatus is advanced externally by dispatch.
type LogisticsStatus string

const (
	LogisticsInTransit LogisticsStatus = "in-transit"
	LogisticsDelivered LogisticsStatus = "delivered"
	LogisticsCancelled LogisticsStatus = "cancelled"
)

// Logistics is a transport order.
type Logistics struct {
	ID             string          `bson:"_id" json:"id"`
	OrganizationID string          `bson:"organization_id" json:"organization_id"`
	Field          Ref             `bson:"field" json:"field"`
	Crop           Ref             `bson:"crop" json:"crop"`
	Company        string          `bson:"company" json:"company"`
	Driver         string          `bson:"driver" json:"driver"`
	LicensePlate   string          `bson:"license_plate" json:"license_plate"`
	Destination    Ref             `bson:"destination" json:"destination"`
	Status         LogisticsStatus `bson:"status" json:"status"`
	Date           time.Time       `bson:"date" json:"date"`
	CreatedAt      time.Time       `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt      time.Time       `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}
