package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Ref is a denormalized {id, name} pair copied onto documents at write time.
type Ref struct {
	ID   string `bson:"id" json:"id" validate:"required"`
	Name string `bson:"name" json:"name"`
}

// Harvester is one roster entry on a harvest session.
type Harvester struct {
	ID                string  `bson:"id" json:"id"`
	Name              string  `bson:"name" json:"name"`
	Mapped            bool    `bson:"mapped" json:"mapped"`
	HarvestedHectares float64 `bson:"harvested_hectares" json:"harvested_hectares"`
	Hours             float64 `bson:"hours" json:"hours"`
}

// FlexFloat accepts either a JSON number or a numeric string. Anything that
// does not parse as a number decodes to 0.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(CoerceFloat(raw))
	return nil
}

// CoerceFloat converts string-or-number input into a float64, defaulting to 0.
func CoerceFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case FlexFloat:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, ",", ".")), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
