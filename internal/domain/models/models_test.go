package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeYields(t *testing.T) {
	y := ComputeYields(10000, 10, 12, 900)

	assert.InDelta(t, 1000, y.Harvested, 1e-9)
	assert.InDelta(t, 833.3333, y.Seed, 1e-3)
	assert.InDelta(t, 100, y.RealVsProjected, 1e-9)
}

func TestComputeYieldsZeroDenominators(t *testing.T) {
	y := ComputeYields(500, 0, 0, 900)

	assert.Zero(t, y.Harvested)
	assert.Zero(t, y.Seed)
	assert.Equal(t, -900.0, y.RealVsProjected)
}

func TestComputeYieldsIsPure(t *testing.T) {
	first := ComputeYields(4321, 3.5, 7, 1200)
	second := ComputeYields(4321, 3.5, 7, 1200)
	assert.Equal(t, first, second)
}

func TestSessionTotalsYields(t *testing.T) {
	s := HarvestSession{HarvestedKgs: 6000, HarvestedHectares: 4, Hectares: 8, EstimatedYield: 1000}
	assert.Equal(t, ComputeYields(6000, 4, 8, 1000), s.Totals().Yields())
}

func TestFlexFloat(t *testing.T) {
	var in struct {
		A FlexFloat `json:"a"`
		B FlexFloat `json:"b"`
		C FlexFloat `json:"c"`
		D FlexFloat `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a": 2.5, "b": "3,75", "c": "abc", "d": null}`), &in)
	require.NoError(t, err)

	assert.Equal(t, FlexFloat(2.5), in.A)
	assert.Equal(t, FlexFloat(3.75), in.B)
	assert.Zero(t, in.C)
	assert.Zero(t, in.D)
}

func TestHarvesterInputCoercion(t *testing.T) {
	var in HarvesterInput
	require.NoError(t, json.Unmarshal([]byte(`{"id":"h1","name":"Juan","harvested_hectares":"12.5","hours":"n/a"}`), &in))

	h := in.Harvester()
	assert.Equal(t, "h1", h.ID)
	assert.Equal(t, 12.5, h.HarvestedHectares)
	assert.Zero(t, h.Hours)
}

func TestResolve(t *testing.T) {
	refs := []Ref{{ID: "f1", Name: "North"}}

	ref, err := Resolve("field", refs, "f1")
	require.NoError(t, err)
	assert.Equal(t, "North", ref.Name)

	_, err = Resolve("field", refs, "missing")
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "field", ve.Entity)
	assert.Equal(t, "missing", ve.ID)
}

func TestRegisterInputCheck(t *testing.T) {
	t.Run("truck requires details", func(t *testing.T) {
		err := RegisterInput{Type: RegisterTruck, WeightKg: 100}.Check()
		assert.True(t, IsValidationError(err))
	})

	t.Run("silo bag requires a target", func(t *testing.T) {
		err := RegisterInput{Type: RegisterSilobag, WeightKg: 100}.Check()
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "silo_bag", ve.Entity)
	})

	t.Run("weight must be positive", func(t *testing.T) {
		err := RegisterInput{Type: RegisterSilobag, Silobag: &Ref{ID: "b1"}}.Check()
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "WeightKg", ve.Entity)
	})

	t.Run("valid", func(t *testing.T) {
		err := RegisterInput{Type: RegisterSilobag, WeightKg: 100, Silobag: &Ref{ID: "b1"}}.Check()
		assert.NoError(t, err)
	})
}

func TestValidateRejectsUnknownStatus(t *testing.T) {
	err := Validate(ProgressInput{Status: "harvesting"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Status", ve.Entity)
	assert.Contains(t, ve.Reason, "oneof")
}
