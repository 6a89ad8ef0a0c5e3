package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchCreateGeneratesID(t *testing.T) {
	b := NewBatch()
	id := b.Create("things", "", map[string]any{"name": "a"})

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, b.Intents()[0].ID)
}

func TestBatchKeepsInsertionOrder(t *testing.T) {
	b := NewBatch()
	b.Create("bags", "b1", nil)
	b.Increment("bags", "b1", "current_kg", 10, Where("status", "active"))
	b.Update("bags", "b1", Patch{"name": "x"})
	b.Delete("bags", "b2")

	intents := b.Intents()
	require.Len(t, intents, 4)
	assert.Equal(t, []IntentKind{IntentCreate, IntentIncrement, IntentUpdate, IntentDelete},
		[]IntentKind{intents[0].Kind, intents[1].Kind, intents[2].Kind, intents[3].Kind})
	assert.Equal(t, []Filter{{Field: "status", Value: "active"}}, intents[1].Where)
	assert.Equal(t, 4, b.Len())

	intents[0].ID = "changed"
	assert.Equal(t, "b1", b.Intents()[0].ID)
}

func TestCommitErrorClassification(t *testing.T) {
	unavailable := NewUnavailable(ErrLinkDown)
	rejected := NewRejected(ErrPreconditionFailed)

	assert.True(t, IsUnavailable(unavailable))
	assert.False(t, IsRejected(unavailable))
	assert.True(t, IsRejected(rejected))
	assert.ErrorIs(t, rejected, ErrPreconditionFailed)
	assert.Equal(t, "commit rejected: precondition failed", rejected.Error())
}

func TestSatisfiesNormalizesValues(t *testing.T) {
	type status string
	doc := Document{"status": "active", "count": int32(3)}

	assert.True(t, Satisfies(doc, []Filter{Where("status", status("active"))}))
	assert.True(t, Satisfies(doc, []Filter{Where("count", 3.0)}))
	assert.False(t, Satisfies(doc, []Filter{Where("status", "closed")}))
	assert.True(t, Satisfies(doc, nil))
}

func TestBatchClaimGoesFirst(t *testing.T) {
	b := NewBatch()
	b.Increment("sessions", "s1", "harvested_kgs", 10)
	b.Derive("sessions", "s1", func(Lookup) (Patch, error) { return nil, nil })
	b.Claim("op-1", "harvest.add_register")

	intents := b.Intents()
	require.Len(t, intents, 3)
	assert.Equal(t, IntentClaim, intents[0].Kind)
	assert.Equal(t, CollectionApplied, intents[0].Collection)
	assert.Equal(t, "op-1", intents[0].ID)
	assert.Equal(t, Document{"kind": "harvest.add_register"}, intents[0].Doc)
	assert.Equal(t, IntentDerive, intents[2].Kind)
	assert.NotNil(t, intents[2].Derive)
}
