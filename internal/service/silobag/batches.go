package silobag

import (
	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/operations"
	"github.com/mamadbah2/harvest/internal/store"
)

var activeBag = store.Where("status", models.SilobagActive)

// BuildCreate writes the bag and, when it starts with mass, the creation
// movement carrying that mass.
func BuildCreate(op operations.CreateSilobag) *store.Batch {
	bag := op.Silobag
	b := store.NewBatch()
	b.Create(models.CollectionSilobags, bag.ID, bag)
	if bag.InitialKg != 0 {
		b.Create(models.CollectionMovements, op.MovementID, models.SilobagMovement{
			ID:             op.MovementID,
			OrganizationID: bag.OrganizationID,
			SilobagID:      bag.ID,
			Type:           models.MovementCreation,
			KgChange:       bag.InitialKg,
			Date:           bag.Date,
		})
	}
	return b
}

// BuildExtract debits the bag and appends the negative movement.
func BuildExtract(op operations.ExtractSilobag) *store.Batch {
	m := op.Movement
	b := store.NewBatch()
	b.Increment(models.CollectionSilobags, m.SilobagID, "current_kg", m.KgChange, activeBag)
	b.Create(models.CollectionMovements, m.ID, m)
	return b
}

// BuildClose zeroes the bag and appends the close movement. The balance the
// bag held when the batch commits becomes both difference_kg and the
// movement's kg_change.
func BuildClose(op operations.CloseSilobag) *store.Batch {
	m := op.Movement
	b := store.NewBatch()
	m.KgChange = 0
	b.Create(models.CollectionMovements, m.ID, m)
	b.Derive(models.CollectionMovements, m.ID, func(lookup store.Lookup) (store.Patch, error) {
		held, err := balance(lookup, m.SilobagID)
		if err != nil {
			return nil, err
		}
		return store.Patch{"kg_change": held}, nil
	})
	b.Derive(models.CollectionSilobags, m.SilobagID, func(lookup store.Lookup) (store.Patch, error) {
		held, err := balance(lookup, m.SilobagID)
		if err != nil {
			return nil, err
		}
		return store.Patch{
			"status":        models.SilobagClosed,
			"current_kg":    0.0,
			"difference_kg": held,
		}, nil
	}, activeBag)
	return b
}

func balance(lookup store.Lookup, bagID string) (float64, error) {
	doc, err := lookup(models.CollectionSilobags, bagID)
	if err != nil {
		return 0, err
	}
	var bag models.Silobag
	if err := store.Decode(doc, &bag); err != nil {
		return 0, err
	}
	return bag.CurrentKg, nil
}
