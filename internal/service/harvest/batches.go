package harvest

import (
	"github.com/mamadbah2/harvest/internal/domain/models"
	"github.com/mamadbah2/harvest/internal/operations"
	"github.com/mamadbah2/harvest/internal/store"
)

// Batch builders are pure: the same operation always yields the same batch,
// which is what makes replay after an outage equivalent to the original call.
// Values that depend on stored state, such as yields, are derived when the
// batch commits rather than taken from the caller's snapshot.

var activeBag = store.Where("status", models.SilobagActive)

// BuildStartSession creates the session document.
func BuildStartSession(op operations.StartHarvestSession) *store.Batch {
	b := store.NewBatch()
	b.Create(models.CollectionSessions, op.Session.ID, op.Session)
	return b
}

// BuildUpdateManager patches the session manager.
func BuildUpdateManager(op operations.UpdateHarvestManager) *store.Batch {
	b := store.NewBatch()
	b.Update(models.CollectionSessions, op.SessionID, store.Patch{"harvest_manager": op.Manager})
	return b
}

// BuildUpsertHarvesters replaces the harvester roster.
func BuildUpsertHarvesters(op operations.UpsertHarvesters) *store.Batch {
	b := store.NewBatch()
	harvesters := op.Harvesters
	if harvesters == nil {
		harvesters = []models.Harvester{}
	}
	b.Update(models.CollectionSessions, op.SessionID, store.Patch{"harvesters": harvesters})
	return b
}

// BuildUpdateProgress sets status and harvested hectares and recomputes
// yields from the stored accumulators. A sole harvester gets the same
// harvested hectares; rosters of other sizes are left untouched.
func BuildUpdateProgress(op operations.UpdateSessionProgress) *store.Batch {
	b := store.NewBatch()
	b.Update(models.CollectionSessions, op.SessionID, store.Patch{
		"status":             op.Status,
		"harvested_hectares": op.HarvestedHectares,
	})
	b.Derive(models.CollectionSessions, op.SessionID, func(lookup store.Lookup) (store.Patch, error) {
		session, err := loadSession(lookup, op.SessionID)
		if err != nil {
			return nil, err
		}
		patch := store.Patch{"yields": session.Totals().Yields()}
		if len(session.Harvesters) == 1 {
			sole := session.Harvesters[0]
			sole.HarvestedHectares = session.HarvestedHectares
			patch["harvesters"] = []models.Harvester{sole}
		}
		return patch, nil
	})
	return b
}

// BuildAddRegister writes the register, bumps the session total and, for
// silo-bag deliveries, deposits into the bag with a linked movement.
func BuildAddRegister(op operations.AddRegister) *store.Batch {
	r := op.Register
	b := store.NewBatch()
	if op.NewSilobag != nil {
		b.Create(models.CollectionSilobags, op.NewSilobag.ID, *op.NewSilobag)
	}
	b.Create(models.CollectionRegisters, r.ID, r)
	adjustSession(b, r.HarvestSessionID, r.WeightKg)
	if r.SilobagID() != "" {
		deposit(b, r)
	}
	return b
}

// BuildUpdateRegister corrects a register. When the bag is unchanged the
// linked movement is corrected in place; when the bag or type changed the
// old side is reversed and the new side applied. The deltas assume the
// stored register still equals op.Previous, which the update enforces.
func BuildUpdateRegister(op operations.UpdateRegister) *store.Batch {
	prev, next := op.Previous, op.Register
	b := store.NewBatch()

	b.Update(models.CollectionRegisters, next.ID, store.Patch{
		"type":      next.Type,
		"weight_kg": next.WeightKg,
		"humidity":  next.Humidity,
		"date":      next.Date,
		"truck":     next.Truck,
		"silo_bag":  next.Silobag,
	}, unchanged(prev)...)
	delta := next.WeightKg - prev.WeightKg
	adjustSession(b, next.HarvestSessionID, delta)

	prevBag, nextBag := prev.SilobagID(), next.SilobagID()
	if prevBag != "" && prevBag == nextBag {
		if delta != 0 {
			b.Increment(models.CollectionSilobags, nextBag, "current_kg", delta, activeBag)
		}
		b.Update(models.CollectionMovements, next.ID, store.Patch{
			"kg_change": next.WeightKg,
			"date":      next.Date,
		})
		return b
	}
	if prevBag != "" {
		withdraw(b, prev)
	}
	if nextBag != "" {
		deposit(b, next)
	}
	return b
}

// BuildDeleteRegister removes the register and reverses its effects.
func BuildDeleteRegister(op operations.DeleteRegister) *store.Batch {
	r := op.Register
	b := store.NewBatch()
	b.Delete(models.CollectionRegisters, r.ID, unchanged(r)...)
	adjustSession(b, r.HarvestSessionID, -r.WeightKg)
	if r.SilobagID() != "" {
		withdraw(b, r)
	}
	return b
}

// adjustSession moves the session total by delta and recomputes yields from
// whatever the session holds once the increment landed.
func adjustSession(b *store.Batch, sessionID string, delta float64) {
	if delta != 0 {
		b.Increment(models.CollectionSessions, sessionID, "harvested_kgs", delta)
	}
	b.Derive(models.CollectionSessions, sessionID, func(lookup store.Lookup) (store.Patch, error) {
		session, err := loadSession(lookup, sessionID)
		if err != nil {
			return nil, err
		}
		return store.Patch{"yields": session.Totals().Yields()}, nil
	})
}

func loadSession(lookup store.Lookup, id string) (models.HarvestSession, error) {
	var session models.HarvestSession
	doc, err := lookup(models.CollectionSessions, id)
	if err != nil {
		return session, err
	}
	if err := store.Decode(doc, &session); err != nil {
		return session, err
	}
	return session, nil
}

// unchanged guards a register edit against a stored register that moved on
// since the caller read it.
func unchanged(r models.Register) []store.Filter {
	return []store.Filter{
		store.Where("type", r.Type),
		store.Where("weight_kg", r.WeightKg),
	}
}

// deposit credits a register's weight to its bag. The movement shares the
// register id so later edits can find it.
func deposit(b *store.Batch, r models.Register) {
	bagID := r.SilobagID()
	b.Increment(models.CollectionSilobags, bagID, "current_kg", r.WeightKg, activeBag)
	b.Create(models.CollectionMovements, r.ID, models.SilobagMovement{
		ID:               r.ID,
		OrganizationID:   r.OrganizationID,
		SilobagID:        bagID,
		Type:             models.MovementHarvestEntry,
		KgChange:         r.WeightKg,
		Date:             r.Date,
		RegisterID:       r.ID,
		HarvestSessionID: r.HarvestSessionID,
	})
}

func withdraw(b *store.Batch, r models.Register) {
	b.Increment(models.CollectionSilobags, r.SilobagID(), "current_kg", -r.WeightKg, activeBag)
	b.Delete(models.CollectionMovements, r.ID)
}
