package models

// Collection names in the remote document store.
const (
	CollectionSessions  = "harvest_sessions"
	CollectionRegisters = "harvest_session_registers"
	CollectionSilobags  = "silo_bags"
	CollectionMovements = "silo_bag_movements"
	CollectionLogistics = "logistics"
)
