package models

// Row is the generic column -> value shape used throughout the engine.
// Local rows leave SQLite in this form and remote rows leave the REST
// client in this form, so both payload builders operate on a single type.
type Row map[string]any

// Sync lifecycle states carried by every synchronized table.
//
// A row created locally starts as pending_create and keeps that status
// across further local edits (the remote side has never seen it, so there
// is nothing to update yet). A synced row becomes pending_update on any
// local mutation. Only the sync engine moves a row to synced.
const (
	StatusPendingCreate = "pending_create"
	StatusPendingUpdate = "pending_update"
	StatusSynced        = "synced"
)

// PendingRecord is a local row claimed for push, paired with its local
// primary key so the engine can mark it after the remote accepts it.
type PendingRecord struct {
	LocalID int64
	Data    Row
}

// CreatedMark records the remote id assigned to a local row during the
// push-creates phase.
type CreatedMark struct {
	LocalID  int64
	RemoteID string
}
