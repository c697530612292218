// Package store persists ledger snapshots. The Adapter contract is
// deliberately small so a file, a database, or an object store can all
// satisfy it; the app picks an implementation from config.
package store

import "vouchd/pkg/models"

// Adapter loads and saves ledger snapshots.
//
// Load tolerates missing or corrupt storage by returning an empty
// snapshot and logging a warning; it is never fatal at startup. Save is
// called synchronously after every ledger mutation; a failure is logged
// by the caller and swallowed, leaving the mutation valid in memory.
type Adapter interface {
	Load() (models.Snapshot, error)
	Save(models.Snapshot) error
	Close() error
}
