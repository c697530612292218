package models

import "time"

// VouchEntry is one endorsement recorded against a subject. Fields are
// immutable once created; MessageID is the reconciliation key used to
// retract the entry when the originating chat message is deleted.
type VouchEntry struct {
	By        string    `json:"by"`
	Target    string    `json:"target"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"message_id"`
}

// SubjectRecord holds all vouches for one subject in insertion order.
// Count caches len(Entries) and is recomputed after every mutation.
type SubjectRecord struct {
	Count   int          `json:"count"`
	Entries []VouchEntry `json:"entries"`
}

// Snapshot is the persisted form of the ledger, keyed by subject id.
// The message index is not part of the snapshot; it is rebuilt from the
// entry lists on load.
type Snapshot map[string]SubjectRecord
