// Package ledger holds the authoritative vouch state: per-subject entry
// lists with cached counts, and a message index that maps source message
// ids back to subjects for O(1) retraction. All mutations run under a
// single mutex; every mutating operation restores the bidirectional
// index invariant before returning, including rejected paths.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"vouchd/pkg/models"
)

// Outcome classifies the result of Record.
type Outcome int

const (
	Accepted Outcome = iota
	Duplicate
	CapacityRejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case CapacityRejected:
		return "capacity_rejected"
	}
	return "unknown"
}

// SubjectCount is one row of a Top listing.
type SubjectCount struct {
	SubjectID string `json:"subject_id"`
	Count     int    `json:"count"`
}

type subjectState struct {
	entries []models.VouchEntry
	count   int
}

// Ledger is the process-wide vouch store. Create with New or FromSnapshot;
// it is the only holder of mutable vouch state in the process.
type Ledger struct {
	mu            sync.Mutex
	subjects      map[string]*subjectState
	order         []string          // subject ids in first-insertion order, for Top tie-breaks
	index         map[string]string // source message id -> subject id
	total         int               // indexed entries across all subjects
	maxPerSubject int
	maxTotal      int
	evicted       uint64
}

// New returns an empty ledger with the given capacity bounds.
func New(maxPerSubject, maxTotal int) *Ledger {
	if maxPerSubject <= 0 {
		maxPerSubject = 1000
	}
	if maxTotal <= 0 {
		maxTotal = 2000
	}
	return &Ledger{
		subjects:      make(map[string]*subjectState),
		index:         make(map[string]string),
		maxPerSubject: maxPerSubject,
		maxTotal:      maxTotal,
	}
}

// FromSnapshot builds a ledger from a persisted snapshot and rebuilds the
// message index from the entry lists. Subject insertion order is the
// sorted key order, which keeps Top tie-breaks deterministic across
// restarts. Counts are recomputed from the entry lists, not trusted.
func FromSnapshot(snap models.Snapshot, maxPerSubject, maxTotal int) *Ledger {
	l := New(maxPerSubject, maxTotal)
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rec := snap[id]
		st := &subjectState{entries: append([]models.VouchEntry(nil), rec.Entries...)}
		st.count = len(st.entries)
		l.subjects[id] = st
		l.order = append(l.order, id)
	}
	l.rebuildIndexLocked()
	return l
}

// Record appends an entry for its target subject. A message id already
// present in the index is a silent no-op (idempotence under redelivery);
// a subject at the per-subject cap rejects the attempt with no mutation.
// On accept the global bound is enforced by oldest-first eviction.
func (l *Ledger) Record(e models.VouchEntry) Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[e.MessageID]; ok {
		return Duplicate
	}
	st := l.subjects[e.Target]
	if st != nil && st.count >= l.maxPerSubject {
		return CapacityRejected
	}
	if st == nil {
		st = &subjectState{}
		l.subjects[e.Target] = st
		l.order = append(l.order, e.Target)
	}
	st.entries = append(st.entries, e)
	st.count = len(st.entries)
	l.index[e.MessageID] = e.Target
	l.total++
	for l.total > l.maxTotal {
		l.evictOldestLocked()
	}
	return Accepted
}

// Retract removes the entry produced by messageID, if any, and reports
// which subject it belonged to. When the index misses, a linear scan
// across all subjects catches stray entries left by index corruption;
// finding nothing is a no-op, not an error.
func (l *Ledger) Retract(messageID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sid, ok := l.index[messageID]; ok {
		delete(l.index, messageID)
		if l.removeEntryLocked(sid, messageID) {
			return sid, true
		}
		// index pointed at a subject without the entry; fall through to scan
	}
	for sid := range l.subjects {
		if l.removeEntryLocked(sid, messageID) {
			delete(l.index, messageID)
			return sid, true
		}
	}
	return "", false
}

// CountFor returns the cached count for a subject, 0 for unknown subjects.
func (l *Ledger) CountFor(subjectID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.subjects[subjectID]; ok {
		return st.count
	}
	return 0
}

// Top returns up to n subjects ordered by descending count, ties broken
// by subject insertion order.
func (l *Ledger) Top(n int) []SubjectCount {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SubjectCount, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, SubjectCount{SubjectID: id, Count: l.subjects[id].count})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Entries returns a copy of a subject's entry list in insertion order.
func (l *Ledger) Entries(subjectID string) []models.VouchEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.subjects[subjectID]
	if !ok {
		return nil
	}
	return append([]models.VouchEntry(nil), st.entries...)
}

// SubjectIDs returns all subject ids in insertion order.
func (l *Ledger) SubjectIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// Stats returns the number of tracked subjects and total indexed entries.
func (l *Ledger) Stats() (subjects, entries int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subjects), l.total
}

// Snapshot returns a deep copy of the ledger suitable for persistence.
// The message index is derived state and is not included.
func (l *Ledger) Snapshot() models.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := make(models.Snapshot, len(l.subjects))
	for id, st := range l.subjects {
		snap[id] = models.SubjectRecord{
			Count:   st.count,
			Entries: append([]models.VouchEntry(nil), st.entries...),
		}
	}
	return snap
}

// RebuildIndex re-derives the message index from the entry lists. This is
// the authoritative re-indexing procedure, used at load and as the repair
// mechanism when corruption is detected.
func (l *Ledger) RebuildIndex() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rebuildIndexLocked()
}

// CheckIndex verifies the bidirectional invariant between the entry lists
// and the message index, returning a describing error on the first
// violation found.
func (l *Ledger) CheckIndex() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := 0
	for sid, st := range l.subjects {
		if st.count != len(st.entries) {
			return fmt.Errorf("subject %s: cached count %d != %d entries", sid, st.count, len(st.entries))
		}
		for _, e := range st.entries {
			got, ok := l.index[e.MessageID]
			if !ok {
				return fmt.Errorf("entry %s of subject %s missing from index", e.MessageID, sid)
			}
			if got != sid {
				return fmt.Errorf("entry %s indexed under %s, stored under %s", e.MessageID, got, sid)
			}
			seen++
		}
	}
	if seen != len(l.index) {
		return fmt.Errorf("index holds %d pairs, entries account for %d", len(l.index), seen)
	}
	if seen != l.total {
		return fmt.Errorf("total %d != %d stored entries", l.total, seen)
	}
	return nil
}

// Evicted returns the number of entries dropped by global-bound eviction
// over the process lifetime.
func (l *Ledger) Evicted() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evicted
}

func (l *Ledger) rebuildIndexLocked() {
	l.index = make(map[string]string)
	l.total = 0
	for sid, st := range l.subjects {
		st.count = len(st.entries)
		for _, e := range st.entries {
			l.index[e.MessageID] = sid
			l.total++
		}
	}
}

// removeEntryLocked removes the entry with messageID from one subject's
// list and recomputes the cached count. Empty subjects are retained so
// their insertion-order slot survives.
func (l *Ledger) removeEntryLocked(subjectID, messageID string) bool {
	st, ok := l.subjects[subjectID]
	if !ok {
		return false
	}
	for i, e := range st.entries {
		if e.MessageID == messageID {
			st.entries = append(st.entries[:i], st.entries[i+1:]...)
			st.count = len(st.entries)
			l.total--
			return true
		}
	}
	return false
}

// evictOldestLocked drops the single oldest entry ledger-wide. Each
// subject's list is insertion-ordered, so only list heads are candidates;
// the oldest is the minimum (timestamp, message id) pair, which is
// derivable from the snapshot alone and therefore stable across restarts.
func (l *Ledger) evictOldestLocked() {
	victimSubject := ""
	victimIdx := -1
	for _, sid := range l.order {
		st := l.subjects[sid]
		if len(st.entries) == 0 {
			continue
		}
		head := st.entries[0]
		if victimIdx == -1 {
			victimSubject = sid
			victimIdx = 0
			continue
		}
		cur := l.subjects[victimSubject].entries[0]
		if head.Timestamp.Before(cur.Timestamp) ||
			(head.Timestamp.Equal(cur.Timestamp) && head.MessageID < cur.MessageID) {
			victimSubject = sid
		}
	}
	if victimIdx == -1 {
		return
	}
	st := l.subjects[victimSubject]
	evictedEntry := st.entries[0]
	st.entries = st.entries[1:]
	st.count = len(st.entries)
	delete(l.index, evictedEntry.MessageID)
	l.total--
	l.evicted++
}
