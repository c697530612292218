package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"vouchd/pkg/logger"
	"vouchd/pkg/models"
)

// subject records live under subject:<id>; the message index is derived
// state and never written
const subjectPrefix = "vouch:subject:"

// PebbleAdapter stores one key per subject in a Pebble database.
type PebbleAdapter struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) a Pebble database at the given path.
func OpenPebble(path string) (*PebbleAdapter, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &PebbleAdapter{db: db}, nil
}

// Load reads every subject record. A value that fails to decode is
// skipped with a warning rather than failing the whole load.
func (p *PebbleAdapter) Load() (models.Snapshot, error) {
	snap := make(models.Snapshot)
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		logger.Warn("snapshot_load_failed", "error", err)
		return snap, nil
	}
	defer iter.Close()

	prefix := []byte(subjectPrefix)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		sid := string(iter.Key()[len(prefix):])
		v := append([]byte(nil), iter.Value()...)
		var rec models.SubjectRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			logger.Warn("subject_record_corrupt", "subject", sid, "error", err)
			continue
		}
		snap[sid] = rec
	}
	if err := iter.Error(); err != nil {
		logger.Warn("snapshot_load_failed", "error", err)
	}
	return snap, nil
}

// Save writes the full snapshot in one synced batch, deleting subject
// keys that are no longer present.
func (p *PebbleAdapter) Save(snap models.Snapshot) error {
	existing, err := p.subjectKeys()
	if err != nil {
		return err
	}
	b := p.db.NewBatch()
	defer b.Close()
	for _, sid := range existing {
		if _, ok := snap[sid]; !ok {
			if err := b.Delete([]byte(subjectPrefix+sid), nil); err != nil {
				return err
			}
		}
	}
	for sid, rec := range snap {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal subject %s: %w", sid, err)
		}
		if err := b.Set([]byte(subjectPrefix+sid), data, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Close closes the underlying database.
func (p *PebbleAdapter) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func (p *PebbleAdapter) subjectKeys() ([]string, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	prefix := []byte(subjectPrefix)
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		out = append(out, string(iter.Key()[len(prefix):]))
	}
	return out, iter.Error()
}
