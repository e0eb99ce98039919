package storage

import (
	"encoding/json"
	"fmt"
	"io"

	"go.etcd.io/bbolt"
)

// ExportJSONL writes every game, oldest first, as one JSON object per line
func (s *GameStore) ExportJSONL(w io.Writer) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return 0, ErrClosed
	}

	n := 0
	enc := json.NewEncoder(w)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(GamesBucket)).ForEach(func(k, v []byte) error {
			var rec GameRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // Skip corrupted records
			}
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("failed to encode game %s: %w", rec.ID, err)
			}
			n++
			return nil
		})
	})
	return n, err
}

// ImportJSONL stores every game read from r. Games whose ID already exists
// are overwritten.
func (s *GameStore) ImportJSONL(r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	n := 0
	for dec.More() {
		var rec GameRecord
		if err := dec.Decode(&rec); err != nil {
			return n, fmt.Errorf("failed to decode game %d: %w", n+1, err)
		}
		if _, err := s.Save(rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Backup writes a consistent copy of the database to path
func (s *GameStore) Backup(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return ErrClosed
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(path, 0600)
	})
}
