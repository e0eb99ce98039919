// Package storage archives transcribed games in a bbolt database.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/thyrook/boardscribe/internal/notation"
)

const (
	// GamesBucket holds records keyed by insertion sequence
	GamesBucket = "games"

	// IndexBucket maps game IDs to sequence keys
	IndexBucket = "index"
)

var (
	ErrNotFound = errors.New("game not found")
	ErrClosed   = errors.New("store is closed")
)

// GameRecord is one archived game
type GameRecord struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Source    string           `json:"source"`
	Headers   notation.Headers `json:"headers"`
	Result    string           `json:"result"`
	// Termination is empty for unfinished games
	Termination string `json:"termination,omitempty"`
	StartFEN    string `json:"start_fen"`
	FEN         string `json:"fen"`
	PGN         string `json:"pgn"`
	Plies       int    `json:"plies"`
	Resyncs     int    `json:"resyncs"`
}

// RecordFromGame snapshots g for archiving
func RecordFromGame(g *notation.Game, source string) GameRecord {
	rec := GameRecord{
		Source:   source,
		Headers:  g.Headers(),
		Result:   "*",
		StartFEN: g.Start().FEN(),
		FEN:      g.FEN(),
		PGN:      g.PGN(),
		Plies:    g.Len(),
		Resyncs:  len(g.Discontinuities()),
	}
	if o := g.Outcome(); g.Complete() && o.Terminal() {
		rec.Result = string(o.Result)
		rec.Termination = o.Termination.String()
	}
	return rec
}

// GameStore manages archived games
type GameStore struct {
	mu       sync.RWMutex
	db       *bbolt.DB
	dbPath   string
	isClosed bool
}

// NewGameStore opens (or creates) the archive at dbPath
func NewGameStore(dbPath string) (*GameStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(GamesBucket)); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(IndexBucket)); err != nil {
			return fmt.Errorf("create index bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &GameStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path
func (s *GameStore) Path() string { return s.dbPath }

// Save stores rec, assigning an ID and creation time when missing
func (s *GameStore) Save(rec GameRecord) (GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return GameRecord{}, ErrClosed
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return GameRecord{}, fmt.Errorf("failed to marshal game: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		games := tx.Bucket([]byte(GamesBucket))
		index := tx.Bucket([]byte(IndexBucket))
		if games == nil || index == nil {
			return fmt.Errorf("bucket not found")
		}

		key := copyBytes(index.Get([]byte(rec.ID)))
		if key == nil {
			seq, err := games.NextSequence()
			if err != nil {
				return err
			}
			key = make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			if err := index.Put([]byte(rec.ID), key); err != nil {
				return err
			}
		}
		return games.Put(key, data)
	})
	if err != nil {
		return GameRecord{}, err
	}
	return rec, nil
}

// Get returns the game with the given ID
func (s *GameStore) Get(id string) (GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return GameRecord{}, ErrClosed
	}

	var rec GameRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(IndexBucket)).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		data := tx.Bucket([]byte(GamesBucket)).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

// List returns up to limit games, newest first. A limit of zero or less
// returns every game.
func (s *GameStore) List(limit int) ([]GameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return nil, ErrClosed
	}

	var out []GameRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(GamesBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var rec GameRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip corrupted records
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// Delete removes the game with the given ID
func (s *GameStore) Delete(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return ErrClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(IndexBucket))
		key := copyBytes(index.Get([]byte(id)))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := tx.Bucket([]byte(GamesBucket)).Delete(key); err != nil {
			return err
		}
		return index.Delete([]byte(id))
	})
}

// Count returns the number of archived games
func (s *GameStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return 0, ErrClosed
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(IndexBucket)).ForEach(func(k, v []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

// copyBytes detaches b from the transaction's memory map
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Close closes the database connection
func (s *GameStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return nil
	}
	s.isClosed = true
	return s.db.Close()
}
