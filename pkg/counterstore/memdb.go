package counterstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/uuid"
)

var (
	counterKeyPrefix = []byte("counter:")
	tagKeyPrefix     = []byte("tag:")
)

func counterKey(id uuid.UUID) []byte {
	return append(append([]byte{}, counterKeyPrefix...), id[:]...)
}

func tagKey(credentialID uuid.UUID, serverID string, m1Tag []byte) []byte {
	key := append(append([]byte{}, tagKeyPrefix...), credentialID[:]...)
	key = append(key, ':')
	key = append(key, []byte(serverID)...)
	key = append(key, ':')
	return append(key, []byte(hex.EncodeToString(m1Tag))...)
}

type tagRecord struct {
	Nonce      []byte
	ObservedAt time.Time
}

// MemStore is an in-memory CounterStore backed by cometbft-db's MemDB.
// Unlike a single consensus-commit thread, CounterStore is read and
// written from concurrent HTTP handlers, so every operation here takes mu.
type MemStore struct {
	mu sync.Mutex
	db dbm.DB
}

// NewMemStore creates a CounterStore backed by a fresh in-memory database.
func NewMemStore() *MemStore {
	return &MemStore{db: dbm.NewMemDB()}
}

func (s *MemStore) Get(_ context.Context, credentialID uuid.UUID) (*CounterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(credentialID)
}

func (s *MemStore) getLocked(credentialID uuid.UUID) (*CounterRecord, error) {
	raw, err := s.db.Get(counterKey(credentialID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	var rec CounterRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MemStore) putLocked(rec *CounterRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.SetSync(counterKey(rec.CredentialID), raw)
}

func (s *MemStore) RecordIssuance(_ context.Context, rec *CounterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getLocked(rec.CredentialID); err == nil {
		return ErrAlreadyExists
	} else if err != ErrNotFound {
		return err
	}
	return s.putLocked(rec)
}

func (s *MemStore) CASIncrement(_ context.Context, credentialID uuid.UUID) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getLocked(credentialID)
	if err != nil {
		return 0, err
	}
	if rec.Revoked {
		return 0, ErrRevoked
	}
	if rec.Exhausted() {
		return 0, ErrCounterExhausted
	}

	rec.Used++
	if err := s.putLocked(rec); err != nil {
		return 0, err
	}
	return rec.Used, nil
}

func (s *MemStore) Revoke(_ context.Context, credentialID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getLocked(credentialID)
	if err != nil {
		return err
	}
	rec.Revoked = true
	return s.putLocked(rec)
}

func (s *MemStore) ObservedTag(_ context.Context, credentialID uuid.UUID, serverID string, m1Tag, nonce []byte, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tagKey(credentialID, serverID, m1Tag)
	raw, err := s.db.Get(key)
	if err != nil {
		return false, err
	}

	now := time.Now()
	if raw != nil {
		var existing tagRecord
		if err := json.Unmarshal(raw, &existing); err != nil {
			return false, err
		}
		if now.Sub(existing.ObservedAt) < window && !bytes.Equal(existing.Nonce, nonce) {
			return true, nil
		}
	}

	updated, err := json.Marshal(tagRecord{Nonce: nonce, ObservedAt: now})
	if err != nil {
		return false, err
	}
	if err := s.db.SetSync(key, updated); err != nil {
		return false, err
	}
	return false, nil
}
