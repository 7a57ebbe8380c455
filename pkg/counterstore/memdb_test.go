package counterstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newRecord(max uint64) *CounterRecord {
	return &CounterRecord{
		CredentialID: uuid.New(),
		Max:          max,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestRecordIssuanceAndGet(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	rec := newRecord(5)

	if err := store.RecordIssuance(ctx, rec); err != nil {
		t.Fatalf("RecordIssuance: %v", err)
	}

	got, err := store.Get(ctx, rec.CredentialID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Max != 5 || got.Used != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestRecordIssuanceRejectsDuplicate(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	rec := newRecord(5)

	if err := store.RecordIssuance(ctx, rec); err != nil {
		t.Fatalf("RecordIssuance: %v", err)
	}
	if err := store.RecordIssuance(ctx, rec); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := NewMemStore()
	if _, err := store.Get(context.Background(), uuid.New()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCASIncrementAdvancesAndExhausts(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	rec := newRecord(2)
	if err := store.RecordIssuance(ctx, rec); err != nil {
		t.Fatalf("RecordIssuance: %v", err)
	}

	used, err := store.CASIncrement(ctx, rec.CredentialID)
	if err != nil || used != 1 {
		t.Fatalf("first CASIncrement: used=%d err=%v", used, err)
	}
	used, err = store.CASIncrement(ctx, rec.CredentialID)
	if err != nil || used != 2 {
		t.Fatalf("second CASIncrement: used=%d err=%v", used, err)
	}
	if _, err := store.CASIncrement(ctx, rec.CredentialID); err != ErrCounterExhausted {
		t.Fatalf("expected ErrCounterExhausted, got %v", err)
	}
}

func TestCASIncrementRejectsRevoked(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	rec := newRecord(10)
	if err := store.RecordIssuance(ctx, rec); err != nil {
		t.Fatalf("RecordIssuance: %v", err)
	}
	if err := store.Revoke(ctx, rec.CredentialID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := store.CASIncrement(ctx, rec.CredentialID); err != ErrRevoked {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

func TestObservedTagDetectsReplayWithDifferentNonce(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	credentialID := uuid.New()
	tag := []byte("tag-bytes")

	replayed, err := store.ObservedTag(ctx, credentialID, "server-1", tag, []byte("nonce-a"), time.Minute)
	if err != nil {
		t.Fatalf("ObservedTag first: %v", err)
	}
	if replayed {
		t.Fatalf("first observation should not be a replay")
	}

	replayed, err = store.ObservedTag(ctx, credentialID, "server-1", tag, []byte("nonce-b"), time.Minute)
	if err != nil {
		t.Fatalf("ObservedTag second: %v", err)
	}
	if !replayed {
		t.Fatalf("expected replay when the same tag reappears with a different nonce")
	}
}

func TestObservedTagIgnoresEntriesOutsideWindow(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	credentialID := uuid.New()
	tag := []byte("tag-bytes")

	if _, err := store.ObservedTag(ctx, credentialID, "server-1", tag, []byte("nonce-a"), time.Nanosecond); err != nil {
		t.Fatalf("ObservedTag first: %v", err)
	}
	time.Sleep(time.Millisecond)

	replayed, err := store.ObservedTag(ctx, credentialID, "server-1", tag, []byte("nonce-b"), time.Nanosecond)
	if err != nil {
		t.Fatalf("ObservedTag second: %v", err)
	}
	if replayed {
		t.Fatalf("entry outside window must not count as a replay")
	}
}

func TestObservedTagScopedByServerID(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	credentialID := uuid.New()
	tag := []byte("tag-bytes")

	if _, err := store.ObservedTag(ctx, credentialID, "server-1", tag, []byte("nonce-a"), time.Minute); err != nil {
		t.Fatalf("ObservedTag server-1: %v", err)
	}
	replayed, err := store.ObservedTag(ctx, credentialID, "server-2", tag, []byte("nonce-b"), time.Minute)
	if err != nil {
		t.Fatalf("ObservedTag server-2: %v", err)
	}
	if replayed {
		t.Fatalf("the same tag on a different server must not be treated as a replay")
	}
}
