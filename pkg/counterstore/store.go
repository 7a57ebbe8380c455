// Package counterstore provides abstract persistence for the per-credential
// presentation counter and ARC tag-replay tracking the verification
// pipeline consults on every presentation.
package counterstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CounterRecord is the per-credential state CAS-incremented on every
// successful verification and flag-flipped on revocation.
type CounterRecord struct {
	CredentialID uuid.UUID
	Used         uint64
	Max          uint64
	Revoked      bool
	ExpiresAt    time.Time
	ParentID     *uuid.UUID
}

// Exhausted reports whether the credential has used its full presentation
// budget.
func (r *CounterRecord) Exhausted() bool {
	return r.Used >= r.Max
}

// Store is the abstract persistence contract every CounterStore backend
// implements: issuance bootstraps a record, CASIncrement atomically
// consumes one presentation, Revoke terminates the credential, and
// ObservedTag de-duplicates ARC presentations within their rate-limit
// window.
type Store interface {
	// Get loads the CounterRecord for credentialID, or ErrNotFound.
	Get(ctx context.Context, credentialID uuid.UUID) (*CounterRecord, error)

	// RecordIssuance creates the initial counter state for a freshly issued
	// credential.
	RecordIssuance(ctx context.Context, rec *CounterRecord) error

	// CASIncrement atomically increments Used by one and returns the new
	// value, failing with ErrCounterExhausted if Used already equals Max or
	// ErrRevoked if the credential has been revoked.
	CASIncrement(ctx context.Context, credentialID uuid.UUID) (used uint64, err error)

	// Revoke flags a credential as revoked; any future verification fails.
	Revoke(ctx context.Context, credentialID uuid.UUID) error

	// ObservedTag records an ARC presentation's (m1Tag, nonce) pair scoped
	// to (credentialID, serverID) and reports whether that tag was already
	// seen with a different nonce within window — the replay check step 6 of
	// the verification pipeline performs. Entries older than window are
	// treated as unseen.
	ObservedTag(ctx context.Context, credentialID uuid.UUID, serverID string, m1Tag, nonce []byte, window time.Duration) (replayed bool, err error)
}
