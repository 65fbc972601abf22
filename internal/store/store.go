// Package store defines the persistence interfaces for candidate records and
// their binary attachments, plus the quarantine sink for rejected documents.
// The consistency coordinator writes through these interfaces so backends can
// be swapped without touching the commit logic.
package store

import (
	"context"

	"github.com/talentbase/cvsearch/internal/profile"
)

// RecordStore persists structured candidate records keyed by identifier.
type RecordStore interface {
	// Create writes a new record. Returns ErrDuplicateID if the identifier
	// is already present.
	Create(ctx context.Context, rec *profile.Record) error

	// Read returns the record for id, or ErrNotFound.
	Read(ctx context.Context, id string) (*profile.Record, error)

	// Delete removes the record for id. Deleting a missing id is not an
	// error; the compensation path must be idempotent.
	Delete(ctx context.Context, id string) error
}

// AttachmentStore persists original document bytes keyed by the record
// identifier.
type AttachmentStore interface {
	// Exists reports whether an attachment is stored under id.
	Exists(ctx context.Context, id string) (bool, error)

	// Insert stores the attachment bytes under id.
	Insert(ctx context.Context, id string, data []byte) error

	// Read returns the attachment bytes for id, or ErrNotFound.
	Read(ctx context.Context, id string) ([]byte, error)
}

// Rejector quarantines documents that failed processing irrecoverably.
// Terminal: nothing in the core reads quarantined items back.
type Rejector interface {
	// Move places the item identified by ref into quarantine with a reason.
	Move(ctx context.Context, ref string, reason string) error
}
