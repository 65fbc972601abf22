// Package ingest orchestrates the per-document pipeline: structuring, the
// record/attachment commit, and best-effort fragment indexing.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/talentbase/cvsearch/internal/profile"
	"github.com/talentbase/cvsearch/internal/store"
)

// Coordinator writes a candidate record and its attachment so that both are
// present or both are absent. The stores provide per-key atomicity only, so
// coordination is compensation-based: a failed attachment write triggers a
// delete of the record written moments before.
type Coordinator struct {
	records     store.RecordStore
	attachments store.AttachmentStore
	logger      *zap.Logger
}

// NewCoordinator creates a Coordinator over the given stores.
func NewCoordinator(records store.RecordStore, attachments store.AttachmentStore, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		records:     records,
		attachments: attachments,
		logger:      logger,
	}
}

// Commit persists the record and its attachment.
//
// State machine per attempt:
//  1. create record; a duplicate identifier is an idempotent skip, any other
//     failure returns ErrRecordWrite (nothing to compensate)
//  2. insert attachment keyed by the record identifier; if one already exists
//     the write is skipped and the commit succeeds (idempotent under retry)
//  3. if the insert fails, delete the record from step 1 and return
//     ErrAttachmentWrite; if that delete also fails, return *IntegrityError
func (c *Coordinator) Commit(ctx context.Context, rec *profile.Record, attachment []byte) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record has no identifier", ErrRecordWrite)
	}

	if err := c.records.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			c.logger.Info("record already present, skipping create",
				zap.String("id", rec.ID))
		} else {
			return fmt.Errorf("%w: %v", ErrRecordWrite, err)
		}
	}

	exists, err := c.attachments.Exists(ctx, rec.ID)
	if err == nil && exists {
		c.logger.Info("attachment already present, skipping insert",
			zap.String("id", rec.ID))
		return nil
	}
	// An Exists failure falls through to the insert, which is the authority.

	if err := c.attachments.Insert(ctx, rec.ID, attachment); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			// Lost the race against a concurrent duplicate submission.
			// Last-writer-wins is accepted here.
			c.logger.Info("attachment inserted concurrently, treating as success",
				zap.String("id", rec.ID))
			return nil
		}

		c.logger.Error("attachment write failed, compensating",
			zap.String("id", rec.ID), zap.Error(err))

		if delErr := c.records.Delete(ctx, rec.ID); delErr != nil {
			ierr := &IntegrityError{ID: rec.ID, Cause: err, CompensationErr: delErr}
			c.logger.Error("FATAL: compensating delete failed, manual reconciliation required",
				zap.String("id", rec.ID),
				zap.NamedError("attachment_error", err),
				zap.NamedError("delete_error", delErr))
			return ierr
		}

		return fmt.Errorf("%w: %v", ErrAttachmentWrite, err)
	}

	c.logger.Info("committed record and attachment",
		zap.String("id", rec.ID), zap.Int("attachment_bytes", len(attachment)))
	return nil
}
