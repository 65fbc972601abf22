package ingest

import (
	"errors"
	"fmt"
)

// Rejection reasons recorded in the quarantine sink.
const (
	ReasonEmptyText             = "EmptyText"
	ReasonMalformedResponse     = "MalformedResponse"
	ReasonRecordWriteFailed     = "RecordWriteFailed"
	ReasonAttachmentWriteFailed = "AttachmentWriteFailed"
)

var (
	// ErrRecordWrite means step 1 of the commit failed; nothing was written.
	ErrRecordWrite = errors.New("record write failed")

	// ErrAttachmentWrite means step 2 failed and the record written in step 1
	// was removed by compensation.
	ErrAttachmentWrite = errors.New("attachment write failed")
)

// IntegrityError reports that the compensating delete after a failed
// attachment write itself failed, leaving a record without its attachment.
// This is the one acknowledged gap in the commit guarantee: it is fatal for
// automated processing and requires manual reconciliation.
type IntegrityError struct {
	ID              string
	Cause           error // the attachment write failure
	CompensationErr error // the delete failure
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation for record %s: attachment write failed (%v) and compensating delete failed (%v)",
		e.ID, e.Cause, e.CompensationErr)
}

func (e *IntegrityError) Unwrap() error {
	return e.CompensationErr
}
