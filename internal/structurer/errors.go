package structurer

import "errors"

var (
	// ErrEmptyText means the extracted text was blank after trimming.
	// Terminal for the item, routed to rejection, never retried.
	ErrEmptyText = errors.New("empty CV text")

	// ErrMalformedResponse means the model output could not be parsed into a
	// record. The pipeline does not re-prompt.
	ErrMalformedResponse = errors.New("malformed model response")
)
