package app

import "errors"

var (
	// ErrBatchSize indicates an empty or oversized submission.
	ErrBatchSize = errors.New("batch size out of range")
	// ErrPromptNotFound indicates the prompt record does not exist.
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrForbidden indicates the actor may not manage the prompt.
	ErrForbidden = errors.New("prompt forbidden")
	// ErrNoContent indicates the prompt has no content to render from.
	ErrNoContent = errors.New("prompt has no content")
	// ErrBatchNotFound indicates no run record exists for the batch id.
	ErrBatchNotFound = errors.New("batch not found")
)
