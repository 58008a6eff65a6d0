package ai

import "context"

// ImagePayload holds generated image bytes and their MIME type.
// It is transient: it lives only between the generation call and the
// object-store upload and is never persisted as-is.
type ImagePayload struct {
	Data     []byte
	MimeType string
}

// ImageGenerator produces an image for a free-text prompt.
//
// A (nil, nil) return is a soft failure: the upstream call succeeded but
// carried no image data (common for safety-filtered or ambiguous prompts).
// Callers must not conflate it with an error.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*ImagePayload, error)
}
