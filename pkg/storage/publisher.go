package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"promptdeck/pkg/ai"
)

// Publisher writes generated image payloads to object storage and returns
// their public URL. It stamps each object with provenance metadata (model
// identifier and generation timestamp) merged with caller-supplied tags.
type Publisher struct {
	store ObjectStore
	model string

	now func() time.Time
}

// NewPublisher builds a publisher recording the given model as provenance.
func NewPublisher(store ObjectStore, model string) *Publisher {
	return &Publisher{store: store, model: model, now: time.Now}
}

// Publish uploads the payload at the key built by pathFor(ext), where ext is
// derived from the payload MIME type (png when absent or unknown).
func (p *Publisher) Publish(ctx context.Context, payload *ai.ImagePayload, pathFor func(ext string) string, tags map[string]string) (string, error) {
	if payload == nil || len(payload.Data) == 0 {
		return "", fmt.Errorf("empty image payload")
	}
	contentType := strings.TrimSpace(payload.MimeType)
	if contentType == "" {
		contentType = "image/png"
	}
	key := pathFor(ExtensionForMime(payload.MimeType))

	metadata := make(map[string]string, len(tags)+2)
	for k, v := range tags {
		metadata[k] = v
	}
	metadata["generated-by"] = p.model
	metadata["generated-at"] = p.now().UTC().Format(time.RFC3339)

	if err := p.store.Put(ctx, key, bytes.NewReader(payload.Data), int64(len(payload.Data)), contentType, metadata); err != nil {
		return "", fmt.Errorf("publish image: %w", err)
	}
	return p.store.PublicURL(key), nil
}

// ExtensionForMime maps an image MIME type to a file extension.
func ExtensionForMime(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
