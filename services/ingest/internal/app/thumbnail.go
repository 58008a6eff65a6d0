package app

import (
	"context"
	"fmt"
	"strings"

	"promptdeck/internal/util"
	"promptdeck/pkg/ai"
)

// imagePromptLimit bounds how much prompt content feeds the image model.
const imagePromptLimit = 400

// ThumbnailStatus classifies the outcome of one generation attempt.
type ThumbnailStatus int

const (
	// ThumbnailCreated means an image was generated and published.
	ThumbnailCreated ThumbnailStatus = iota
	// ThumbnailNoImage means the model answered without image data.
	ThumbnailNoImage
	// ThumbnailFailed means generation or publishing errored out.
	ThumbnailFailed
)

// ThumbnailResult reports one generation attempt. URL is set only for
// ThumbnailCreated; Reason only for ThumbnailFailed.
type ThumbnailResult struct {
	Status ThumbnailStatus
	URL    string
	Reason error
}

// synthesizeThumbnail runs the full generate-retry-publish pipeline for one
// prompt. It never returns an error: every failure mode is absorbed into the
// result and logged, so callers degrade instead of aborting.
func (a *App) synthesizeThumbnail(ctx context.Context, content string, pathFor func(ext string) string, tags map[string]string) ThumbnailResult {
	logger := util.LoggerFromContext(ctx)

	payload, err := a.retry.Do(ctx, func(ctx context.Context) (*ai.ImagePayload, error) {
		return a.generator.GenerateImage(ctx, buildImagePrompt(content))
	})
	if err != nil {
		logger.Warn("thumbnail generation failed", "err", err)
		return ThumbnailResult{Status: ThumbnailFailed, Reason: err}
	}
	if payload == nil || len(payload.Data) == 0 {
		logger.Info("model returned no image data")
		return ThumbnailResult{Status: ThumbnailNoImage}
	}

	url, err := a.publisher.Publish(ctx, payload, pathFor, tags)
	if err != nil {
		logger.Warn("thumbnail publish failed", "err", err)
		return ThumbnailResult{Status: ThumbnailFailed, Reason: err}
	}
	return ThumbnailResult{Status: ThumbnailCreated, URL: url}
}

// buildImagePrompt wraps truncated prompt content in a fixed art direction.
func buildImagePrompt(content string) string {
	text := strings.TrimSpace(content)
	if runes := []rune(text); len(runes) > imagePromptLimit {
		text = string(runes[:imagePromptLimit])
	}
	return fmt.Sprintf(
		"Create a visually striking thumbnail image that captures the essence of this prompt: %q. "+
			"Style: modern, clean, vibrant colors, square aspect ratio, no embedded text.",
		text,
	)
}
