package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"promptdeck/pkg/ai"
)

func TestBuildImagePromptTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("é", imagePromptLimit+50)
	got := buildImagePrompt("  " + long + "  ")
	if !strings.Contains(got, strings.Repeat("é", imagePromptLimit)) {
		t.Fatal("prompt should contain the truncated content")
	}
	if strings.Contains(got, strings.Repeat("é", imagePromptLimit+1)) {
		t.Fatal("prompt content exceeds the limit")
	}
	if !strings.Contains(got, "no embedded text") {
		t.Fatal("art direction missing")
	}
}

func TestSynthesizeThumbnailRetriesOnRateLimit(t *testing.T) {
	rateLimited := &ai.APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}
	gen := &fakeGenerator{respond: func(call int) (*ai.ImagePayload, error) {
		if call < 3 {
			return nil, rateLimited
		}
		return &ai.ImagePayload{Data: []byte("img"), MimeType: "image/webp"}, nil
	}}
	ta := newTestApp(t, gen)

	var delays []time.Duration
	ta.app.retry = ai.RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  3 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	res := ta.app.synthesizeThumbnail(context.Background(), "content", func(ext string) string {
		return "k." + ext
	}, nil)
	if res.Status != ThumbnailCreated {
		t.Fatalf("status = %v, reason = %v", res.Status, res.Reason)
	}
	if res.URL != "https://cdn.test/k.webp" {
		t.Fatalf("url = %q", res.URL)
	}
	if len(delays) != 2 || delays[0] != 3*time.Second || delays[1] != 6*time.Second {
		t.Fatalf("unexpected backoff schedule: %v", delays)
	}
}

func TestSynthesizeThumbnailGivesUpAfterRetryBudget(t *testing.T) {
	rateLimited := &ai.APIError{StatusCode: 429}
	gen := &fakeGenerator{respond: func(int) (*ai.ImagePayload, error) { return nil, rateLimited }}
	ta := newTestApp(t, gen)

	res := ta.app.synthesizeThumbnail(context.Background(), "content", func(ext string) string { return "k." + ext }, nil)
	if res.Status != ThumbnailFailed || !errors.Is(res.Reason, rateLimited) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gen.calls != 4 {
		t.Fatalf("expected 1 attempt + 3 retries, got %d calls", gen.calls)
	}
}

func TestSynthesizeThumbnailDoesNotRetryHardErrors(t *testing.T) {
	gen := &fakeGenerator{respond: func(int) (*ai.ImagePayload, error) {
		return nil, &ai.APIError{StatusCode: 400, Message: "bad request"}
	}}
	ta := newTestApp(t, gen)

	res := ta.app.synthesizeThumbnail(context.Background(), "content", func(ext string) string { return "k." + ext }, nil)
	if res.Status != ThumbnailFailed {
		t.Fatalf("status = %v", res.Status)
	}
	if gen.calls != 1 {
		t.Fatalf("hard errors must not retry, got %d calls", gen.calls)
	}
}

func TestSynthesizeThumbnailPublishFailure(t *testing.T) {
	ta := newTestApp(t, &fakeGenerator{})
	ta.spy.putErr = errors.New("bucket unavailable")

	res := ta.app.synthesizeThumbnail(context.Background(), "content", func(ext string) string { return "k." + ext }, nil)
	if res.Status != ThumbnailFailed || res.Reason == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}
