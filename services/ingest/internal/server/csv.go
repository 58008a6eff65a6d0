package server

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"promptdeck/pkg/domain"
)

// csv columns are matched by header name, so callers may reorder or omit
// the optional ones. title, content and category are required headers.
var csvRequiredColumns = []string{"title", "content", "category"}

// parseCSVItems decodes a CSV upload into submission items. Rows are not
// validated here beyond shape; the application validates each item so a bad
// row fails only itself.
func parseCSVItems(r io.Reader) ([]domain.PromptInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New("csv: missing header row")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range csvRequiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv: missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	intField := func(row []string, name string) int {
		n, err := strconv.Atoi(field(row, name))
		if err != nil {
			return 0
		}
		return n
	}

	var items []domain.PromptInput
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: %v", len(items)+2, err)
		}
		item := domain.PromptInput{
			Title:    field(row, "title"),
			Content:  field(row, "content"),
			Category: field(row, "category"),
			Slug:     field(row, "slug"),
			Views:    intField(row, "views"),
			Likes:    intField(row, "likes"),
			Copies:   intField(row, "copies"),
			Launches: domain.LaunchCounters{
				ChatGPT: intField(row, "launch_chatgpt"),
				Claude:  intField(row, "launch_claude"),
				Gemini:  intField(row, "launch_gemini"),
				Grok:    intField(row, "launch_grok"),
			},
		}
		if raw := field(row, "public"); raw != "" {
			if public, err := strconv.ParseBool(raw); err == nil {
				item.Public = &public
			}
		}
		items = append(items, item)
	}
	return items, nil
}
