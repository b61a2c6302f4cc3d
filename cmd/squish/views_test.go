package main

import (
	"strings"
	"testing"

	"squish/internal/ipc"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"running":   "Running",
		"queued":    "Queued",
		"":          "",
		" failed ":  "Failed",
		"two_words": "Two Words",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Errorf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	if got := formatProgress("running", 0.5); got != " 50%" {
		t.Fatalf("unexpected running progress %q", got)
	}
	if got := formatProgress("completed", 0); got != "100%" {
		t.Fatalf("unexpected completed progress %q", got)
	}
	if got := formatProgress("queued", 0); got != "-" {
		t.Fatalf("unexpected queued progress %q", got)
	}
}

func TestBuildJobRowsFallsBackToMediaID(t *testing.T) {
	rows := buildJobRows([]ipc.Job{{
		ID:       "0123456789abcdef",
		MediaID:  "media-1",
		Preset:   "fast",
		Status:   "queued",
		Priority: 2,
	}})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row[0] != "01234567" {
		t.Fatalf("expected shortened id, got %q", row[0])
	}
	if row[1] != "media-1" {
		t.Fatalf("expected media id fallback, got %q", row[1])
	}
	if row[5] != "-" {
		t.Fatalf("expected placeholder path, got %q", row[5])
	}
}

func TestRenderTableIncludesHeaders(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1", "2"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "A") || !strings.Contains(out, "2") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
}
