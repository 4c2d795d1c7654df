package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

func TestArchiveSave(t *testing.T) {
	dir := t.TempDir()
	a := NewArchive(dir)
	a.now = func() time.Time { return time.Date(2025, 1, 23, 14, 30, 22, 0, time.UTC) }

	result := &types.Result{
		Transcript:  "hello team",
		Summary:     "Greeting.",
		ActionItems: []string{"Say hi back"},
		Metadata:    types.Metadata{Filename: "weekly sync.mp3", ProcessedAt: "2025-01-23T14:30:22Z"},
	}

	path, err := a.Save("weekly sync.mp3", result)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := filepath.Join(dir, "2025", "01", "23", "20250123_143022_weekly_sync.txt")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	text, err := os.ReadFile(path)
	if err != nil || string(text) != "hello team" {
		t.Errorf("transcript = %q, %v", text, err)
	}

	raw, err := os.ReadFile(strings.TrimSuffix(path, ".txt") + "_meta.json")
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	var meta struct {
		Summary     string         `json:"summary"`
		ActionItems []string       `json:"actionItems"`
		Metadata    types.Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("unmarshal meta: %v", err)
	}
	if meta.Summary != "Greeting." || len(meta.ActionItems) != 1 || meta.Metadata.Filename != "weekly sync.mp3" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"standup.mp3", "standup"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\call.wav`, "call"},
		{"a:b*c?.ogg", "a_b_c_"},
		{"", "recording"},
		{"..", "recording"},
		{strings.Repeat("x", 150) + ".wav", strings.Repeat("x", 100)},
	}

	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
