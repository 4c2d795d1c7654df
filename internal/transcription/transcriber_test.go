package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

func newTestTranscriber(engine Engine) *Transcriber {
	model := NewModel(func(ctx context.Context) (Engine, error) { return engine, nil })
	return NewTranscriber(model, zap.NewNop())
}

func TestTranscribeUsesFixedOptions(t *testing.T) {
	engine := &stubEngine{segments: [][]types.Segment{{{Start: 0, End: 1, Text: " hello team "}}}}
	tr := newTestTranscriber(engine)

	text, err := tr.Transcribe(context.Background(), &audio.Buffer{Samples: make([]float32, 16000), SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello team" {
		t.Errorf("unexpected text %q", text)
	}

	expected := Options{ChunkLength: 30 * time.Second, Stride: 5 * time.Second, Language: "en", Task: "transcribe"}
	if engine.opts != expected {
		t.Errorf("unexpected options %+v", engine.opts)
	}
}

func TestTranscribeEmptyResultIsError(t *testing.T) {
	tests := []struct {
		name     string
		segments [][]types.Segment
	}{
		{name: "no segments", segments: [][]types.Segment{{}}},
		{name: "whitespace only", segments: [][]types.Segment{{{Start: 0, End: 1, Text: "   \n\t"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTranscriber(&stubEngine{segments: tt.segments})
			_, err := tr.Transcribe(context.Background(), &audio.Buffer{Samples: make([]float32, 160), SampleRate: 16000})
			if !errors.Is(err, ErrTranscription) {
				t.Fatalf("expected ErrTranscription, got %v", err)
			}
		})
	}
}

func TestTranscribeEngineFailure(t *testing.T) {
	tr := newTestTranscriber(&stubEngine{err: errors.New("whisper crashed")})

	_, err := tr.Transcribe(context.Background(), &audio.Buffer{Samples: make([]float32, 160), SampleRate: 16000})
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
}

func TestTranscribeNoSamples(t *testing.T) {
	tr := newTestTranscriber(&stubEngine{})

	_, err := tr.Transcribe(context.Background(), &audio.Buffer{SampleRate: 16000})
	if !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
}

func TestTranscribeModelUnavailable(t *testing.T) {
	model := NewModel(func(ctx context.Context) (Engine, error) { return nil, errors.New("missing") })
	tr := NewTranscriber(model, zap.NewNop())

	_, err := tr.Transcribe(context.Background(), &audio.Buffer{Samples: make([]float32, 160), SampleRate: 16000})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestMergeWindowsDropsOverlapDuplicates(t *testing.T) {
	rate := 10
	// windows: [0,30) [25,55) [50,70) seconds
	windows := audio.Split(make([]float32, 70*rate), rate, 30*time.Second, 5*time.Second)

	segments := [][]types.Segment{
		{
			{Start: 0, End: 10, Text: "one"},
			{Start: 20, End: 26, Text: "two"},   // mid 23 -> kept by window 0
			{Start: 26, End: 30, Text: "three"}, // mid 28 -> owned by window 1
		},
		{
			{Start: 0, End: 1, Text: "two-dup"}, // abs mid 25.5 < 27.5 -> dropped
			{Start: 1, End: 5, Text: "three"},   // abs mid 28 -> kept
			{Start: 10, End: 20, Text: "four"},
			{Start: 26, End: 30, Text: "five"}, // abs mid 53 >= 52.5 -> window 2
		},
		{
			{Start: 2, End: 4, Text: "five"}, // abs mid 53 -> kept
			{Start: 10, End: 20, Text: "six"},
		},
	}

	got := MergeWindows(windows, segments, rate)
	if got != "one two three four five six" {
		t.Errorf("unexpected merge %q", got)
	}
}

func TestResolveModelName(t *testing.T) {
	tests := map[string]string{
		"small":                  "small",
		"large-v3":               "large-v3",
		"small.en":               "small.en",
		"models/ggml-base.bin":   "base",
		"/opt/whisper/tiny.pt":   "tiny",
		"models/ggml-custom.bin": "small",
	}
	for input, expected := range tests {
		if got := resolveModelName(input); got != expected {
			t.Errorf("resolveModelName(%q) = %q, want %q", input, got, expected)
		}
	}
}
