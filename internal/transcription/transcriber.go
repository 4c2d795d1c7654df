package transcription

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

// Options are the decoding parameters passed to the engine
type Options struct {
	ChunkLength time.Duration
	Stride      time.Duration
	Language    string
	Task        string
}

// DefaultOptions returns the fixed chunking and language settings:
// 30 second windows overlapping by 5 seconds, English, transcribe.
func DefaultOptions() Options {
	return Options{
		ChunkLength: 30 * time.Second,
		Stride:      5 * time.Second,
		Language:    "en",
		Task:        "transcribe",
	}
}

// Transcriber turns a normalized buffer into text using the shared model
type Transcriber struct {
	model  *Model
	opts   Options
	logger *zap.Logger
}

// NewTranscriber creates a transcriber over model
func NewTranscriber(model *Model, logger *zap.Logger) *Transcriber {
	return &Transcriber{
		model:  model,
		opts:   DefaultOptions(),
		logger: logger,
	}
}

// Transcribe returns the recognized text of buf. An empty or
// whitespace-only result is reported as ErrTranscription.
func (t *Transcriber) Transcribe(ctx context.Context, buf *audio.Buffer) (string, error) {
	engine, err := t.model.Get(ctx)
	if err != nil {
		return "", err
	}

	windows := audio.Split(buf.Samples, buf.SampleRate, t.opts.ChunkLength, t.opts.Stride)
	if len(windows) == 0 {
		return "", fmt.Errorf("%w: no audio samples", ErrTranscription)
	}

	perWindow, err := engine.TranscribeWindows(ctx, windows, buf.SampleRate, t.opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if len(perWindow) != len(windows) {
		return "", fmt.Errorf("%w: engine returned %d results for %d windows", ErrTranscription, len(perWindow), len(windows))
	}

	text := strings.TrimSpace(MergeWindows(windows, perWindow, buf.SampleRate))
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrTranscription)
	}

	t.logger.Info("Transcription completed",
		zap.Int("windows", len(windows)),
		zap.Duration("audio_duration", buf.Duration()),
		zap.Int("characters", len(text)),
	)
	return text, nil
}

// MergeWindows joins per-window segments into one text. Each overlap is
// split at its midpoint and a segment belongs to the window whose share
// contains the segment's midpoint, so overlapping speech is kept once.
func MergeWindows(windows []audio.Window, segments [][]types.Segment, sampleRate int) string {
	var parts []string

	for i, w := range windows {
		lo, hi := keptRange(windows, i, sampleRate)
		offset := float64(w.Start) / float64(sampleRate)

		for _, seg := range segments[i] {
			mid := offset + (seg.Start+seg.End)/2
			if mid < lo || mid >= hi {
				continue
			}
			if text := strings.TrimSpace(seg.Text); text != "" {
				parts = append(parts, text)
			}
		}
	}

	return strings.Join(parts, " ")
}

// keptRange returns the absolute [lo, hi) seconds owned by window i
func keptRange(windows []audio.Window, i, sampleRate int) (float64, float64) {
	rate := float64(sampleRate)
	lo, hi := math.Inf(-1), math.Inf(1)

	if i > 0 {
		lo = float64(windows[i].Start+windows[i-1].End()) / 2 / rate
	}
	if i < len(windows)-1 {
		hi = float64(windows[i+1].Start+windows[i].End()) / 2 / rate
	}

	return lo, hi
}
