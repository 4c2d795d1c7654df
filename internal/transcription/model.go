package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

var (
	// ErrTranscription means the model produced no usable text
	ErrTranscription = errors.New("transcription failed")
	// ErrModelUnavailable means the model handle could not be created
	ErrModelUnavailable = errors.New("transcription model unavailable")
)

// Engine is a loaded speech-to-text model. TranscribeWindows returns one
// segment list per window with times relative to the window start.
type Engine interface {
	TranscribeWindows(ctx context.Context, windows []audio.Window, sampleRate int, opts Options) ([][]types.Segment, error)
}

// Loader creates an Engine. It is slow and runs at most once per Model
// unless it fails.
type Loader func(ctx context.Context) (Engine, error)

type handle struct {
	engine Engine
}

// Model is the process-wide, lazily created model handle. Concurrent first
// callers wait for the single in-flight load instead of starting their own.
type Model struct {
	load    Loader
	mu      sync.Mutex
	current atomic.Pointer[handle]
}

// NewModel creates an unloaded model handle
func NewModel(load Loader) *Model {
	return &Model{load: load}
}

// Get returns the engine, loading it on first use. A failed load leaves the
// handle empty so a later call can try again.
func (m *Model) Get(ctx context.Context) (Engine, error) {
	if h := m.current.Load(); h != nil {
		return h.engine, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h := m.current.Load(); h != nil {
		return h.engine, nil
	}

	engine, err := m.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	m.current.Store(&handle{engine: engine})
	return engine, nil
}

// Loaded reports whether the engine has been created
func (m *Model) Loaded() bool {
	return m.current.Load() != nil
}

// Close releases the engine if it holds resources
func (m *Model) Close() error {
	h := m.current.Load()
	if h == nil {
		return nil
	}
	if closer, ok := h.engine.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
