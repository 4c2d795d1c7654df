// Package pipeline runs one uploaded recording through normalization,
// transcription, summarization and optional persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/metrics"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

var (
	// ErrNoUpload means the request carried no audio file
	ErrNoUpload = errors.New("no audio file provided")
	// ErrUnsupportedFormat means the upload extension is not an accepted audio format
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrFileTooLarge means the upload exceeds the configured size limit
	ErrFileTooLarge = errors.New("file too large")
)

// StageError reports the pipeline stage that ended a request
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Normalizer decodes an uploaded file into mono 16 kHz samples
type Normalizer interface {
	Normalize(ctx context.Context, path string) (*audio.Buffer, error)
}

// Transcriber turns normalized audio into text
type Transcriber interface {
	Transcribe(ctx context.Context, buf *audio.Buffer) (string, error)
}

// Summarizer produces the summary and action items. Both calls degrade to
// placeholders instead of failing.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, bool)
	ExtractActionItems(ctx context.Context, transcript string) ([]string, bool)
}

// Store persists finished meetings
type Store interface {
	Insert(ctx context.Context, m *types.Meeting) (int64, error)
}

// Archiver writes finished results to disk
type Archiver interface {
	Save(filename string, result *types.Result) (string, error)
}

// Upload is one received recording. The file at Path is owned by the
// pipeline and removed when Process returns.
type Upload struct {
	Path      string
	Filename  string
	Size      int64
	StartedAt time.Time
	RequestID string
}

// Option configures optional processor collaborators
type Option func(*Processor)

// WithStore enables persistence of finished meetings
func WithStore(s Store) Option {
	return func(p *Processor) { p.store = s }
}

// WithArchive enables the on-disk archive of finished results
func WithArchive(a Archiver) Option {
	return func(p *Processor) { p.archive = a }
}

// Processor runs uploads through the pipeline, bounding how many run at once
type Processor struct {
	normalizer  Normalizer
	transcriber Transcriber
	summarizer  Summarizer
	store       Store
	archive     Archiver
	sem         *semaphore.Weighted
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewProcessor creates a processor allowing workers concurrent pipelines
func NewProcessor(
	normalizer Normalizer,
	transcriber Transcriber,
	summarizer Summarizer,
	workers int,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *Processor {
	if workers < 1 {
		workers = 1
	}
	p := &Processor{
		normalizer:  normalizer,
		transcriber: transcriber,
		summarizer:  summarizer,
		sem:         semaphore.NewWeighted(int64(workers)),
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persistent reports whether finished meetings are stored
func (p *Processor) Persistent() bool {
	return p.store != nil
}

// Process runs up through every stage. Normalization and transcription
// failures are returned as *StageError; summarization, persistence and
// archive failures degrade the result instead.
func (p *Processor) Process(ctx context.Context, up Upload) (result *types.Result, err error) {
	if up.Path == "" {
		return nil, ErrNoUpload
	}
	defer p.removeUpload(up.Path)

	logger := p.logger.With(zap.String("request_id", up.RequestID), zap.String("filename", up.Filename))
	started := up.StartedAt
	if started.IsZero() {
		started = p.now()
	}

	degraded := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Pipeline panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			result = nil
			err = &StageError{Stage: "pipeline", Err: fmt.Errorf("panic: %v", r)}
		}
		p.observeRequest(started, degraded, err)
	}()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a pipeline slot: %w", err)
	}
	defer p.sem.Release(1)

	p.metrics.InFlight.Inc()
	defer p.metrics.InFlight.Dec()
	p.metrics.UploadSizeBytes.Observe(float64(up.Size))

	logger.Info("Processing upload", zap.Int64("size", up.Size))

	// Step 1: Normalize audio
	stageStart := p.now()
	buf, err := p.normalizer.Normalize(ctx, up.Path)
	if err != nil {
		return nil, p.fail(logger, metrics.StageNormalize, stageStart, err)
	}
	p.observeStage(metrics.StageNormalize, stageStart)
	p.metrics.AudioDuration.Observe(buf.Duration().Seconds())
	logger.Info("Audio normalized", zap.Duration("audio_duration", buf.Duration()))

	// Step 2: Transcribe
	stageStart = p.now()
	transcript, err := p.transcriber.Transcribe(ctx, buf)
	if err != nil {
		return nil, p.fail(logger, metrics.StageTranscribe, stageStart, err)
	}
	p.observeStage(metrics.StageTranscribe, stageStart)
	logger.Info("Transcription complete", zap.Int("chars", len(transcript)))

	// Step 3: Summarize
	stageStart = p.now()
	summary, ok := p.summarizer.Summarize(ctx, transcript)
	p.observeStage(metrics.StageSummarize, stageStart)
	if !ok {
		degraded = true
		p.metrics.StageDegraded.WithLabelValues(metrics.StageSummarize).Inc()
	}

	// Step 4: Extract action items
	stageStart = p.now()
	items, ok := p.summarizer.ExtractActionItems(ctx, transcript)
	p.observeStage(metrics.StageActions, stageStart)
	if !ok {
		degraded = true
		p.metrics.StageDegraded.WithLabelValues(metrics.StageActions).Inc()
	}

	result = &types.Result{
		Transcript:  transcript,
		Summary:     summary,
		ActionItems: items,
		Metadata: types.Metadata{
			Filename: up.Filename,
		},
	}

	// Step 5: Persist
	if p.store != nil {
		processingTime := math.Round(p.now().Sub(started).Seconds()*100) / 100
		result.Metadata.ProcessingTime = &processingTime

		stageStart = p.now()
		id, err := p.store.Insert(ctx, &types.Meeting{
			Filename:       up.Filename,
			Transcript:     transcript,
			Summary:        summary,
			ActionItems:    items,
			FileSize:       up.Size,
			ProcessingTime: processingTime,
		})
		p.observeStage(metrics.StagePersist, stageStart)

		saved := err == nil
		result.Metadata.Saved = &saved
		if err != nil {
			degraded = true
			p.metrics.StageDegraded.WithLabelValues(metrics.StagePersist).Inc()
			result.Metadata.SaveError = err.Error()
			logger.Error("Failed to save meeting", zap.Error(err))
		} else {
			result.Metadata.ID = &id
			p.metrics.MeetingsSaved.Inc()
			logger.Info("Meeting saved", zap.Int64("id", id))
		}
	}

	result.Metadata.ProcessedAt = p.now().UTC().Format(time.RFC3339)

	// Step 6: Archive
	if p.archive != nil {
		stageStart = p.now()
		path, err := p.archive.Save(up.Filename, result)
		p.observeStage(metrics.StageArchive, stageStart)
		if err != nil {
			degraded = true
			p.metrics.StageDegraded.WithLabelValues(metrics.StageArchive).Inc()
			logger.Warn("Failed to archive result", zap.Error(err))
		} else {
			logger.Debug("Result archived", zap.String("path", path))
		}
	}

	logger.Info("Upload processed", zap.Duration("elapsed", p.now().Sub(started)), zap.Bool("degraded", degraded))
	return result, nil
}

func (p *Processor) fail(logger *zap.Logger, stage string, start time.Time, err error) error {
	p.observeStage(stage, start)
	p.metrics.StageFailures.WithLabelValues(stage).Inc()
	logger.Error("Pipeline stage failed", zap.String("stage", stage), zap.Error(err))
	return &StageError{Stage: stage, Err: err}
}

func (p *Processor) observeStage(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(p.now().Sub(start).Seconds())
}

func (p *Processor) observeRequest(started time.Time, degraded bool, err error) {
	outcome := "success"
	switch {
	case err != nil:
		outcome = "failed"
	case degraded:
		outcome = "degraded"
	}
	p.metrics.RequestsTotal.WithLabelValues(outcome).Inc()
	p.metrics.RequestDuration.Observe(p.now().Sub(started).Seconds())
}

func (p *Processor) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("Failed to remove upload", zap.String("path", path), zap.Error(err))
	}
}
