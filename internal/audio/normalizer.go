// Package audio turns uploaded audio into the mono 16 kHz float samples the
// speech model consumes.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/executor"
)

// TargetSampleRate is the sample rate the speech model expects
const TargetSampleRate = 16000

var (
	// ErrConversion means the external decoder could not convert the input
	ErrConversion = errors.New("audio conversion failed")
	// ErrProcessing means the decoded bytes are not usable audio
	ErrProcessing = errors.New("audio processing failed")
)

// Buffer is a mono sample sequence
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the buffer
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Normalizer converts arbitrary audio files into a canonical Buffer
type Normalizer struct {
	executor executor.Executor
	ffmpeg   string
	tempDir  string
	logger   *zap.Logger
}

// NewNormalizer creates a normalizer that writes intermediate files to tempDir
func NewNormalizer(exec executor.Executor, tempDir string, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		executor: exec,
		ffmpeg:   "ffmpeg",
		tempDir:  tempDir,
		logger:   logger,
	}
}

// Normalize reads inputPath and returns mono 16 kHz samples. WAV files
// already at 16 kHz are decoded directly; everything else goes through ffmpeg.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string) (*Buffer, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read input: %v", ErrProcessing, err)
	}

	if !isCanonical(data) {
		n.logger.Debug("Converting audio with ffmpeg", zap.String("path", inputPath))
		data, err = n.convert(ctx, inputPath)
		if err != nil {
			return nil, err
		}
	}

	decoded, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	if decoded.SampleRate != TargetSampleRate {
		return nil, fmt.Errorf("%w: unexpected sample rate %d after conversion", ErrProcessing, decoded.SampleRate)
	}

	buf := &Buffer{
		Samples:    Downmix(decoded.Channels),
		SampleRate: decoded.SampleRate,
	}

	n.logger.Debug("Audio normalized",
		zap.Int("channels", len(decoded.Channels)),
		zap.Duration("duration", buf.Duration()),
	)
	return buf, nil
}

// convert runs ffmpeg to produce a 16 kHz mono 16-bit PCM WAV and returns its bytes
func (n *Normalizer) convert(ctx context.Context, inputPath string) ([]byte, error) {
	outputPath := filepath.Join(n.tempDir, fmt.Sprintf("normalized_%s.wav", uuid.New().String()))
	defer os.Remove(outputPath)

	args := []string{
		"-i", inputPath,
		"-vn",
		"-ar", fmt.Sprint(TargetSampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y",
		outputPath,
	}

	if _, err := n.executor.Execute(ctx, n.ffmpeg, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read ffmpeg output: %v", ErrConversion, err)
	}
	return data, nil
}

// isCanonical reports whether data is a decodable WAV already at the target rate
func isCanonical(data []byte) bool {
	info, err := ParseWAVInfo(data)
	if err != nil {
		return false
	}
	return info.SampleRate == TargetSampleRate
}
