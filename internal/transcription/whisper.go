package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/config"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/executor"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

// WhisperEngine runs OpenAI Whisper through `python -m whisper`
type WhisperEngine struct {
	executor  executor.Executor
	command   string
	modelName string
	device    string
	threads   int
	tempDir   string
	logger    *zap.Logger
}

// NewWhisperLoader returns a Loader that verifies the whisper runtime once
// and hands back an engine bound to cfg.
func NewWhisperLoader(cfg config.WhisperConfig, exec executor.Executor, tempDir string, logger *zap.Logger) Loader {
	return func(ctx context.Context) (Engine, error) {
		engine := &WhisperEngine{
			executor:  exec,
			command:   cfg.Command,
			modelName: resolveModelName(cfg.Model),
			device:    cfg.Device,
			threads:   cfg.Threads,
			tempDir:   tempDir,
			logger:    logger,
		}

		logger.Info("Loading Whisper runtime",
			zap.String("command", engine.command),
			zap.String("model", engine.modelName),
			zap.String("device", engine.device),
		)

		if _, err := exec.Execute(ctx, engine.command, "-m", "whisper", "--help"); err != nil {
			return nil, fmt.Errorf("whisper runtime not available: %w", err)
		}

		logger.Info("Whisper runtime ready")
		return engine, nil
	}
}

// TranscribeWindows writes every window to a WAV file and transcribes them
// all in a single whisper invocation so the model is loaded once per call.
func (we *WhisperEngine) TranscribeWindows(ctx context.Context, windows []audio.Window, sampleRate int, opts Options) ([][]types.Segment, error) {
	workDir := filepath.Join(we.tempDir, "whisper_"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	args := []string{"-m", "whisper"}
	for _, w := range windows {
		data, err := audio.EncodeWAV(w.Samples, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to encode window %d: %w", w.Index, err)
		}
		path := filepath.Join(absWorkDir, windowName(w.Index)+".wav")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write window %d: %w", w.Index, err)
		}
		args = append(args, path)
	}

	args = append(args,
		"--model", we.modelName,
		"--output_dir", absWorkDir,
		"--output_format", "json",
		"--language", opts.Language,
		"--task", opts.Task,
		"--fp16", "False", // CPU compatibility
		"--verbose", "False",
	)
	if we.device != "" {
		args = append(args, "--device", we.device)
	}
	if we.threads > 0 {
		args = append(args, "--threads", strconv.Itoa(we.threads))
	}

	we.logger.Debug("Running whisper", zap.Int("windows", len(windows)))
	if _, err := we.executor.Execute(ctx, we.command, args...); err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	results := make([][]types.Segment, len(windows))
	for i, w := range windows {
		segments, err := readWhisperOutput(filepath.Join(absWorkDir, windowName(w.Index)+".json"))
		if err != nil {
			return nil, err
		}
		results[i] = segments
	}

	return results, nil
}

// WhisperOutput matches Python Whisper's JSON output format
type WhisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []WhisperSegment `json:"segments"`
}

// WhisperSegment represents a timestamped segment from Whisper
type WhisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func readWhisperOutput(path string) ([]types.Segment, error) {
	jsonData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	var out WhisperOutput
	if err := json.Unmarshal(jsonData, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	segments := make([]types.Segment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		segments = append(segments, types.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return segments, nil
}

func windowName(index int) string {
	return fmt.Sprintf("window_%03d", index)
}

// resolveModelName accepts a model name or a ggml-style path such as
// "models/ggml-small.bin" and returns the Whisper model name.
func resolveModelName(model string) string {
	if !strings.ContainsAny(model, `/\`) && !strings.HasSuffix(model, ".bin") && !strings.HasSuffix(model, ".pt") {
		return model
	}

	base := strings.ToLower(filepath.Base(model))
	for _, name := range []string{"tiny", "base", "small", "medium", "large"} {
		if strings.Contains(base, name) {
			return name
		}
	}
	return "small"
}
