package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

const maxArchiveNameLen = 100

// Archive writes pipeline results to dated directories on the local filesystem
type Archive struct {
	outputDir string
	now       func() time.Time
}

// NewArchive creates an archive rooted at outputDir
func NewArchive(outputDir string) *Archive {
	return &Archive{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Save writes the transcript and a metadata sidecar, returning the
// transcript path. Layout: <dir>/2025/01/23/20250123_143022_standup.txt
func (a *Archive) Save(filename string, result *types.Result) (string, error) {
	now := a.now()
	dateDir := filepath.Join(a.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	base := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sanitizeFilename(filename))
	txtPath := filepath.Join(dateDir, base+".txt")
	metaPath := filepath.Join(dateDir, base+"_meta.json")

	if err := os.WriteFile(txtPath, []byte(result.Transcript), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	meta := struct {
		Summary     string         `json:"summary"`
		ActionItems []string       `json:"actionItems"`
		Metadata    types.Metadata `json:"metadata"`
		Transcript  string         `json:"transcriptPath"`
	}{
		Summary:     result.Summary,
		ActionItems: result.ActionItems,
		Metadata:    result.Metadata,
		Transcript:  txtPath,
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}

	return txtPath, nil
}

// sanitizeFilename drops the directory part and extension of name and
// replaces characters that are unsafe in file names
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))

	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		name = "recording"
	}
	if utf8.RuneCountInString(name) > maxArchiveNameLen {
		name = string([]rune(name)[:maxArchiveNameLen])
	}
	return name
}
