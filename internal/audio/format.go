package audio

import (
	"path/filepath"
	"strings"
)

// SupportedFormats lists the upload extensions ffmpeg is expected to decode
var SupportedFormats = []string{
	".mp3", ".wav", ".m4a", ".webm", ".ogg", ".oga", ".opus",
	".flac", ".aac", ".wma", ".mp4",
}

// ValidateAudioFormat checks if the file format is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
