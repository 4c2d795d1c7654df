package types

import "time"

// PlaceholderNoActionItems stands in when a transcript yields no action items
const PlaceholderNoActionItems = "No action items identified."

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Meeting is a persisted pipeline result
type Meeting struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	Transcript     string    `json:"transcript"`
	Summary        string    `json:"summary"`
	ActionItems    []string  `json:"actionItems"`
	FileSize       int64     `json:"fileSize"`
	ProcessingTime float64   `json:"processingTime"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MeetingPreview is the list form of a meeting with truncated text
type MeetingPreview struct {
	ID                int64     `json:"id"`
	Filename          string    `json:"filename"`
	TranscriptPreview string    `json:"transcriptPreview"`
	SummaryPreview    string    `json:"summaryPreview"`
	CreatedAt         time.Time `json:"createdAt"`
	FileSize          int64     `json:"fileSize"`
	ProcessingTime    float64   `json:"processingTime"`
}

// Result is the response body of a successful transcription request
type Result struct {
	Transcript  string   `json:"transcript"`
	Summary     string   `json:"summary"`
	ActionItems []string `json:"actionItems"`
	Metadata    Metadata `json:"metadata"`
}

// Metadata describes one pipeline run. ProcessingTime, Saved and ID are
// only set when persistence is enabled.
type Metadata struct {
	Filename       string   `json:"filename"`
	ProcessedAt    string   `json:"processedAt"`
	ProcessingTime *float64 `json:"processingTime,omitempty"`
	Saved          *bool    `json:"saved,omitempty"`
	ID             *int64   `json:"id,omitempty"`
	SaveError      string   `json:"saveError,omitempty"`
}
