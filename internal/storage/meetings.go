package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

var (
	// ErrNotFound is returned when no meeting has the requested id
	ErrNotFound = errors.New("meeting not found")
	// ErrPersistence wraps every database failure
	ErrPersistence = errors.New("persistence failure")
	// ErrEmptyTranscript rejects meetings without transcript text
	ErrEmptyTranscript = errors.New("transcript must not be empty")
)

const (
	transcriptPreviewRunes = 100
	summaryPreviewRunes    = 150

	// fixed width so lexical order on created_at is chronological
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MeetingStore handles SQLite operations for meeting records
type MeetingStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewMeetingStore opens the database at dbPath and applies pending migrations
func NewMeetingStore(dbPath string, logger *zap.Logger) (*MeetingStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create database directory: %v", ErrPersistence, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrPersistence, err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", ErrPersistence, err)
	}

	migrations := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migrations",
	}
	n, err := migrate.Exec(db, "sqlite3", migrations, migrate.Up)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to apply migrations: %v", ErrPersistence, err)
	}
	logger.Info("Meeting database ready", zap.String("path", dbPath), zap.Int("migrations_applied", n))

	return &MeetingStore{db: db, logger: logger, now: time.Now}, nil
}

// Insert stores m and returns the assigned id. ID and CreatedAt on m are
// ignored.
func (s *MeetingStore) Insert(ctx context.Context, m *types.Meeting) (int64, error) {
	if strings.TrimSpace(m.Transcript) == "" {
		return 0, ErrEmptyTranscript
	}

	items := m.ActionItems
	if len(items) == 0 {
		items = []string{types.PlaceholderNoActionItems}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to encode action items: %v", ErrPersistence, err)
	}

	query := `
	INSERT INTO meetings (filename, transcript, summary, action_items, file_size, processing_time, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query, m.Filename, m.Transcript, m.Summary, string(itemsJSON),
		m.FileSize, m.ProcessingTime, s.now().UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to save meeting: %v", ErrPersistence, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read meeting id: %v", ErrPersistence, err)
	}
	return id, nil
}

// List returns up to limit meeting previews, newest first
func (s *MeetingStore) List(ctx context.Context, limit int) ([]types.MeetingPreview, error) {
	// one rune past the preview length tells truncate whether to add "..."
	query := fmt.Sprintf(`
	SELECT id, filename, substr(transcript, 1, %d), substr(summary, 1, %d), created_at, file_size, processing_time
	FROM meetings ORDER BY created_at DESC, id DESC LIMIT ?
	`, transcriptPreviewRunes+1, summaryPreviewRunes+1)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list meetings: %v", ErrPersistence, err)
	}
	defer rows.Close()

	previews := make([]types.MeetingPreview, 0)
	for rows.Next() {
		var (
			p          types.MeetingPreview
			transcript string
			summary    string
			createdAt  string
		)
		if err := rows.Scan(&p.ID, &p.Filename, &transcript, &summary, &createdAt, &p.FileSize, &p.ProcessingTime); err != nil {
			return nil, fmt.Errorf("%w: failed to scan meeting: %v", ErrPersistence, err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		p.TranscriptPreview = truncate(transcript, transcriptPreviewRunes)
		p.SummaryPreview = truncate(summary, summaryPreviewRunes)
		previews = append(previews, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list meetings: %v", ErrPersistence, err)
	}

	return previews, nil
}

// Get returns the full meeting with the given id
func (s *MeetingStore) Get(ctx context.Context, id int64) (*types.Meeting, error) {
	query := `
	SELECT id, filename, transcript, summary, action_items, file_size, processing_time, created_at
	FROM meetings WHERE id = ?
	`

	var (
		m         types.Meeting
		items     string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&m.ID, &m.Filename, &m.Transcript, &m.Summary,
		&items, &m.FileSize, &m.ProcessingTime, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get meeting: %v", ErrPersistence, err)
	}

	if err := json.Unmarshal([]byte(items), &m.ActionItems); err != nil {
		return nil, fmt.Errorf("%w: failed to decode action items: %v", ErrPersistence, err)
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &m, nil
}

// Delete removes the meeting with the given id and reports whether it existed
func (s *MeetingStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("%w: failed to delete meeting: %v", ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to delete meeting: %v", ErrPersistence, err)
	}
	return n > 0, nil
}

// Count returns the number of stored meetings
func (s *MeetingStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meetings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count meetings: %v", ErrPersistence, err)
	}
	return n, nil
}

// Close closes the database connection
func (s *MeetingStore) Close() error {
	return s.db.Close()
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid created_at %q: %v", ErrPersistence, v, err)
	}
	return t.UTC(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
