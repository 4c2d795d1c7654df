package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/logging"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/metrics"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/storage"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/types"
)

type fakeProcessor struct {
	calls  int
	last   pipeline.Upload
	result *types.Result
	err    error
}

func (f *fakeProcessor) Process(ctx context.Context, up pipeline.Upload) (*types.Result, error) {
	f.calls++
	f.last = up
	os.Remove(up.Path)
	return f.result, f.err
}

type memStore struct {
	meetings map[int64]*types.Meeting
	err      error
}

func (m *memStore) List(ctx context.Context, limit int) ([]types.MeetingPreview, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]types.MeetingPreview, 0)
	for id := int64(len(m.meetings) + 10); id > 0 && len(out) < limit; id-- {
		if mt, ok := m.meetings[id]; ok {
			out = append(out, types.MeetingPreview{ID: mt.ID, Filename: mt.Filename, TranscriptPreview: mt.Transcript})
		}
	}
	return out, nil
}

func (m *memStore) Get(ctx context.Context, id int64) (*types.Meeting, error) {
	if m.err != nil {
		return nil, m.err
	}
	mt, ok := m.meetings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return mt, nil
}

func (m *memStore) Delete(ctx context.Context, id int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.meetings[id]
	delete(m.meetings, id)
	return ok, nil
}

func (m *memStore) Count(ctx context.Context) (int, error) {
	return len(m.meetings), m.err
}

type modelStatus bool

func (s modelStatus) Loaded() bool { return bool(s) }

type testEnv struct {
	app       *fiber.App
	processor *fakeProcessor
	store     *memStore
	tempDir   string
}

func newTestEnv(t *testing.T, persistence bool) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.New()
	env := &testEnv{
		processor: &fakeProcessor{result: &types.Result{
			Transcript:  "hello",
			Summary:     "greeting",
			ActionItems: []string{"wave"},
			Metadata:    types.Metadata{Filename: "call.mp3", ProcessedAt: "2025-01-01T00:00:00Z"},
		}},
		store: &memStore{meetings: map[int64]*types.Meeting{
			1: {ID: 1, Filename: "one.wav", Transcript: "first", ActionItems: []string{"a"}},
			2: {ID: 2, Filename: "two.wav", Transcript: "second", ActionItems: []string{"b"}},
		}},
		tempDir: t.TempDir(),
	}

	buf := logging.NewBuffer(10)
	_, _ = buf.Write([]byte("line one\nline two\n"))

	routes := Routes{
		Transcribe: NewTranscribeHandler(env.processor, env.tempDir, 1024, logger),
		Logs:       NewLogsHandler(buf),
		Metrics:    m.Handler(),
	}
	if persistence {
		routes.Meetings = NewMeetingsHandler(env.store, m, logger)
		routes.Health = NewHealthHandler(modelStatus(true), "http://llm:1234", env.store, logger)
	} else {
		routes.Health = NewHealthHandler(modelStatus(false), "http://llm:1234", nil, logger)
	}

	env.app = fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(logger)})
	Register(env.app, routes)
	return env
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for name, data := range files {
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(data)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return body, w.FormDataContentType()
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return resp.StatusCode, body
}

func uploadRequest(t *testing.T, field string, files map[string][]byte) *http.Request {
	body, ct := multipartBody(t, field, files)
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", ct)
	return req
}

func TestTranscribeSuccess(t *testing.T) {
	env := newTestEnv(t, true)

	status, body := do(t, env.app, uploadRequest(t, UploadField, map[string][]byte{"Call.MP3": []byte("data")}))
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["transcript"] != "hello" || body["summary"] != "greeting" {
		t.Errorf("body = %v", body)
	}
	if env.processor.calls != 1 {
		t.Fatalf("processor calls = %d", env.processor.calls)
	}
	up := env.processor.last
	if up.Filename != "Call.MP3" || up.Size != 4 || up.RequestID == "" || up.StartedAt.IsZero() {
		t.Errorf("upload = %+v", up)
	}
	if !strings.HasPrefix(up.Path, env.tempDir) || !strings.HasSuffix(up.Path, ".mp3") {
		t.Errorf("upload path = %q", up.Path)
	}
}

func TestTranscribeRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
	}{
		{"no file", func(t *testing.T) *http.Request {
			return uploadRequest(t, UploadField, nil)
		}, fiber.StatusBadRequest},
		{"wrong field", func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", map[string][]byte{"a.wav": []byte("x")})
		}, fiber.StatusBadRequest},
		{"two files", func(t *testing.T) *http.Request {
			return uploadRequest(t, UploadField, map[string][]byte{"a.wav": []byte("x"), "b.wav": []byte("y")})
		}, fiber.StatusBadRequest},
		{"not multipart", func(t *testing.T) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/api/transcribe", strings.NewReader("{}"))
			req.Header.Set("Content-Type", "application/json")
			return req
		}, fiber.StatusBadRequest},
		{"unsupported format", func(t *testing.T) *http.Request {
			return uploadRequest(t, UploadField, map[string][]byte{"notes.txt": []byte("x")})
		}, fiber.StatusBadRequest},
		{"too large", func(t *testing.T) *http.Request {
			return uploadRequest(t, UploadField, map[string][]byte{"big.wav": bytes.Repeat([]byte("x"), 2048)})
		}, fiber.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			status, body := do(t, env.app, tt.req(t))
			if status != tt.status {
				t.Errorf("status = %d, want %d (body %v)", status, tt.status, body)
			}
			if _, ok := body["error"]; !ok {
				t.Errorf("body has no error field: %v", body)
			}
			if env.processor.calls != 0 {
				t.Error("processor ran for a rejected upload")
			}
			entries, _ := os.ReadDir(env.tempDir)
			if len(entries) != 0 {
				t.Errorf("temp dir not empty: %d entries", len(entries))
			}
		})
	}
}

func TestTranscribePipelineFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.processor.result = nil
	env.processor.err = &pipeline.StageError{Stage: metrics.StageTranscribe, Err: errors.New("no speech")}

	status, body := do(t, env.app, uploadRequest(t, UploadField, map[string][]byte{"a.wav": []byte("x")}))
	if status != fiber.StatusInternalServerError {
		t.Fatalf("status = %d", status)
	}
	if body["error"] != "Transcription failed" {
		t.Errorf("error = %v", body["error"])
	}
	if !strings.Contains(body["details"].(string), "no speech") {
		t.Errorf("details = %v", body["details"])
	}
}

func TestMeetingsRoutes(t *testing.T) {
	env := newTestEnv(t, true)

	status, body := do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings", nil))
	if status != fiber.StatusOK || body["count"] != float64(2) {
		t.Fatalf("list = %d %v", status, body)
	}
	first := body["meetings"].([]any)[0].(map[string]any)
	if first["id"] != float64(2) {
		t.Errorf("first meeting = %v", first)
	}

	status, body = do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings?limit=1", nil))
	if status != fiber.StatusOK || body["count"] != float64(1) {
		t.Errorf("limited list = %d %v", status, body)
	}

	status, _ = do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings?limit=zero", nil))
	if status != fiber.StatusBadRequest {
		t.Errorf("bad limit status = %d", status)
	}

	_, a := do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings/1", nil))
	_, b := do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings/1", nil))
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if !bytes.Equal(ja, jb) || a["filename"] != "one.wav" {
		t.Errorf("repeated GET differs: %s vs %s", ja, jb)
	}

	status, body = do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings/abc", nil))
	if status != fiber.StatusBadRequest || body["error"] == nil {
		t.Errorf("non-integer id = %d %v", status, body)
	}

	status, body = do(t, env.app, httptest.NewRequest(http.MethodDelete, "/api/meetings/1", nil))
	if status != fiber.StatusOK || body["deleted"] != true || body["id"] != float64(1) {
		t.Errorf("delete = %d %v", status, body)
	}

	status, _ = do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings/1", nil))
	if status != fiber.StatusNotFound {
		t.Errorf("get after delete = %d", status)
	}

	status, body = do(t, env.app, httptest.NewRequest(http.MethodDelete, "/api/meetings/1", nil))
	if status != fiber.StatusOK || body["deleted"] != false {
		t.Errorf("second delete = %d %v", status, body)
	}

	_, body = do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings", nil))
	for _, m := range body["meetings"].([]any) {
		if m.(map[string]any)["id"] == float64(1) {
			t.Error("deleted meeting still listed")
		}
	}
}

func TestMeetingsStoreError(t *testing.T) {
	env := newTestEnv(t, true)
	env.store.err = errors.New("database is locked")

	status, body := do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings", nil))
	if status != fiber.StatusInternalServerError || body["error"] == nil {
		t.Errorf("list = %d %v", status, body)
	}
}

func TestMeetingsDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	status, _ := do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/meetings", nil))
	if status != fiber.StatusNotFound {
		t.Errorf("status = %d, want 404 with persistence disabled", status)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, true)
	status, body := do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "healthy" || body["modelLoaded"] != true || body["llmEndpoint"] != "http://llm:1234" {
		t.Errorf("body = %v", body)
	}
	if body["persistence"] != true || body["meetingCount"] != float64(2) {
		t.Errorf("body = %v", body)
	}

	env = newTestEnv(t, false)
	_, body = do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if body["persistence"] != false || body["modelLoaded"] != false {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["meetingCount"]; ok {
		t.Error("meetingCount reported without persistence")
	}
}

func TestLogsAndMetrics(t *testing.T) {
	env := newTestEnv(t, false)

	status, body := do(t, env.app, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	if status != fiber.StatusOK {
		t.Fatalf("logs status = %d", status)
	}
	logs := body["logs"].([]any)
	if len(logs) != 2 || logs[1] != "line two" {
		t.Errorf("logs = %v", logs)
	}

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(raw), "meeting_pipelines_in_flight") {
		t.Errorf("metrics = %d %q", resp.StatusCode, raw)
	}
}
