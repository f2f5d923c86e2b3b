package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/videoprep/internal/convex"
	"github.com/maauso/videoprep/internal/job"
	"github.com/maauso/videoprep/internal/metadata"
	"github.com/maauso/videoprep/internal/prep"
)

// mockStorage implements storage.Storage for testing.
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Download(ctx context.Context, key, dst string) error {
	args := m.Called(ctx, key, dst)
	return args.Error(0)
}

func (m *mockStorage) Upload(ctx context.Context, key, src, contentType string) error {
	args := m.Called(ctx, key, src, contentType)
	return args.Error(0)
}

// mockPreparer implements job.Preparer for testing.
type mockPreparer struct {
	mock.Mock
}

func (m *mockPreparer) Process(ctx context.Context, req prep.Request) (*prep.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*prep.Result), args.Error(1)
}

// mockReporter implements convex.Reporter for testing.
type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) Report(ctx context.Context, r convex.Report) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

type testDeps struct {
	store    *mockStorage
	preparer *mockPreparer
	reporter *mockReporter
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestHandlers(t *testing.T, opts ...HandlerOption) (*Handlers, *testDeps) {
	t.Helper()
	deps := &testDeps{store: &mockStorage{}, preparer: &mockPreparer{}, reporter: &mockReporter{}}
	svc := job.NewProcessVideoService(job.NewMemoryRepository(), deps.store, deps.preparer, deps.reporter, t.TempDir(), quietLogger())

	if len(opts) == 0 {
		// Background runs are opted into per test.
		opts = []HandlerOption{WithAsyncProcessing(false)}
	}
	return NewHandlers(svc, quietLogger(), opts...), deps
}

const validBody = `{"docId":"doc1","versionId":"ver1","s3Key":"uploads/doc1.mov"}`

func postVideo(h *Handlers, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/videos", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.CreateVideo(rec, req)
	return rec
}

func getVideo(h *Handlers, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/videos/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	h.GetVideo(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestCreateVideo_Success(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := postVideo(h, validBody)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateVideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)

	got := getVideo(h, resp.ID)
	assert.Equal(t, http.StatusOK, got.Code)
}

func TestCreateVideo_InvalidJSON(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := postVideo(h, "invalid json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestCreateVideo_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing fields", `{}`},
		{"missing s3 key", `{"docId":"doc1","versionId":"ver1"}`},
		{"path in doc id", `{"docId":"../doc1","versionId":"ver1","s3Key":"k"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandlers(t)

			rec := postVideo(h, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		})
	}
}

func TestCreateVideo_BackgroundRunCompletes(t *testing.T) {
	h, deps := newTestHandlers(t, WithAsyncProcessing(true))

	deps.store.On("Download", mock.Anything, "uploads/doc1.mov", mock.AnythingOfType("string")).Return(nil)
	deps.preparer.On("Process", mock.Anything, mock.MatchedBy(func(r prep.Request) bool {
		return r.VideoID == "doc1" && r.ChapterPath == ""
	})).Run(func(args mock.Arguments) {
		req := args.Get(1).(prep.Request)
		assert.NoError(t, os.MkdirAll(req.ExportDir, 0o750))
		assert.NoError(t, os.WriteFile(filepath.Join(req.ExportDir, "montage.jpg"), []byte("jpg"), 0o600))
	}).Return(&prep.Result{Metadata: &metadata.Video{ID: "doc1", Montage: &metadata.Montage{ThumbWidth: 30}}}, nil)
	deps.store.On("Upload", mock.Anything, "video/doc1/montage.jpg", mock.AnythingOfType("string"), "image/jpeg").Return(nil)
	deps.reporter.On("Report", mock.Anything, convex.Report{
		VersionID:      "ver1",
		Status:         convex.StatusPublished,
		PublishedS3Key: "video/doc1/video/video.mp4",
	}).Return(nil)

	rec := postVideo(h, validBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created CreateVideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	h.Wait()

	got := getVideo(h, created.ID)
	require.Equal(t, http.StatusOK, got.Code)

	var resp VideoResponse
	require.NoError(t, json.NewDecoder(got.Body).Decode(&resp))
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, "doc1", resp.DocID)
	assert.Equal(t, "video/doc1", resp.OutputPrefix)
	assert.Equal(t, "video/doc1/video/video.mp4", resp.PublishedKey)
	require.NotNil(t, resp.Metadata)
	assert.Equal(t, 30, resp.Metadata.Montage.ThumbWidth)

	deps.store.AssertExpectations(t)
	deps.preparer.AssertExpectations(t)
	deps.reporter.AssertExpectations(t)
}

func TestCreateVideo_BackgroundRunFails(t *testing.T) {
	h, deps := newTestHandlers(t, WithAsyncProcessing(true))

	deps.store.On("Download", mock.Anything, "uploads/doc1.mov", mock.AnythingOfType("string")).
		Return(errors.New("access denied"))
	deps.reporter.On("Report", mock.Anything, mock.MatchedBy(func(r convex.Report) bool {
		return r.Status == convex.StatusFailed && r.VersionID == "ver1"
	})).Return(nil)

	rec := postVideo(h, validBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created CreateVideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	h.Wait()

	var resp VideoResponse
	require.NoError(t, json.NewDecoder(getVideo(h, created.ID).Body).Decode(&resp))
	assert.Equal(t, "FAILED", resp.Status)
	assert.Contains(t, resp.Error, "access denied")
	assert.Empty(t, resp.PublishedKey)
	assert.Nil(t, resp.Metadata)

	deps.preparer.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
	deps.reporter.AssertExpectations(t)
}

func TestGetVideo_NotFound(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := getVideo(h, "job-9b2c1a3e-4f5d-4e6a-8b7c-0d1e2f3a4b5c")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "JOB_NOT_FOUND", resp.Code)
}

func TestGetVideo_InvalidID(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := getVideo(h, "not-a-job")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_JOB_ID", resp.Code)
}

func TestRouter_Integration(t *testing.T) {
	h, _ := newTestHandlers(t)
	router := NewRouter(h, quietLogger(), DefaultConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/videos", bytes.NewReader([]byte(validBody))))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created CreateVideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos/"+created.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/videos/"+created.ID, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h, _ := newTestHandlers(t)

	cfg := Config{AllowedOrigins: []string{"https://example.com"}}
	router := NewRouter(h, quietLogger(), cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/videos", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicHandler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(quietLogger())(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}
