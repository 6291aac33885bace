package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

func newTestRouter(t *testing.T, fetcher FormatsFetcher) (http.Handler, *Service) {
	t.Helper()
	svc, _ := newTestService(t, fetcher)

	r := chi.NewRouter()
	r.Route("/api/v1", ApplyRouter(NewHandler(svc)))
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestDownloadLifecycleOverHTTP(t *testing.T) {
	h, svc := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/api/v1/download", `{"url":"https://example.com/v","filename":"movie.mp4"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var started downloadResponse
	if err := json.NewDecoder(rec.Body).Decode(&started); err != nil || started.DownloadId == "" {
		t.Fatalf("unexpected body: %v", err)
	}

	waitStatus(t, svc, started.DownloadId, internal.StatusCompleted)

	rec = do(t, h, http.MethodGet, "/api/v1/status/"+started.DownloadId, "")
	var job internal.Job
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != internal.StatusCompleted || job.FileFormat != "MP4" {
		t.Fatalf("unexpected job %+v", job)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/download-file/"+started.DownloadId, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename=movie.mp4` {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
	if rec.Body.Len() != 2048 {
		t.Fatalf("expected 2048 bytes, got %d", rec.Body.Len())
	}

	// pausing a completed job is a conflict
	rec = do(t, h, http.MethodPost, "/api/v1/pause/"+started.DownloadId, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/downloads", "")
	var jobs []internal.Job
	if err := json.NewDecoder(rec.Body).Decode(&jobs); err != nil || len(jobs) != 1 {
		t.Fatalf("expected one job, got %d (%v)", len(jobs), err)
	}

	rec = do(t, h, http.MethodDelete, "/api/v1/downloads/"+started.DownloadId, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCancelOverHTTP(t *testing.T) {
	h, svc := newTestRouter(t, nil)

	id, err := svc.StartDownload(t.Context(), internal.DownloadRequest{URL: "https://example.com/hang"})
	if err != nil {
		t.Fatalf("StartDownload returned error: %v", err)
	}
	waitStatus(t, svc, id, internal.StatusRunning)

	rec := do(t, h, http.MethodGet, "/api/v1/download-file/"+id, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unfinished job, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/cancel/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res actionResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil || !res.Success {
		t.Fatalf("unexpected body %+v (%v)", res, err)
	}

	waitStatus(t, svc, id, internal.StatusCancelled)
}

func TestErrorMapping(t *testing.T) {
	h, _ := newTestRouter(t, stubFetcher{err: fmt.Errorf("probe: %w", internal.ErrTimeout)})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{name: "malformed body", method: http.MethodPost, path: "/api/v1/download", body: `{`, code: http.StatusBadRequest},
		{name: "empty url", method: http.MethodPost, path: "/api/v1/download", body: `{"url":""}`, code: http.StatusBadRequest},
		{name: "bad filename", method: http.MethodPost, path: "/api/v1/download", body: `{"url":"u","filename":"../x"}`, code: http.StatusBadRequest},
		{name: "unknown status", method: http.MethodGet, path: "/api/v1/status/nope", code: http.StatusNotFound},
		{name: "unknown cancel", method: http.MethodPost, path: "/api/v1/cancel/nope", code: http.StatusNotFound},
		{name: "unknown file", method: http.MethodGet, path: "/api/v1/download-file/nope", code: http.StatusNotFound},
		{name: "probe timeout", method: http.MethodPost, path: "/api/v1/check-formats", body: `{"url":"u"}`, code: http.StatusRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body)
			}
			if errorBody(t, rec) == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestCheckFormatsOverHTTP(t *testing.T) {
	want := &internal.FormatsResult{
		Title:   "A video",
		Formats: []internal.Rendition{{FormatId: "22", Height: 720, FilesizeStr: "Unknown"}},
	}
	h, _ := newTestRouter(t, stubFetcher{res: want})

	rec := do(t, h, http.MethodPost, "/api/v1/check-formats", `{"url":"https://example.com/v"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got internal.FormatsResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "A video" || len(got.Formats) != 1 || got.Formats[0].FormatId != "22" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestContainersAreIndependent(t *testing.T) {
	newTestService(t, nil)

	svcA, hA := Container(newTestArgs(t, nil))
	t.Cleanup(svcA.Shutdown)
	svcB, hB := Container(newTestArgs(t, nil))
	t.Cleanup(svcB.Shutdown)

	ra, rb := chi.NewRouter(), chi.NewRouter()
	ra.Route("/api/v1", ApplyRouter(hA))
	rb.Route("/api/v1", ApplyRouter(hB))

	rec := do(t, ra, http.MethodPost, "/api/v1/download", `{"url":"https://example.com/v"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var started struct {
		DownloadId string `json:"download_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}

	waitStatus(t, svcA, started.DownloadId, internal.StatusCompleted)

	if rec := do(t, rb, http.MethodGet, "/api/v1/status/"+started.DownloadId, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected the second container not to see the job, got %d", rec.Code)
	}
}
