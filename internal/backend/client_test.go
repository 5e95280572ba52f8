package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// --- helpers ---

func backendServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(baseURL, 5*time.Second, 5*time.Second)
}

func testJobs() map[models.JobKind]string {
	return map[models.JobKind]string{
		models.JobKindSTT:     "stt-1",
		models.JobKindFace:    "face-1",
		models.JobKindSegment: "seg-1",
	}
}

// --- GetUploadTarget tests ---

func TestGetUploadTarget_ValidResponse(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload/presigned-url" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		var req presignedURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.FileName != "interview_1_kim.webm" {
			t.Errorf("unexpected fileName: %s", req.FileName)
		}
		if req.FileType != "video/webm" {
			t.Errorf("unexpected fileType: %s", req.FileType)
		}

		json.NewEncoder(w).Encode(presignedURLResponse{
			PresignedURL: "https://storage.example.com/put?sig=abc",
			S3Key:        "uploads/interview_1_kim.webm",
			Bucket:       "interviews",
		})
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	target, err := c.GetUploadTarget(context.Background(), "interview_1_kim.webm", "video/webm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.UploadURL != "https://storage.example.com/put?sig=abc" {
		t.Errorf("unexpected upload url: %s", target.UploadURL)
	}
	if target.StorageKey != "uploads/interview_1_kim.webm" {
		t.Errorf("unexpected key: %s", target.StorageKey)
	}
	if target.Bucket != "interviews" {
		t.Errorf("unexpected bucket: %s", target.Bucket)
	}
}

func TestGetUploadTarget_Non2xx(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.GetUploadTarget(context.Background(), "f.webm", "video/webm")
	if !errors.Is(err, ErrBackendStatus) {
		t.Errorf("expected ErrBackendStatus, got: %v", err)
	}
}

func TestGetUploadTarget_MissingKey(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"presignedUrl":"https://x"}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.GetUploadTarget(context.Background(), "f.webm", "video/webm")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got: %v", err)
	}
}

// --- PutArtifact tests ---

func TestPutArtifact_SendsBytesAndContentType(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "video/webm" {
			t.Errorf("unexpected content type: %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "media-bytes" {
			t.Errorf("unexpected body: %q", body)
		}
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	c := newTestClient(t, "http://unused")
	if err := c.PutArtifact(context.Background(), ts.URL+"/put", []byte("media-bytes"), "video/webm"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPutArtifact_Rejected(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	defer ts.Close()

	c := newTestClient(t, "http://unused")
	err := c.PutArtifact(context.Background(), ts.URL, []byte("x"), "video/webm")
	if !errors.Is(err, ErrBackendStatus) {
		t.Errorf("expected ErrBackendStatus, got: %v", err)
	}
}

// --- GetUploadStatus tests ---

func TestGetUploadStatus_EscapesKey(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/upload/status/uploads%2Fa.webm" {
			t.Errorf("unexpected escaped path: %s", r.URL.EscapedPath())
		}
		w.Write([]byte(`{"exists":true}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	exists, err := c.GetUploadStatus(context.Background(), "uploads/a.webm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected exists=true")
	}
}

// --- StartAnalysis tests ---

func TestStartAnalysis_ReturnsHandles(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analysis/start" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req startAnalysisRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.S3Key != "k" || req.Bucket != "b" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{"analysisJobs":{"stt":"stt-1","face":"face-1","segment":"seg-1"},"s3Key":"k","bucket":"b"}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	ids, err := c.StartAnalysis(context.Background(), "k", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 handles, got %d", len(ids))
	}
	if ids[models.JobKindFace] != "face-1" {
		t.Errorf("unexpected face id: %s", ids[models.JobKindFace])
	}
}

func TestStartAnalysis_DropsEmptyHandles(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"analysisJobs":{"stt":"stt-1","face":""}}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	ids, err := c.StartAnalysis(context.Background(), "k", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ids[models.JobKindFace]; ok {
		t.Error("expected empty face handle to be dropped")
	}
}

// --- GetAllAnalysisStatus tests ---

func TestGetAllAnalysisStatus_NormalizesVocabularies(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req jobsRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Jobs["stt"] != "stt-1" {
			t.Errorf("unexpected jobs: %v", req.Jobs)
		}
		w.Write([]byte(`{"results":{"stt":{"status":"COMPLETED"},"face":{"status":"RUNNING"}}}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	statuses, err := c.GetAllAnalysisStatus(context.Background(), testJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if statuses[models.JobKindSTT] != models.JobStatusSucceeded {
		t.Errorf("stt: expected SUCCEEDED, got %s", statuses[models.JobKindSTT])
	}
	if statuses[models.JobKindFace] != models.JobStatusInProgress {
		t.Errorf("face: expected IN_PROGRESS, got %s", statuses[models.JobKindFace])
	}
	if statuses[models.JobKindSegment] != models.JobStatusPending {
		t.Errorf("segment: expected PENDING for missing entry, got %s", statuses[models.JobKindSegment])
	}
}

func TestGetAllAnalysisStatus_MissingResults(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.GetAllAnalysisStatus(context.Background(), testJobs())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got: %v", err)
	}
}

func TestGetAnalysisStatus_SingleJob(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analysis/status/face/face-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"ERROR"}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	status, err := c.GetAnalysisStatus(context.Background(), models.JobKindFace, "face-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != models.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", status)
	}
}

// --- GetAnalysisResult tests ---

func TestGetAnalysisResult_FullSummary(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary":{"overall_score":88,"speech_analysis":{"clarity":91,"pace":80,"volume":77},"facial_analysis":{"confidence":84.6},"recommendations":["Slow down"]}}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	s, err := c.GetAnalysisResult(context.Background(), testJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.OverallScore == nil || *s.OverallScore != 88 {
		t.Errorf("unexpected overall: %v", s.OverallScore)
	}
	if s.Confidence == nil || *s.Confidence != 84.6 {
		t.Errorf("unexpected confidence: %v", s.Confidence)
	}
	if s.Volume == nil || *s.Volume != 77 {
		t.Errorf("unexpected volume: %v", s.Volume)
	}
	if len(s.Recommendations) != 1 {
		t.Errorf("expected 1 recommendation, got %d", len(s.Recommendations))
	}
}

func TestGetAnalysisResult_PartialSummary(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary":{"overall_score":70}}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	s, err := c.GetAnalysisResult(context.Background(), testJobs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Clarity != nil || s.Confidence != nil {
		t.Error("expected absent metrics to be nil")
	}
}

func TestGetAnalysisResult_Undecodable(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.GetAnalysisResult(context.Background(), testJobs())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got: %v", err)
	}
}

// --- HealthCheck tests ---

func TestHealthCheck_OK(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	err := c.HealthCheck(context.Background())
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Errorf("expected ErrBackendUnreachable, got: %v", err)
	}
}

// --- Transport errors ---

func TestUnreachableServer(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", time.Second, time.Second)
	_, err := c.GetUploadStatus(context.Background(), "k")
	if !errors.Is(err, ErrBackendUnreachable) {
		t.Errorf("expected ErrBackendUnreachable, got: %v", err)
	}
}

func TestTimeout(t *testing.T) {
	ts := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"exists":true}`))
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL, 50*time.Millisecond, time.Second)
	_, err := c.GetUploadStatus(context.Background(), "k")
	if !errors.Is(err, ErrBackendTimeout) {
		t.Errorf("expected ErrBackendTimeout, got: %v", err)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]models.JobStatus{
		"COMPLETED":   models.JobStatusSucceeded,
		"succeeded":   models.JobStatusSucceeded,
		"FAILED":      models.JobStatusFailed,
		"ERROR":       models.JobStatusFailed,
		"IN_PROGRESS": models.JobStatusInProgress,
		"RUNNING":     models.JobStatusInProgress,
		"PROCESSING":  models.JobStatusInProgress,
		"PENDING":     models.JobStatusPending,
		"QUEUED":      models.JobStatusPending,
		"":            models.JobStatusPending,
		"mystery":     models.JobStatusPending,
	}
	for in, want := range cases {
		if got := normalizeStatus(in); got != want {
			t.Errorf("normalizeStatus(%q) = %s, want %s", in, got, want)
		}
	}
}
