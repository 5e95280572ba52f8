package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

// Sentinel errors for analysis backend failures.
var (
	ErrBackendUnreachable = errors.New("analysis backend unreachable")
	ErrBackendStatus      = errors.New("analysis backend returned error status")
	ErrBackendTimeout     = errors.New("analysis backend timeout")
	ErrMalformedResponse  = errors.New("malformed analysis backend response")
)

// Client is the interface for the media storage and analysis backend.
type Client interface {
	GetUploadTarget(ctx context.Context, fileName, contentType string) (UploadTarget, error)
	PutArtifact(ctx context.Context, uploadURL string, data []byte, contentType string) error
	GetUploadStatus(ctx context.Context, storageKey string) (bool, error)
	StartAnalysis(ctx context.Context, storageKey, bucket string) (map[models.JobKind]string, error)
	GetAllAnalysisStatus(ctx context.Context, jobs map[models.JobKind]string) (map[models.JobKind]models.JobStatus, error)
	GetAnalysisStatus(ctx context.Context, kind models.JobKind, id string) (models.JobStatus, error)
	GetAnalysisResult(ctx context.Context, jobs map[models.JobKind]string) (Summary, error)
	HealthCheck(ctx context.Context) error
}

// UploadTarget is a one-time upload location issued by the backend.
type UploadTarget struct {
	UploadURL  string
	StorageKey string
	Bucket     string
}

// Summary is the aggregated analysis result. Nil metrics were absent from
// the backend response.
type Summary struct {
	OverallScore    *float64
	Clarity         *float64
	Pace            *float64
	Volume          *float64
	Confidence      *float64
	Recommendations []string
}

// HTTPClient implements Client using the backend's JSON HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	upload  *http.Client
}

// NewHTTPClient creates a new backend HTTP client. Artifact uploads use a
// separate client with uploadTimeout.
func NewHTTPClient(baseURL string, timeout, uploadTimeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		upload:  &http.Client{Timeout: uploadTimeout},
	}
}

func (c *HTTPClient) GetUploadTarget(ctx context.Context, fileName, contentType string) (UploadTarget, error) {
	var resp presignedURLResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/upload/presigned-url", presignedURLRequest{
		FileName: fileName,
		FileType: contentType,
	}, &resp)
	if err != nil {
		return UploadTarget{}, err
	}
	if resp.PresignedURL == "" || resp.S3Key == "" {
		return UploadTarget{}, fmt.Errorf("%w: presigned url or key missing", ErrMalformedResponse)
	}
	return UploadTarget{
		UploadURL:  resp.PresignedURL,
		StorageKey: resp.S3Key,
		Bucket:     resp.Bucket,
	}, nil
}

func (c *HTTPClient) PutArtifact(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.ContentLength = int64(len(data))

	resp, err := c.upload.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: upload status %d", ErrBackendStatus, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) GetUploadStatus(ctx context.Context, storageKey string) (bool, error) {
	var resp uploadStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/upload/status/"+url.PathEscape(storageKey), nil, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (c *HTTPClient) StartAnalysis(ctx context.Context, storageKey, bucket string) (map[models.JobKind]string, error) {
	var resp startAnalysisResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/analysis/start", startAnalysisRequest{
		S3Key:  storageKey,
		Bucket: bucket,
	}, &resp)
	if err != nil {
		return nil, err
	}

	ids := make(map[models.JobKind]string, len(models.JobKinds))
	for kind, id := range resp.AnalysisJobs {
		if id != "" {
			ids[models.JobKind(kind)] = id
		}
	}
	return ids, nil
}

func (c *HTTPClient) GetAllAnalysisStatus(ctx context.Context, jobs map[models.JobKind]string) (map[models.JobKind]models.JobStatus, error) {
	var resp statusAllResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/analysis/status-all", jobsRequest{Jobs: wireJobs(jobs)}, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("%w: results missing", ErrMalformedResponse)
	}

	statuses := make(map[models.JobKind]models.JobStatus, len(models.JobKinds))
	for _, kind := range models.JobKinds {
		statuses[kind] = normalizeStatus(resp.Results[string(kind)].Status)
	}
	return statuses, nil
}

func (c *HTTPClient) GetAnalysisStatus(ctx context.Context, kind models.JobKind, id string) (models.JobStatus, error) {
	var resp jobStatusResponse
	path := fmt.Sprintf("/api/analysis/status/%s/%s", url.PathEscape(string(kind)), url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return normalizeStatus(resp.Status), nil
}

func (c *HTTPClient) GetAnalysisResult(ctx context.Context, jobs map[models.JobKind]string) (Summary, error) {
	var resp summaryResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/analysis/summary", jobsRequest{Jobs: wireJobs(jobs)}, &resp); err != nil {
		return Summary{}, err
	}
	if resp.Summary == nil {
		return Summary{}, fmt.Errorf("%w: summary missing", ErrMalformedResponse)
	}

	s := resp.Summary
	out := Summary{
		OverallScore:    s.OverallScore,
		Recommendations: s.Recommendations,
	}
	if s.Speech != nil {
		out.Clarity = s.Speech.Clarity
		out.Pace = s.Speech.Pace
		out.Volume = s.Speech.Volume
	}
	if s.Facial != nil {
		out.Confidence = s.Facial.Confidence
	}
	return out, nil
}

func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: backend not healthy (status %d)", ErrBackendUnreachable, resp.StatusCode)
	}
	return nil
}

// doJSON sends body (if non-nil) as JSON and decodes a 2xx response into out.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s status %d", ErrBackendStatus, method, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrBackendTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
}

// normalizeStatus folds the backend's status vocabularies into JobStatus.
func normalizeStatus(s string) models.JobStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMPLETED", "SUCCEEDED":
		return models.JobStatusSucceeded
	case "FAILED", "ERROR":
		return models.JobStatusFailed
	case "IN_PROGRESS", "RUNNING", "PROCESSING":
		return models.JobStatusInProgress
	default:
		return models.JobStatusPending
	}
}

func wireJobs(jobs map[models.JobKind]string) map[string]string {
	out := make(map[string]string, len(jobs))
	for kind, id := range jobs {
		out[string(kind)] = id
	}
	return out
}

// --- Backend wire types ---

type presignedURLRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

type presignedURLResponse struct {
	PresignedURL string `json:"presignedUrl"`
	S3Key        string `json:"s3Key"`
	Bucket       string `json:"bucket"`
}

type uploadStatusResponse struct {
	Exists bool `json:"exists"`
}

type startAnalysisRequest struct {
	S3Key  string `json:"s3Key"`
	Bucket string `json:"bucket"`
}

type startAnalysisResponse struct {
	AnalysisJobs map[string]string `json:"analysisJobs"`
	S3Key        string            `json:"s3Key"`
	Bucket       string            `json:"bucket"`
}

type jobsRequest struct {
	Jobs map[string]string `json:"jobs"`
}

type jobStatusResponse struct {
	Status string `json:"status"`
}

type statusAllResponse struct {
	Results map[string]jobStatusResponse `json:"results"`
}

type summaryResponse struct {
	Summary *wireSummary `json:"summary"`
}

type wireSummary struct {
	OverallScore *float64 `json:"overall_score"`
	Speech       *struct {
		Clarity *float64 `json:"clarity"`
		Pace    *float64 `json:"pace"`
		Volume  *float64 `json:"volume"`
	} `json:"speech_analysis"`
	Facial *struct {
		Confidence *float64 `json:"confidence"`
	} `json:"facial_analysis"`
	Recommendations []string `json:"recommendations"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
