// Package upload moves a recorded interview artifact into backend storage:
// obtain a one-time upload target, transfer the bytes, then confirm the
// object exists.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/kiranshivaraju/cabinprep/internal/backend"
	"github.com/kiranshivaraju/cabinprep/pkg/models"
)

var (
	// ErrUploadFailed wraps every failure of the upload sequence.
	ErrUploadFailed = errors.New("upload failed")
	// ErrInvalidInput is returned for an empty file name, content type or artifact.
	ErrInvalidInput = errors.New("invalid upload input")
)

// DefaultContentType is used when an artifact carries no media type.
const DefaultContentType = "video/webm"

// Backend is the subset of backend.Client used for uploads.
type Backend interface {
	GetUploadTarget(ctx context.Context, fileName, contentType string) (backend.UploadTarget, error)
	PutArtifact(ctx context.Context, uploadURL string, data []byte, contentType string) error
	GetUploadStatus(ctx context.Context, storageKey string) (bool, error)
}

// Client performs the three-step upload against a Backend.
type Client struct {
	backend Backend
}

// NewClient creates an upload Client.
func NewClient(b Backend) *Client {
	return &Client{backend: b}
}

// RequestUploadTarget obtains a one-time upload location.
func (c *Client) RequestUploadTarget(ctx context.Context, fileName, contentType string) (backend.UploadTarget, error) {
	if strings.TrimSpace(fileName) == "" || strings.TrimSpace(contentType) == "" {
		return backend.UploadTarget{}, fmt.Errorf("%w: %w: file name and content type are required", ErrUploadFailed, ErrInvalidInput)
	}
	target, err := c.backend.GetUploadTarget(ctx, fileName, contentType)
	if err != nil {
		return backend.UploadTarget{}, fmt.Errorf("%w: requesting upload target: %w", ErrUploadFailed, err)
	}
	return target, nil
}

// Transfer sends the artifact bytes to the upload location.
func (c *Client) Transfer(ctx context.Context, data []byte, uploadURL, contentType string) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: %w: empty payload", ErrUploadFailed, ErrInvalidInput)
	}
	if err := c.backend.PutArtifact(ctx, uploadURL, data, contentType); err != nil {
		return fmt.Errorf("%w: transferring artifact: %w", ErrUploadFailed, err)
	}
	return nil
}

// ConfirmStored asks the backend whether the object at storageKey exists.
func (c *Client) ConfirmStored(ctx context.Context, storageKey string) (bool, error) {
	exists, err := c.backend.GetUploadStatus(ctx, storageKey)
	if err != nil {
		return false, fmt.Errorf("%w: confirming storage: %w", ErrUploadFailed, err)
	}
	return exists, nil
}

// Upload runs request, transfer and confirm in order. On success the
// artifact's StorageKey and Bucket are set.
func (c *Client) Upload(ctx context.Context, a *models.Artifact) error {
	if a.Empty() {
		return fmt.Errorf("%w: %w: no media captured", ErrUploadFailed, ErrInvalidInput)
	}
	if a.ContentType == "" {
		a.ContentType = DefaultContentType
	}

	target, err := c.RequestUploadTarget(ctx, a.FileName, a.ContentType)
	if err != nil {
		return err
	}
	if err := c.Transfer(ctx, a.Data, target.UploadURL, a.ContentType); err != nil {
		return err
	}

	exists, err := c.ConfirmStored(ctx, target.StorageKey)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: object %s not found after transfer", ErrUploadFailed, target.StorageKey)
	}

	a.StorageKey = target.StorageKey
	a.Bucket = target.Bucket

	slog.Debug("artifact uploaded",
		"file_name", a.FileName,
		"storage_key", a.StorageKey,
		"bytes", len(a.Data),
	)
	return nil
}

// FileName builds interview_<unix-ms>_<candidate>.<ext>.
func FileName(candidate, contentType string, now time.Time) string {
	return fmt.Sprintf("interview_%d_%s.%s", now.UnixMilli(), sanitize(candidate), extension(contentType))
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "candidate"
	}
	return b.String()
}

func extension(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(strings.ToLower(mediaType)) {
	case "video/webm", "audio/webm":
		return "webm"
	case "video/mp4":
		return "mp4"
	case "video/quicktime":
		return "mov"
	case "audio/ogg", "video/ogg":
		return "ogg"
	default:
		return "bin"
	}
}
