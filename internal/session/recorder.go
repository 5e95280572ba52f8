package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	// ErrDeviceUnavailable is returned when the capture device cannot record.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrNotRecording is returned when media is fed to an idle recorder.
	ErrNotRecording = errors.New("recorder is not recording")
	// ErrCaptureTooLarge is returned when fed media exceeds the size limit.
	ErrCaptureTooLarge = errors.New("capture exceeds size limit")
)

// Capture is the media produced by one recording.
type Capture struct {
	Data        []byte
	ContentType string
}

// Recorder abstracts the capture device.
type Recorder interface {
	Available(ctx context.Context) bool
	Start(ctx context.Context) error
	// Stop finalizes the recording. A nil or empty Capture means nothing was captured.
	Stop(ctx context.Context) (*Capture, error)
}

// BufferRecorder collects media pushed to it while recording, for captures
// that arrive over the network.
type BufferRecorder struct {
	mu          sync.Mutex
	recording   bool
	buf         bytes.Buffer
	contentType string
	maxBytes    int64
	disabled    bool
}

// NewBufferRecorder creates a BufferRecorder. maxBytes of 0 is unlimited.
func NewBufferRecorder(maxBytes int64) *BufferRecorder {
	return &BufferRecorder{maxBytes: maxBytes}
}

// SetAvailable toggles whether the device reports itself as available.
func (b *BufferRecorder) SetAvailable(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabled = !ok
}

func (b *BufferRecorder) Available(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.disabled
}

func (b *BufferRecorder) Start(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disabled {
		return ErrDeviceUnavailable
	}
	b.buf.Reset()
	b.contentType = ""
	b.recording = true
	return nil
}

// Feed appends media to the current recording.
func (b *BufferRecorder) Feed(data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return ErrNotRecording
	}
	if b.maxBytes > 0 && int64(b.buf.Len()+len(data)) > b.maxBytes {
		return fmt.Errorf("%w: %d bytes", ErrCaptureTooLarge, b.maxBytes)
	}
	b.buf.Write(data)
	if contentType != "" {
		b.contentType = contentType
	}
	return nil
}

func (b *BufferRecorder) Stop(context.Context) (*Capture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return nil, ErrNotRecording
	}
	b.recording = false
	c := &Capture{
		Data:        append([]byte(nil), b.buf.Bytes()...),
		ContentType: b.contentType,
	}
	b.buf.Reset()
	return c, nil
}

// FileRecorder "records" by reading a prepared media file on Stop.
type FileRecorder struct {
	path        string
	contentType string
}

// NewFileRecorder creates a FileRecorder for path.
func NewFileRecorder(path, contentType string) *FileRecorder {
	return &FileRecorder{path: path, contentType: contentType}
}

func (f *FileRecorder) Available(context.Context) bool {
	info, err := os.Stat(f.path)
	return err == nil && info.Mode().IsRegular()
}

func (f *FileRecorder) Start(ctx context.Context) error {
	if !f.Available(ctx) {
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, f.path)
	}
	return nil
}

func (f *FileRecorder) Stop(context.Context) (*Capture, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return &Capture{Data: data, ContentType: f.contentType}, nil
}

var (
	_ Recorder = (*BufferRecorder)(nil)
	_ Recorder = (*FileRecorder)(nil)
)
