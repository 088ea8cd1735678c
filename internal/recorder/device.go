package recorder

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/careloop/voicechat/internal/audio"
)

// Artifact references the audio captured by a finished recording
type Artifact struct {
	Data        []byte
	ContentType string
}

// Empty reports whether the recording produced no audio
func (a Artifact) Empty() bool {
	return len(a.Data) == 0
}

// Device is the hardware recorder capability. The microphone is a single
// exclusive resource; the Controller guarantees at most one acquisition at
// a time and a release on every exit path.
type Device interface {
	// RequestPermission asks for microphone access; false means denied
	RequestPermission(ctx context.Context) (bool, error)

	// Start begins capturing audio
	Start(ctx context.Context) error

	// Stop ends the capture and returns the recorded artifact
	Stop(ctx context.Context) (Artifact, error)
}

// maxCaptureBytes bounds an in-memory capture; at the 30s default deadline
// this comfortably fits any phone-grade audio container.
const maxCaptureBytes = 8 << 20

// ChunkDevice is an in-memory Device fed audio chunks by the caller. It is
// the Device implementation for push-style capture sources; the CLI ships
// no such source, so today its callers are the package's own tests, which
// use it as the end-to-end capture fixture.
type ChunkDevice struct {
	mu        sync.Mutex
	buffer    *audio.CaptureBuffer
	capturing bool
}

// NewChunkDevice creates an in-memory capture device
func NewChunkDevice() *ChunkDevice {
	return &ChunkDevice{
		buffer: audio.NewCaptureBuffer(maxCaptureBytes),
	}
}

func (d *ChunkDevice) RequestPermission(_ context.Context) (bool, error) {
	return true, nil
}

func (d *ChunkDevice) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capturing {
		return fmt.Errorf("chunk device already capturing")
	}
	d.buffer.Reset()
	d.capturing = true
	return nil
}

// Feed appends a captured audio chunk. Chunks arriving while the device
// is not capturing are dropped.
func (d *ChunkDevice) Feed(chunk []byte) int {
	d.mu.Lock()
	capturing := d.capturing
	d.mu.Unlock()

	if !capturing {
		return 0
	}
	return d.buffer.Append(chunk)
}

func (d *ChunkDevice) Stop(_ context.Context) (Artifact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.capturing {
		return Artifact{}, fmt.Errorf("chunk device not capturing")
	}
	d.capturing = false

	data := d.buffer.Bytes()
	return Artifact{
		Data:        data,
		ContentType: audio.ContentType(data),
	}, nil
}

// FileDevice simulates a platform recorder that writes its capture to a
// file: Stop reads the file back as the artifact. Used by the CLI to play
// voice turns from pre-recorded clips.
type FileDevice struct {
	path string
}

// NewFileDevice creates a device that yields the contents of path on Stop
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{path: path}
}

func (d *FileDevice) RequestPermission(_ context.Context) (bool, error) {
	return true, nil
}

func (d *FileDevice) Start(_ context.Context) error {
	if _, err := os.Stat(d.path); err != nil {
		return fmt.Errorf("audio source unavailable: %w", err)
	}
	return nil
}

func (d *FileDevice) Stop(_ context.Context) (Artifact, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to read capture: %w", err)
	}
	return Artifact{
		Data:        data,
		ContentType: audio.ContentType(data),
	}, nil
}
