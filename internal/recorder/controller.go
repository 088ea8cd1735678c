package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/careloop/voicechat/internal/observability"
	"github.com/rs/zerolog"
)

// State represents the recording lifecycle state
type State int

const (
	StateIdle State = iota
	StateAwaitingPermission
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPermission:
		return "awaiting_permission"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// StopReason identifies which path released the microphone
type StopReason string

const (
	StopManual   StopReason = "manual"
	StopDeadline StopReason = "deadline"
	StopTeardown StopReason = "teardown"
)

var (
	// ErrPermissionDenied is returned when microphone access is refused
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceFailure is returned when the hardware recorder fails
	ErrDeviceFailure = errors.New("recorder device failure")

	// ErrAlreadyActive is returned when Start is called outside Idle.
	// The new recording is rejected, never queued.
	ErrAlreadyActive = errors.New("a recording is already active")

	// ErrNotRecording is returned when Stop is called outside Recording
	ErrNotRecording = errors.New("no recording in progress")
)

// Notifier surfaces user-facing notices (permission prompts, failures)
type Notifier func(message string)

// CaptureHandler receives the artifact when the deadline timer force-stops
// a recording
type CaptureHandler func(artifact Artifact, reason StopReason)

// Controller is the recording state machine. It owns the exclusive
// microphone acquisition and guarantees the device is released on every
// exit path, including teardown.
//
// Invariant: StateRecording implies exactly one armed deadline timer.
type Controller struct {
	device   Device
	clock    Clock
	deadline time.Duration
	notify   Notifier
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	timer     Timer
	startedAt time.Time
	onCapture CaptureHandler
}

// NewController creates a recording controller around a device.
// deadline is the fixed wall-clock auto-stop window, measured from
// recording start, not from last voice activity.
func NewController(device Device, clock Clock, deadline time.Duration, notify Notifier) *Controller {
	if clock == nil {
		clock = SystemClock{}
	}
	if notify == nil {
		notify = func(string) {}
	}
	return &Controller{
		device:   device,
		clock:    clock,
		deadline: deadline,
		notify:   notify,
		logger:   observability.GetLogger().With().Str("component", "recorder").Logger(),
		state:    StateIdle,
	}
}

// SetCaptureHandler registers the sink for deadline-fired captures
func (c *Controller) SetCaptureHandler(fn CaptureHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCapture = fn
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start requests permission, acquires the microphone, and arms the
// auto-stop deadline. Calling Start outside Idle is rejected.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		c.logger.Debug().Str("state", c.state.String()).Msg("Start rejected, controller not idle")
		return ErrAlreadyActive
	}
	c.state = StateAwaitingPermission
	c.mu.Unlock()

	granted, err := c.device.RequestPermission(ctx)
	if err != nil || !granted {
		c.toIdle()
		c.notify("Microphone access is required to record a voice message.")
		if err != nil {
			observability.RecordError("permission_error", "recorder")
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		c.logger.Warn().Msg("Microphone permission denied")
		observability.RecordError("permission_denied", "recorder")
		return ErrPermissionDenied
	}

	if err := c.device.Start(ctx); err != nil {
		c.toIdle()
		c.notify("Could not start recording. Please try again.")
		c.logger.Error().Err(err).Msg("Recorder device failed to start")
		observability.RecordError("device_start_error", "recorder")
		return fmt.Errorf("%w: %v", ErrDeviceFailure, err)
	}

	c.mu.Lock()
	c.state = StateRecording
	c.startedAt = c.clock.Now()
	c.timer = c.clock.AfterFunc(c.deadline, c.autoStop)
	c.mu.Unlock()

	observability.RecordRecordingStart()
	c.logger.Info().Dur("deadline", c.deadline).Msg("Recording started")
	return nil
}

// Stop manually ends the recording and returns the captured artifact.
// Calling Stop outside Recording is a no-op; in particular, the loser of
// the manual-stop/deadline race lands here.
func (c *Controller) Stop(ctx context.Context) (Artifact, error) {
	return c.stop(ctx, StopManual)
}

// Close tears the controller down, releasing the microphone if a recording
// is still live. Safe to call in any state.
func (c *Controller) Close() error {
	_, err := c.stop(context.Background(), StopTeardown)
	if errors.Is(err, ErrNotRecording) {
		return nil
	}
	return err
}

// autoStop fires when the wall-clock deadline elapses. If a manual stop won
// the race the state has already left Recording and this is a no-op.
func (c *Controller) autoStop() {
	artifact, err := c.stop(context.Background(), StopDeadline)
	if err != nil {
		if !errors.Is(err, ErrNotRecording) {
			c.logger.Error().Err(err).Msg("Auto-stop failed")
		}
		return
	}

	c.logger.Info().Msg("Recording force-stopped at deadline")
	c.notify("Recording stopped automatically after reaching the time limit.")

	c.mu.Lock()
	handler := c.onCapture
	c.mu.Unlock()
	if handler != nil {
		handler(artifact, StopDeadline)
	}
}

func (c *Controller) stop(ctx context.Context, reason StopReason) (Artifact, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return Artifact{}, ErrNotRecording
	}
	c.state = StateStopping

	// Cancel the deadline timer so it can never fire after the device has
	// been released. Harmless if this stop IS the timer firing.
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	elapsed := c.clock.Now().Sub(c.startedAt)
	c.mu.Unlock()

	artifact, err := c.device.Stop(ctx)

	c.toIdle()
	observability.RecordRecordingStop(string(reason), elapsed.Seconds())

	if err != nil {
		c.logger.Error().Err(err).Str("reason", string(reason)).Msg("Recorder device failed to stop")
		observability.RecordError("device_stop_error", "recorder")
		return Artifact{}, fmt.Errorf("%w: %v", ErrDeviceFailure, err)
	}

	c.logger.Info().
		Str("reason", string(reason)).
		Dur("elapsed", elapsed).
		Int("bytes", len(artifact.Data)).
		Msg("Recording stopped")
	return artifact, nil
}

func (c *Controller) toIdle() {
	c.mu.Lock()
	c.state = StateIdle
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}
