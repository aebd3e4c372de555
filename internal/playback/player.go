package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/praneethkukunuru/omi-all/internal/audio"
	"github.com/praneethkukunuru/omi-all/internal/catalog"
)

// State describes the controller's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	default:
		return "idle"
	}
}

// ErrDisabled is returned when playback is switched off in the
// configuration.
var ErrDisabled = errors.New("playback is disabled")

// Device is an audio output sink. One device instance backs one
// playback session.
type Device interface {
	// Start opens the sink for the given sample rate.
	Start(sampleRate int) error
	// Write pushes up to one buffer of mono PCM16 samples. It blocks
	// until the sink has consumed them.
	Write(samples []int16) error
	// Stop drains and halts the sink.
	Stop() error
	// Close releases the sink's resources.
	Close() error
}

// DeviceFactory opens a fresh output device for a session.
type DeviceFactory func() (Device, error)

// DisabledFactory is the factory wired in when the configuration turns
// playback off.
func DisabledFactory() (Device, error) {
	return nil, ErrDisabled
}

// Status is a point-in-time view of the controller for progress
// reporting.
type Status struct {
	State     string  `json:"state"`
	SessionID string  `json:"session_id,omitempty"`
	Filename  string  `json:"filename,omitempty"`
	Position  float64 `json:"position_seconds"`
	Duration  float64 `json:"duration_seconds"`
}

// session is one playback run. It is created already-running and owns
// its device until it terminates.
type session struct {
	id         string
	filename   string
	sampleRate int
	total      int

	played atomic.Int64 // samples pushed to the device

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (s *session) interrupt() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Controller is the single-slot playback state machine. At any instant
// at most one session is playing; starting a new one synchronously
// releases the previous session first.
type Controller struct {
	logger    *slog.Logger
	newDevice DeviceFactory
	frames    int

	mu      sync.Mutex
	current *session
}

// NewController creates an idle controller. frames is the number of
// samples handed to the device per write.
func NewController(logger *slog.Logger, newDevice DeviceFactory, frames int) *Controller {
	return &Controller{
		logger:    logger,
		newDevice: newDevice,
		frames:    frames,
	}
}

// Play starts playback of the given recording, first stopping any
// session that is still running. It returns the new session's ID once
// audio is flowing. Decode and device failures leave the controller
// idle and are reported to the caller; they never terminate the
// process.
func (c *Controller) Play(rec catalog.Recording) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Stop-then-start handshake: the previous session must be fully
	// released before the new one begins.
	c.releaseLocked()

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rec.Filename, err)
	}

	samples, sampleRate, err := audio.DecodeWAV(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", rec.Filename, err)
	}

	dev, err := c.newDevice()
	if err != nil {
		return "", fmt.Errorf("failed to open output device: %w", err)
	}

	if err := dev.Start(sampleRate); err != nil {
		dev.Close()
		return "", fmt.Errorf("failed to start output device: %w", err)
	}

	s := &session{
		id:         uuid.NewString(),
		filename:   rec.Filename,
		sampleRate: sampleRate,
		total:      len(samples),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.current = s

	c.logger.Info("Playback started",
		slog.String("session_id", s.id),
		slog.String("filename", s.filename),
		slog.Int("sample_rate", sampleRate),
		slog.Float64("duration_seconds", float64(s.total)/float64(sampleRate)),
	)

	go c.run(s, dev, samples)

	return s.id, nil
}

// run feeds the decoded samples to the device until completion or an
// interrupt, then releases the device. It closes s.done last so the
// controller can wait on full release.
func (c *Controller) run(s *session, dev Device, samples []int16) {
	defer close(s.done)

	interrupted := false

	for off := 0; off < len(samples); off += c.frames {
		select {
		case <-s.stop:
			interrupted = true
		default:
		}
		if interrupted {
			break
		}

		end := off + c.frames
		if end > len(samples) {
			end = len(samples)
		}

		if err := dev.Write(samples[off:end]); err != nil {
			c.logger.Error("Playback device write failed",
				slog.String("session_id", s.id),
				slog.String("error", err.Error()),
			)
			break
		}

		s.played.Store(int64(end))
	}

	if err := dev.Stop(); err != nil {
		c.logger.Warn("Failed to stop output device", slog.String("error", err.Error()))
	}
	if err := dev.Close(); err != nil {
		c.logger.Warn("Failed to close output device", slog.String("error", err.Error()))
	}

	c.logger.Info("Playback finished",
		slog.String("session_id", s.id),
		slog.String("filename", s.filename),
		slog.Bool("interrupted", interrupted),
	)
}

// Stop halts the current session, if any, and returns once its
// resources are released.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()
}

// releaseLocked interrupts the current session and blocks until it has
// fully terminated. Callers must hold c.mu.
func (c *Controller) releaseLocked() {
	if c.current == nil {
		return
	}

	c.current.interrupt()
	<-c.current.done
	c.current = nil
}

// State reports the controller's current state. A session that has run
// to natural completion counts as idle.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionRunningLocked() {
		return StatePlaying
	}
	return StateIdle
}

// Status reports state, current recording, and progress.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sessionRunningLocked() {
		return Status{State: StateIdle.String()}
	}

	s := c.current
	return Status{
		State:     StatePlaying.String(),
		SessionID: s.id,
		Filename:  s.filename,
		Position:  float64(s.played.Load()) / float64(s.sampleRate),
		Duration:  float64(s.total) / float64(s.sampleRate),
	}
}

func (c *Controller) sessionRunningLocked() bool {
	if c.current == nil {
		return false
	}

	select {
	case <-c.current.done:
		// Natural completion; clear the slot lazily.
		c.current = nil
		return false
	default:
		return true
	}
}
