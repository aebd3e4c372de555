package playback

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/praneethkukunuru/omi-all/internal/audio"
	"github.com/praneethkukunuru/omi-all/internal/catalog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeDevice records lifecycle calls and throttles writes so tests can
// catch a session mid-flight. Shared counters track how many devices
// are started-but-unclosed at once.
type fakeDevice struct {
	active    *atomic.Int32
	maxActive *atomic.Int32

	writeDelay time.Duration

	mu         sync.Mutex
	sampleRate int
	written    int
	started    bool
	stopped    bool
	closed     bool
}

func (d *fakeDevice) Start(sampleRate int) error {
	cur := d.active.Add(1)
	for {
		max := d.maxActive.Load()
		if cur <= max || d.maxActive.CompareAndSwap(max, cur) {
			break
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	d.sampleRate = sampleRate
	return nil
}

func (d *fakeDevice) Write(samples []int16) error {
	if d.writeDelay > 0 {
		time.Sleep(d.writeDelay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.written += len(samples)
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *fakeDevice) Close() error {
	d.active.Add(-1)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) snapshot() (started, stopped, closed bool, written int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started, d.stopped, d.closed, d.written
}

// deviceRig hands out fake devices from a shared overlap counter and
// keeps them for inspection.
type deviceRig struct {
	active    atomic.Int32
	maxActive atomic.Int32

	writeDelay time.Duration

	mu      sync.Mutex
	devices []*fakeDevice
}

func (r *deviceRig) factory() (Device, error) {
	d := &fakeDevice{
		active:     &r.active,
		maxActive:  &r.maxActive,
		writeDelay: r.writeDelay,
	}

	r.mu.Lock()
	r.devices = append(r.devices, d)
	r.mu.Unlock()

	return d, nil
}

func (r *deviceRig) device(i int) *fakeDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[i]
}

// makeRecording writes a playable WAV to disk and returns its catalog
// entry.
func makeRecording(t *testing.T, dir string, numSamples, sampleRate int) catalog.Recording {
	t.Helper()

	samples := make([]int16, numSamples)
	for i := range samples {
		samples[i] = int16(i)
	}

	data, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	name := "recording_1700000000000.wav"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	return catalog.Recording{
		Filename:   name,
		Path:       path,
		SampleRate: sampleRate,
		Duration:   float64(numSamples) / float64(sampleRate),
	}
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == StateIdle {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Controller did not return to idle")
}

func TestPlayRunsToCompletion(t *testing.T) {
	rig := &deviceRig{}
	c := NewController(testLogger(), rig.factory, 256)
	rec := makeRecording(t, t.TempDir(), 1024, 16000)

	id, err := c.Play(rec)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if id == "" {
		t.Error("Expected a session ID")
	}

	waitIdle(t, c)

	started, stopped, closed, written := rig.device(0).snapshot()
	if !started || !stopped || !closed {
		t.Errorf("Expected device start/stop/close, got %v/%v/%v", started, stopped, closed)
	}
	if written != 1024 {
		t.Errorf("Expected 1024 samples written, got %d", written)
	}
}

func TestPlayStopsCurrentSessionFirst(t *testing.T) {
	rig := &deviceRig{writeDelay: 2 * time.Millisecond}
	c := NewController(testLogger(), rig.factory, 64)
	dir := t.TempDir()
	rec := makeRecording(t, dir, 16000, 16000) // 1s of audio, slow device

	idA, err := c.Play(rec)
	if err != nil {
		t.Fatalf("Play A failed: %v", err)
	}

	if c.State() != StatePlaying {
		t.Fatal("Expected A to be playing")
	}

	idB, err := c.Play(rec)
	if err != nil {
		t.Fatalf("Play B failed: %v", err)
	}
	if idA == idB {
		t.Error("Expected distinct session IDs")
	}

	// A must be fully released before B's device started.
	_, _, closedA, _ := rig.device(0).snapshot()
	if !closedA {
		t.Error("Expected A's device to be closed before B starts")
	}
	startedB, _, _, _ := rig.device(1).snapshot()
	if !startedB {
		t.Error("Expected B's device to be started")
	}

	c.Stop()
	waitIdle(t, c)

	// At no instant were two devices active.
	if max := rig.maxActive.Load(); max > 1 {
		t.Errorf("Observed %d simultaneously active devices", max)
	}
}

func TestStopReleasesSession(t *testing.T) {
	rig := &deviceRig{writeDelay: 2 * time.Millisecond}
	c := NewController(testLogger(), rig.factory, 64)
	rec := makeRecording(t, t.TempDir(), 16000, 16000)

	if _, err := c.Play(rec); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	c.Stop()

	if c.State() != StateIdle {
		t.Error("Expected idle state after stop")
	}

	if _, _, closed, _ := rig.device(0).snapshot(); !closed {
		t.Error("Expected device to be closed after stop")
	}

	// Stop while idle is a no-op.
	c.Stop()
}

func TestPlayCorruptFileReportsErrorAndStaysIdle(t *testing.T) {
	rig := &deviceRig{}
	c := NewController(testLogger(), rig.factory, 256)

	dir := t.TempDir()
	path := filepath.Join(dir, "recording_1700000000000.wav")
	if err := os.WriteFile(path, []byte("definitely not audio"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := c.Play(catalog.Recording{Filename: filepath.Base(path), Path: path})
	if err == nil {
		t.Fatal("Expected playback error for corrupt file")
	}

	if c.State() != StateIdle {
		t.Error("Expected controller to remain idle after failure")
	}
}

func TestPlayMissingFileReportsError(t *testing.T) {
	rig := &deviceRig{}
	c := NewController(testLogger(), rig.factory, 256)

	_, err := c.Play(catalog.Recording{Filename: "gone.wav", Path: filepath.Join(t.TempDir(), "gone.wav")})
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if c.State() != StateIdle {
		t.Error("Expected idle state")
	}
}

func TestDisabledFactory(t *testing.T) {
	c := NewController(testLogger(), DisabledFactory, 256)
	rec := makeRecording(t, t.TempDir(), 64, 16000)

	if _, err := c.Play(rec); err == nil {
		t.Fatal("Expected error from disabled playback")
	}
	if c.State() != StateIdle {
		t.Error("Expected idle state")
	}
}

func TestStatusReportsProgress(t *testing.T) {
	rig := &deviceRig{writeDelay: 2 * time.Millisecond}
	c := NewController(testLogger(), rig.factory, 64)
	rec := makeRecording(t, t.TempDir(), 16000, 16000)

	id, err := c.Play(rec)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	st := c.Status()
	if st.State != "playing" {
		t.Errorf("Expected playing state, got %s", st.State)
	}
	if st.SessionID != id {
		t.Errorf("Expected session %s, got %s", id, st.SessionID)
	}
	if st.Filename != rec.Filename {
		t.Errorf("Expected filename %s, got %s", rec.Filename, st.Filename)
	}
	if st.Duration != 1.0 {
		t.Errorf("Expected 1.0s duration, got %f", st.Duration)
	}
	if st.Position < 0 || st.Position > st.Duration {
		t.Errorf("Position %f outside [0, %f]", st.Position, st.Duration)
	}

	c.Stop()

	st = c.Status()
	if st.State != "idle" {
		t.Errorf("Expected idle status after stop, got %s", st.State)
	}
	if st.SessionID != "" {
		t.Error("Expected no session ID when idle")
	}
}
