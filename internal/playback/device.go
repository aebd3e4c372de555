package playback

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Initialize readies the PortAudio host API. Call once at process start
// when playback is enabled, paired with Terminate at shutdown.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return nil
}

// Terminate releases the PortAudio host API.
func Terminate() error {
	return portaudio.Terminate()
}

// PortAudioFactory returns a DeviceFactory producing output streams on
// the default device with the given frames-per-buffer.
func PortAudioFactory(framesPerBuffer int) DeviceFactory {
	return func() (Device, error) {
		return &outputDevice{frames: framesPerBuffer}, nil
	}
}

// outputDevice plays mono PCM16 through the default PortAudio output
// stream.
type outputDevice struct {
	frames int
	buf    []int16
	stream *portaudio.Stream
}

func (d *outputDevice) Start(sampleRate int) error {
	d.buf = make([]int16, d.frames)

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), d.frames, d.buf)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	d.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		d.stream = nil
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	return nil
}

func (d *outputDevice) Write(samples []int16) error {
	n := copy(d.buf, samples)
	// The stream always consumes a full buffer; pad a short final chunk
	// with silence.
	for i := n; i < len(d.buf); i++ {
		d.buf[i] = 0
	}

	return d.stream.Write()
}

func (d *outputDevice) Stop() error {
	if d.stream == nil {
		return nil
	}
	return d.stream.Stop()
}

func (d *outputDevice) Close() error {
	if d.stream == nil {
		return nil
	}

	err := d.stream.Close()
	d.stream = nil
	return err
}
