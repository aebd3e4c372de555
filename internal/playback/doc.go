// Package playback implements the single-slot playback controller.
// It decodes cataloged recordings and plays them through a PortAudio
// output device, enforcing that at most one session is ever playing and
// that starting a new session fully releases the previous one first.
package playback
