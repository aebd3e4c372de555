package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// ErrEmptyPayload is returned when an encode is attempted with no audio
// data. Ingestion maps it to a client error.
var ErrEmptyPayload = errors.New("audio payload is empty")

// maxDataSize is the largest payload a 32-bit RIFF size field can
// describe once the 36 header bytes after the chunk size are accounted
// for.
const maxDataSize = 0xFFFFFFFF - 36

// FileWriter streams a PCM16 payload of unknown length into a WAV file.
// It writes a placeholder header up front, accepts payload bytes through
// the io.Writer interface, and patches the RIFF and data chunk size
// fields on Close so the final header is byte-exact.
//
// A writer that fails mid-stream, is aborted, or closes with no payload
// removes its file; a partially written file is never left on disk.
type FileWriter struct {
	f          *os.File
	path       string
	sampleRate int
	written    int64
	done       bool
}

// NewFileWriter creates the target file and writes a placeholder header
// with zeroed size fields. The file must not already exist.
func NewFileWriter(path string, sampleRate int) (*FileWriter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := &FileWriter{
		f:          f,
		path:       path,
		sampleRate: sampleRate,
	}

	header := newHeader(sampleRate, 0)
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		w.Abort()
		return nil, fmt.Errorf("failed to write placeholder header: %w", err)
	}

	return w, nil
}

// Write appends payload bytes after the header.
func (w *FileWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("write to closed WAV writer for %s", w.path)
	}

	if w.written+int64(len(p)) > maxDataSize {
		return 0, fmt.Errorf("payload exceeds maximum WAV data size of %d bytes", maxDataSize)
	}

	n, err := w.f.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write audio data to %s: %w", w.path, err)
	}

	return n, nil
}

// BytesWritten reports the payload length streamed so far, excluding the
// header.
func (w *FileWriter) BytesWritten() int64 {
	return w.written
}

// Close patches the size fields, syncs the file to disk, and closes it.
// The file only becomes a valid recording once Close returns nil; any
// failure path removes it.
func (w *FileWriter) Close() error {
	if w.done {
		return nil
	}

	if w.written == 0 {
		w.Abort()
		return ErrEmptyPayload
	}

	var sizes [4]byte

	// RIFF chunk size at offset 4.
	binary.LittleEndian.PutUint32(sizes[:], uint32(36+w.written))
	if _, err := w.f.WriteAt(sizes[:], 4); err != nil {
		w.Abort()
		return fmt.Errorf("failed to patch RIFF size in %s: %w", w.path, err)
	}

	// data chunk size at offset 40.
	binary.LittleEndian.PutUint32(sizes[:], uint32(w.written))
	if _, err := w.f.WriteAt(sizes[:], 40); err != nil {
		w.Abort()
		return fmt.Errorf("failed to patch data size in %s: %w", w.path, err)
	}

	if err := w.f.Sync(); err != nil {
		w.Abort()
		return fmt.Errorf("failed to sync %s: %w", w.path, err)
	}

	w.done = true
	if err := w.f.Close(); err != nil {
		os.Remove(w.path)
		return fmt.Errorf("failed to close %s: %w", w.path, err)
	}

	return nil
}

// Abort discards the file. Safe to call after a failed Write or Close.
func (w *FileWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.f.Close()
	os.Remove(w.path)
}
