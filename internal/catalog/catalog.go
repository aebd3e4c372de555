package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/praneethkukunuru/omi-all/internal/audio"
)

// DefaultUID is recorded when a device pushes audio without identifying
// itself, and for files found on disk whose sender is unknown.
const DefaultUID = "unknown_user"

// Extension is the container extension recognized by the scan.
const Extension = ".wav"

// Recording is a completed, immutable audio artifact. It exists in the
// catalog only once its file is fully committed to disk.
type Recording struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	ReceivedAt time.Time `json:"receivedDate"`
	SampleRate int       `json:"sample_rate"`
	BitDepth   int       `json:"bit_depth"`
	Channels   int       `json:"channels"`
	UID        string    `json:"uid"`
	SizeBytes  int64     `json:"size_bytes"`
	Duration   float64   `json:"duration_seconds"`
}

// Catalog is the in-memory index of completed recordings, newest first.
// It is seeded by a directory scan at startup and mutated only through
// Append as ingestion requests commit.
type Catalog struct {
	dir    string
	prefix string
	logger *slog.Logger

	mu         sync.RWMutex
	recordings []Recording

	// Filename allocation state. Guarded by mu so concurrent ingestion
	// requests inside the same millisecond still get distinct names.
	lastStamp int64
	lastSeq   int
}

// New creates a catalog over the given storage directory. Call Scan
// before serving requests.
func New(dir, prefix string, logger *slog.Logger) *Catalog {
	return &Catalog{
		dir:    dir,
		prefix: prefix,
		logger: logger,
	}
}

// Dir returns the storage directory the catalog indexes.
func (c *Catalog) Dir() string {
	return c.dir
}

// Scan enumerates the storage directory and rebuilds the index from the
// recordings present on disk, newest first. Files that are not valid
// containers are skipped. The directory is created if missing; an
// "already exists" race with a concurrent first-caller is not an error.
func (c *Catalog) Scan() error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", c.dir, err)
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read storage directory %s: %w", c.dir, err)
	}

	recordings := make([]Recording, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())

		info, err := audio.ReadInfo(path)
		if err != nil {
			c.logger.Warn("Skipping unreadable container file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			c.logger.Warn("Skipping unstatable file",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		receivedAt, ok := c.timestampFromFilename(entry.Name())
		if !ok {
			receivedAt = fi.ModTime()
		}

		recordings = append(recordings, Recording{
			Filename:   entry.Name(),
			Path:       path,
			ReceivedAt: receivedAt,
			SampleRate: int(info.SampleRate),
			BitDepth:   int(info.BitsPerSample),
			Channels:   int(info.Channels),
			UID:        DefaultUID,
			SizeBytes:  fi.Size(),
			Duration:   info.Duration,
		})
	}

	sort.Slice(recordings, func(i, j int) bool {
		if !recordings[i].ReceivedAt.Equal(recordings[j].ReceivedAt) {
			return recordings[i].ReceivedAt.After(recordings[j].ReceivedAt)
		}
		return recordings[i].Filename > recordings[j].Filename
	})

	c.mu.Lock()
	c.recordings = recordings
	c.mu.Unlock()

	return nil
}

// Append adds a newly committed recording to the front of the order.
// Safe for concurrent callers; existing entries are never reordered or
// dropped.
func (c *Catalog) Append(rec Recording) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordings = append([]Recording{rec}, c.recordings...)
}

// List returns a snapshot of the current order, newest first.
func (c *Catalog) List() []Recording {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Recording, len(c.recordings))
	copy(out, c.recordings)
	return out
}

// Get looks up a recording by filename.
func (c *Catalog) Get(filename string) (Recording, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, rec := range c.recordings {
		if rec.Filename == filename {
			return rec, true
		}
	}

	return Recording{}, false
}

// Len reports the number of cataloged recordings.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.recordings)
}

// NextFilename allocates a unique filename of the form
// <prefix>_<millisecond-epoch>[_<seq>].wav. Requests landing within the
// same millisecond, and clocks that step backwards, get a sequence
// suffix instead of a duplicate name.
func (c *Catalog) NextFilename(now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := now.UnixMilli()
	if ms <= c.lastStamp {
		c.lastSeq++
		ms = c.lastStamp
	} else {
		c.lastStamp = ms
		c.lastSeq = 0
	}

	if c.lastSeq == 0 {
		return fmt.Sprintf("%s_%d%s", c.prefix, ms, Extension)
	}
	return fmt.Sprintf("%s_%d_%d%s", c.prefix, ms, c.lastSeq, Extension)
}

// timestampFromFilename recovers the received time from a filename
// produced by NextFilename.
func (c *Catalog) timestampFromFilename(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, Extension)

	rest, ok := strings.CutPrefix(base, c.prefix+"_")
	if !ok {
		return time.Time{}, false
	}

	// Drop a collision suffix if present.
	if i := strings.IndexByte(rest, '_'); i >= 0 {
		rest = rest[:i]
	}

	ms, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}

	return time.UnixMilli(ms), true
}
