// Package audio handles WAV container construction and parsing.
// It implements buffered and streaming encoders for PCM16 mono payloads,
// a two-phase file writer that back-patches the header size fields once
// the payload length is known, and header readers used by the catalog
// and playback paths.
package audio
