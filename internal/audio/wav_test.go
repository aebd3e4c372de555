package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// sineSamples generates a 440Hz sine wave of the given duration.
func sineSamples(sampleRate int, duration float64) []int16 {
	frequency := 440.0
	numSamples := int(float64(sampleRate) * duration)
	samples := make([]int16, numSamples)

	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(sampleRate)
		amplitude := 16383.0 // Half of max int16 to avoid clipping
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*t))
	}

	return samples
}

func TestEncodeWAV(t *testing.T) {
	sampleRate := 8000
	samples := sineSamples(sampleRate, 0.1)

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := HeaderSize + len(samples)*BytesPerSample
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}

	if info.SampleRate != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}

	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}

	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}

	expectedDuration := float64(len(samples)) / float64(sampleRate)
	if math.Abs(info.Duration-expectedDuration) > 0.001 {
		t.Errorf("Expected duration %.3f, got %.3f", expectedDuration, info.Duration)
	}
}

func TestEncodeWAVHeaderFields(t *testing.T) {
	sampleRate := 16000
	samples := []int16{100, -200, 300, -400, 500}

	wavData, err := EncodeWAV(samples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	dataSize := uint32(len(samples) * BytesPerSample)

	if got := binary.LittleEndian.Uint32(wavData[4:8]); got != 36+dataSize {
		t.Errorf("RIFF chunk size: expected %d, got %d", 36+dataSize, got)
	}

	if got := binary.LittleEndian.Uint16(wavData[20:22]); got != 1 {
		t.Errorf("Audio format: expected 1 (PCM), got %d", got)
	}

	if got := binary.LittleEndian.Uint32(wavData[28:32]); got != uint32(sampleRate)*2 {
		t.Errorf("Byte rate: expected %d, got %d", sampleRate*2, got)
	}

	if got := binary.LittleEndian.Uint16(wavData[32:34]); got != 2 {
		t.Errorf("Block align: expected 2, got %d", got)
	}

	if got := binary.LittleEndian.Uint32(wavData[40:44]); got != dataSize {
		t.Errorf("Data chunk size: expected %d, got %d", dataSize, got)
	}
}

func TestDecodeWAV(t *testing.T) {
	originalSamples := []int16{100, -200, 300, -400, 500}
	sampleRate := 8000

	wavData, err := EncodeWAV(originalSamples, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decodedSamples, decodedSampleRate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if decodedSampleRate != sampleRate {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, decodedSampleRate)
	}

	if len(decodedSamples) != len(originalSamples) {
		t.Fatalf("Expected %d samples, got %d", len(originalSamples), len(decodedSamples))
	}

	for i, original := range originalSamples {
		if decodedSamples[i] != original {
			t.Errorf("Sample %d: expected %d, got %d", i, original, decodedSamples[i])
		}
	}
}

func TestEncodePCMRoundTrip(t *testing.T) {
	// Arbitrary byte payload with an even length; the data chunk must
	// carry it back verbatim.
	payload := make([]byte, 2048)
	for i := range payload {
		payload[i] = byte(i * 31)
	}

	wavData, err := EncodePCM(payload, 16000)
	if err != nil {
		t.Fatalf("EncodePCM failed: %v", err)
	}

	if len(wavData) != HeaderSize+len(payload) {
		t.Errorf("Expected %d bytes, got %d", HeaderSize+len(payload), len(wavData))
	}

	if got := binary.LittleEndian.Uint32(wavData[40:44]); got != uint32(len(payload)) {
		t.Errorf("Data chunk size: expected %d, got %d", len(payload), got)
	}

	if !bytes.Equal(wavData[HeaderSize:], payload) {
		t.Error("Data chunk does not match the original payload")
	}
}

func TestEncodeEmpty(t *testing.T) {
	if _, err := EncodeWAV([]int16{}, 8000); err == nil {
		t.Error("Expected error for empty samples")
	}

	if _, err := EncodePCM(nil, 8000); err != ErrEmptyPayload {
		t.Errorf("Expected ErrEmptyPayload, got %v", err)
	}
}

func TestEncodeInvalidSampleRate(t *testing.T) {
	samples := []int16{100, 200, 300}

	if _, err := EncodeWAV(samples, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := EncodeWAV(samples, -1000); err == nil {
		t.Error("Expected error for negative sample rate")
	}
}

func TestValidateWAV(t *testing.T) {
	if err := ValidateWAV([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for too short WAV data")
	}

	invalidWAV := make([]byte, 50)
	copy(invalidWAV[0:4], []byte("FAKE"))
	if err := ValidateWAV(invalidWAV); err == nil {
		t.Error("Expected error for invalid RIFF header")
	}

	valid, err := EncodeWAV([]int16{1, 2, 3}, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if err := ValidateWAV(valid); err != nil {
		t.Errorf("Expected valid WAV, got error: %v", err)
	}
}

func TestDecodeWAVRejectsUnsupported(t *testing.T) {
	valid, err := EncodeWAV([]int16{1, 2, 3, 4}, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func([]byte)
	}{
		{
			name:   "non-PCM format tag",
			mutate: func(b []byte) { binary.LittleEndian.PutUint16(b[20:22], 3) },
		},
		{
			name:   "stereo",
			mutate: func(b []byte) { binary.LittleEndian.PutUint16(b[22:24], 2) },
		},
		{
			name:   "8-bit depth",
			mutate: func(b []byte) { binary.LittleEndian.PutUint16(b[34:36], 8) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), valid...)
			tt.mutate(data)
			if _, _, err := DecodeWAV(data); err == nil {
				t.Error("Expected decode error")
			}
		})
	}
}
