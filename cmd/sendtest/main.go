// Command sendtest exercises the audio webhook end to end. It generates
// a sine-wave PCM16 payload, posts it the way a capture device would,
// and reports the server's answer.
package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
)

const toneFrequency = 440.0

func main() {
	endpoint := flag.String("url", "http://localhost:8080/audio", "Webhook URL to post audio to")
	duration := flag.Float64("duration", 3.0, "Length of the generated tone in seconds")
	sampleRate := flag.Int("rate", 16000, "Sample rate of the generated tone")
	uid := flag.String("uid", "test_user_123", "User identifier sent with the payload")
	flag.Parse()

	color.Cyan("Omi Audio Receiver - Webhook Test")
	fmt.Println()

	payload := sineWave(*duration, *sampleRate)
	fmt.Printf("Sending %d bytes of PCM16 audio to %s\n", len(payload), *endpoint)

	if err := post(*endpoint, payload, *sampleRate, *uid); err != nil {
		color.Red("Webhook test failed: %v", err)
		os.Exit(1)
	}

	color.Green("Webhook is working correctly")
}

// sineWave produces a mono PCM16 tone at 30 percent full scale.
func sineWave(seconds float64, sampleRate int) []byte {
	samples := int(seconds * float64(sampleRate))
	payload := make([]byte, samples*2)

	for i := 0; i < samples; i++ {
		angle := 2 * math.Pi * float64(i) * toneFrequency / float64(sampleRate)
		sample := int16(32767 * 0.3 * math.Sin(angle))
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(sample))
	}

	return payload
}

func post(endpoint string, payload []byte, sampleRate int, uid string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("uid", uid)
	u.RawQuery = q.Encode()

	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Post(u.String(), "application/octet-stream", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("Response status: %s\n", resp.Status)
	fmt.Printf("Response body: %s\n", bytes.TrimSpace(body))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server answered %s", resp.Status)
	}

	return nil
}
