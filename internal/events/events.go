package events

import (
	"sync"
	"time"
)

// Type identifies one of the closed set of event variants emitted by the
// runtime.
type Type string

const (
	TypeServerStarted Type = "server_started"
	TypeNewAudioFile  Type = "new_audio_file"
)

// Event is a single notification pushed to the presentation layer.
type Event struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload"`
}

// ServerStarted announces that the HTTP listener is accepting requests.
type ServerStarted struct {
	Port int `json:"port"`
}

// NewAudioFile announces a freshly ingested recording.
type NewAudioFile struct {
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	ReceivedDate time.Time `json:"receivedDate"`
	SampleRate   int       `json:"sampleRate"`
	UID          string    `json:"uid"`
}

// subscriberBuffer bounds how far a subscriber may lag before events are
// dropped for it.
const subscriberBuffer = 16

// Bus is a best-effort, one-directional fan-out from the runtime to any
// attached presentation layers. Delivery is fire-and-forget: with no
// subscriber, or a subscriber that has fallen behind, events are dropped.
// The catalog and the files on disk remain the source of record.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers a listener. The returned cancel function detaches
// it and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++

	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer room.
// It never blocks.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; drop the event for it.
		}
	}
}

// SubscriberCount reports how many listeners are attached.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}
