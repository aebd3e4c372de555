package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	ev := Event{
		Type: TypeNewAudioFile,
		Payload: NewAudioFile{
			Filename:   "recording_1700000000000.wav",
			SampleRate: 16000,
			UID:        "u1",
		},
	}
	bus.Publish(ev)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Type != TypeNewAudioFile {
				t.Errorf("Subscriber %d: expected type %q, got %q", i, TypeNewAudioFile, got.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("Subscriber %d did not receive the event", i)
		}
	}
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	bus := NewBus()

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: TypeServerStarted, Payload: ServerStarted{Port: 8080}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe()
	defer cancel()

	// Overfill the subscriber buffer; the surplus must be dropped, not
	// block the publisher.
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish(Event{Type: TypeServerStarted, Payload: ServerStarted{Port: i}})
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("Expected %d buffered events, got %d", subscriberBuffer, got)
	}
}

func TestCancelDetachesSubscriber(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe()
	if bus.SubscriberCount() != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", bus.SubscriberCount())
	}

	cancel()
	if bus.SubscriberCount() != 0 {
		t.Errorf("Expected 0 subscribers after cancel, got %d", bus.SubscriberCount())
	}

	// Channel closes so range loops terminate.
	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed after cancel")
	}

	// Second cancel is a no-op.
	cancel()
}
