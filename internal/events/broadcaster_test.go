package events

import (
	"testing"
	"time"

	"github.com/cloudvault/cloudvault/internal/model"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}

	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}

	// Repeated unsubscribe of the same channel must not panic.
	b.Unsubscribe(ch2)
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	event := model.Progress{
		FileID:  "f1",
		Name:    "report.pdf",
		Percent: 40,
		Status:  model.StatusInProgress,
	}
	b.Publish(event)

	select {
	case received := <-ch:
		if received.Status != model.StatusInProgress {
			t.Errorf("expected status %s, got %s", model.StatusInProgress, received.Status)
		}
		if received.Name != "report.pdf" {
			t.Errorf("expected name report.pdf, got %s", received.Name)
		}
		if received.Percent != 40 {
			t.Errorf("expected percent 40, got %d", received.Percent)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	event := model.Progress{FileID: "f2", Name: "shared.txt", Status: model.StatusDone, Percent: 100}
	b.Publish(event)

	for i, ch := range []chan model.Progress{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Name != "shared.txt" {
				t.Errorf("subscriber %d: expected name shared.txt, got %s", i, received.Name)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out waiting for event", i)
		}
	}
}

func TestBroadcasterSlowConsumerDropped(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Overfill the buffered channel; Publish must never block.
	for i := 0; i < 200; i++ {
		b.Publish(model.Progress{FileID: "f3", Percent: i % 100})
	}

	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			if drained == 0 {
				t.Fatal("expected at least one buffered event")
			}
			if drained > 64 {
				t.Fatalf("expected at most 64 buffered events, drained %d", drained)
			}
			return
		}
	}
}
