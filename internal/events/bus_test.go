package events

import (
	"testing"
	"time"
)

func TestNilBus(t *testing.T) {
	var b *Bus
	b.Publish(Event{Source: SourcePlanner, Kind: KindTurnStart})
	if got := b.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() on nil bus = %d, want 0", got)
	}
}

func TestPublish_DeliversAndStamps(t *testing.T) {
	b := New()
	ch := b.Subscribe(4)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Source: SourceTools, Kind: KindToolDone, Data: map[string]any{"tool": "create_tasks"}})

	select {
	case got := <-ch:
		if got.Kind != KindToolDone || got.Data["tool"] != "create_tasks" {
			t.Errorf("got %+v", got)
		}
		if got.Timestamp.IsZero() {
			t.Error("Timestamp not stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublish_DropsWhenFull(t *testing.T) {
	b := New()
	ch := b.Subscribe(1)
	defer b.Unsubscribe(ch)

	b.Publish(Event{Kind: KindRemoteCall})
	b.Publish(Event{Kind: KindRemoteResponse})

	if got := <-ch; got.Kind != KindRemoteCall {
		t.Errorf("first event = %q, want %q", got.Kind, KindRemoteCall)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected second event %+v", e)
	default:
	}
}

func TestUnsubscribe_ClosesAndIsIdempotent(t *testing.T) {
	b := New()
	ch := b.Subscribe(1)
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", n)
	}
}
