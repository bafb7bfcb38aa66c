package events

import (
	"testing"
	"time"
)

func TestSubscriptionFiltersByName(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4)
	defer sub.Close()
	sub.Add("instance.started")

	events := sub.Events()

	bus.Publish("instance.started", nil, "abc")
	bus.Publish("instance.stopped", nil, "def")
	bus.Publish("instance.started", nil, "ghi")

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case ev := <-events:
			got = append(got, ev.Data.(string))
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
	if len(got) != 2 || got[0] != "abc" || got[1] != "ghi" {
		t.Fatalf("got %v", got)
	}
}

func TestRemoveStopsDelivery(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4)
	defer sub.Close()
	sub.Add("x")
	events := sub.Events()

	bus.Publish("x", nil, 1)
	<-events

	sub.Remove("x")
	bus.Publish("x", nil, 2)
	bus.Publish("y", nil, 3) // unblock the background goroutine's loop

	select {
	case ev := <-events:
		t.Fatalf("unexpected delivery after remove: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
