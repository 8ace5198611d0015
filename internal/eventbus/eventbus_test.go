package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Publish("hello")
	select {
	case ev := <-sub:
		if ev != "hello" {
			t.Fatalf("unexpected event %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatalf("channel should be closed")
	}
	b.Publish("after") // must not panic
}

func TestCloseStopsDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatalf("channel should be closed")
	}
	b.Publish("late")
	if ch := b.Subscribe(); ch == nil {
		t.Fatalf("subscribe after close should return a closed channel")
	}
	b.Close() // second close is a no-op
}

func TestNonBlockingPublish(t *testing.T) {
	b := New()
	_ = b.Subscribe() // never drained
	for i := 0; i < 100; i++ {
		b.Publish(i) // must not block once the buffer is full
	}
}
