package broker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryBusDeliversInPublishOrder(t *testing.T) {
	b := NewMemoryBus(16)
	defer func() { _ = b.Close() }()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	if err := b.Subscribe("t", func(data []byte) {
		mu.Lock()
		got = append(got, string(data))
		if len(got) == 10 {
			close(done)
		}
		mu.Unlock()
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := b.Publish(context.Background(), "t", []byte(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("delivery incomplete")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, m := range got {
		if want := fmt.Sprintf("m%d", i); m != want {
			t.Fatalf("position %d = %s, want %s", i, m, want)
		}
	}
}

func TestMemoryBusSubjectIsolation(t *testing.T) {
	b := NewMemoryBus(16)
	defer func() { _ = b.Close() }()

	hit := make(chan string, 2)
	_ = b.Subscribe("a", func(data []byte) { hit <- "a:" + string(data) })
	_ = b.Subscribe("b", func(data []byte) { hit <- "b:" + string(data) })

	_ = b.Publish(context.Background(), "a", []byte("x"))

	select {
	case got := <-hit:
		if got != "a:x" {
			t.Fatalf("got %s, want a:x", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("no delivery")
	}
	select {
	case got := <-hit:
		t.Fatalf("subject b must stay silent, got %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDomainEventRoundTrip(t *testing.T) {
	ev := &DomainEvent{
		Kind:           "message-created",
		ConversationID: "conv1",
		Targets:        []string{"u1"},
		Payload:        []byte(`{"id":"m1"}`),
	}
	raw, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeDomainEvent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Kind != ev.Kind || back.ConversationID != ev.ConversationID ||
		len(back.Targets) != 1 || back.Targets[0] != "u1" {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}
