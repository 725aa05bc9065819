package broker

import (
	"context"
	"encoding/json"
	"sync"

	"PRelay/tools/safe"
)

// SubjectDomain carries every domain mutation from the REST surface to
// the realtime gateway.
const SubjectDomain = "im.domain"

// DomainEvent is the envelope REST handlers publish after persisting a
// mutation. Kind matches the outbound frame kind verbatim. Targets set
// means direct per-user delivery; empty Targets means room fan-out on
// ConversationID.
type DomainEvent struct {
	Kind           string          `json:"kind"`
	ConversationID string          `json:"conversationId,omitempty"`
	Targets        []string        `json:"targets,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func (e *DomainEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeDomainEvent(data []byte) (*DomainEvent, error) {
	var ev DomainEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Bus is the transport between services. Handlers for one subject are
// invoked serially in publish order; that is what keeps per-room FIFO
// intact downstream.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, h func(data []byte)) error
	Close() error
}

// ===== in-process bus =====

// MemoryBus connects publisher and subscribers inside one process. Used
// in tests and in single-binary deployments with no external broker.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]func([]byte)
	jobs     chan memoryJob
	stopOnce sync.Once
	stop     chan struct{}
}

type memoryJob struct {
	subject string
	data    []byte
}

func NewMemoryBus(queue int) *MemoryBus {
	if queue <= 0 {
		queue = 1024
	}
	b := &MemoryBus{
		handlers: make(map[string][]func([]byte)),
		jobs:     make(chan memoryJob, queue),
		stop:     make(chan struct{}),
	}
	safe.Go("memorybus", b.loop)
	return b
}

// single dispatcher goroutine keeps delivery in publish order
func (b *MemoryBus) loop() {
	for {
		select {
		case <-b.stop:
			return
		case job := <-b.jobs:
			b.mu.RLock()
			hs := b.handlers[job.subject]
			b.mu.RUnlock()
			for _, h := range hs {
				h(job.data)
			}
		}
	}
}

func (b *MemoryBus) Publish(_ context.Context, subject string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case b.jobs <- memoryJob{subject: subject, data: cp}:
		return nil
	case <-b.stop:
		return context.Canceled
	}
}

func (b *MemoryBus) Subscribe(subject string, h func(data []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = append(b.handlers[subject], h)
	return nil
}

func (b *MemoryBus) Close() error {
	b.stopOnce.Do(func() { close(b.stop) })
	return nil
}
