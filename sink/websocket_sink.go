package sink

import (
	"context"
	"sync"

	"linkup/domain"
	"linkup/domain/event"
	"linkup/errors"
)

// WebSocketSink is the outbound queue of one realtime connection.
// Producers call Consume; a single writer goroutine drains Events, so every
// push to a connection is written in the order it was accepted.
type WebSocketSink struct {
	connectionID domain.ConnectionID
	events       chan event.DomainEvent
	done         chan struct{}
	once         sync.Once
}

func NewWebSocketSink(connectionID domain.ConnectionID, bufferSize int) *WebSocketSink {
	return &WebSocketSink{
		connectionID: connectionID,
		events:       make(chan event.DomainEvent, bufferSize),
		done:         make(chan struct{}),
	}
}

// Consume queues an event. It blocks until there is room in the buffer,
// the context expires or the sink is closed.
func (s *WebSocketSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errors.ErrSinkClosed
	}
}

func (s *WebSocketSink) Events() <-chan event.DomainEvent { return s.events }

func (s *WebSocketSink) Done() <-chan struct{} { return s.done }

func (s *WebSocketSink) ConnectionID() domain.ConnectionID { return s.connectionID }

// Close is idempotent. Queued events are abandoned.
func (s *WebSocketSink) Close() {
	s.once.Do(func() { close(s.done) })
}
