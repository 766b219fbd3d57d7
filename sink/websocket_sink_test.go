package sink

import (
	"context"
	"testing"
	"time"

	"linkup/domain"
	"linkup/domain/event"
	"linkup/errors"

	"github.com/stretchr/testify/require"
)

func TestWebSocketSink_Preserves_Order(t *testing.T) {
	req := require.New(t)
	s := NewWebSocketSink(domain.NewConnectionID(), 4)
	ctx := context.Background()

	first := event.OnlineUsers{UserIDs: []domain.UserID{"a"}}
	second := event.OnlineUsers{UserIDs: []domain.UserID{"a", "b"}}
	req.NoError(s.Consume(ctx, first))
	req.NoError(s.Consume(ctx, second))

	req.Equal(first, <-s.Events())
	req.Equal(second, <-s.Events())
}

func TestWebSocketSink_Full_Buffer_Times_Out(t *testing.T) {
	req := require.New(t)
	s := NewWebSocketSink(domain.NewConnectionID(), 1)

	// Given a full buffer nobody drains
	req.NoError(s.Consume(context.Background(), event.OnlineUsers{}))

	// When another event is pushed with a deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Consume(ctx, event.OnlineUsers{})

	// Then the producer is released
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestWebSocketSink_Closed_Rejects_Events(t *testing.T) {
	req := require.New(t)
	s := NewWebSocketSink(domain.NewConnectionID(), 1)

	s.Close()
	s.Close()

	err := s.Consume(context.Background(), event.OnlineUsers{})
	req.ErrorIs(err, errors.ErrSinkClosed)

	select {
	case <-s.Done():
	default:
		req.Fail("done should be closed")
	}
}

func TestWebSocketSink_Close_Releases_Blocked_Producer(t *testing.T) {
	req := require.New(t)
	s := NewWebSocketSink(domain.NewConnectionID(), 1)
	req.NoError(s.Consume(context.Background(), event.OnlineUsers{}))

	result := make(chan error)
	go func() { result <- s.Consume(context.Background(), event.OnlineUsers{}) }()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-result:
		req.ErrorIs(err, errors.ErrSinkClosed)
	case <-time.After(time.Second):
		req.Fail("producer still blocked")
	}
}
