package runtime_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"linkup/contract"
	"linkup/domain"
	"linkup/domain/event"
	"linkup/observability"
	"linkup/runtime"
	"linkup/runtime/workers"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
)

type countingSink struct {
	received atomic.Uint64
}

func (s *countingSink) Consume(_ context.Context, _ event.DomainEvent) error {
	s.received.Add(1)
	return nil
}

// TestOrchestrator_PresenceLoad connects many users at once. Every connect broadcasts
// the full snapshot to everyone already online, so the k-th connect costs k pushes.
func TestOrchestrator_PresenceLoad(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.New(slog.DiscardHandler)
	monitoring := observability.NewMonitoringManager(log)
	o := runtime.NewOrchestrator(log, workers.NewSupervisor(log), runtime.NewRegistry(), monitoring,
		health.NewServer(), func() error { return nil }, 1000, 100*time.Millisecond, time.Hour)
	go o.Start(ctx)

	const numClients = 200
	sink := &countingSink{}
	var failures atomic.Int32
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			userID := domain.UserID(fmt.Sprintf("user-%03d", clientID))
			session := contract.Session{ConnectionID: domain.NewConnectionID(), Sink: sink}
			if err := o.Connect(ctx, userID, session); err != nil {
				failures.Add(1)
			}
		}(i)
	}
	wg.Wait()
	req.Zero(failures.Load())

	expected := uint64(numClients * (numClients + 1) / 2)
	req.Eventually(func() bool { return sink.received.Load() == expected }, 5*time.Second, 10*time.Millisecond)
	duration := time.Since(start)

	req.Len(o.OnlineUsers(), numClients)
	req.Equal(numClients, monitoring.GetLatest().OnlineUsers)
	t.Logf("%d connects, %d pushes in %v (%.0f pushes/sec)",
		numClients, expected, duration, float64(expected)/duration.Seconds())
}
