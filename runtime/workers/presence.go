package workers

import (
	"context"
	"log/slog"
	"time"

	"linkup/contract"
	"linkup/domain"
	"linkup/domain/event"
	"linkup/observability"
)

type PresenceKind int

const (
	Connected PresenceKind = iota
	Disconnected
)

func (k PresenceKind) String() string {
	if k == Connected {
		return "connected"
	}
	return "disconnected"
}

// PresenceChange is a connect or disconnect waiting to be applied to the registry.
type PresenceChange struct {
	Kind    PresenceKind
	UserID  domain.UserID
	Session contract.Session
}

// PresenceWorker is the single writer of the presence registry.
// Changes are applied in arrival order and each one that alters presence is
// followed by a getOnlineUsers broadcast to every open connection,
// so no client ever observes snapshots out of order.
//
// The registry keeps one session per user, while open keeps every live
// connection: a connection replaced by a newer one for the same user is
// still open and still receives snapshots until it disconnects.
type PresenceWorker struct {
	log         *slog.Logger
	registry    contract.IPresenceRegistry
	open        map[domain.ConnectionID]contract.Session
	changes     chan PresenceChange
	monitoring  *observability.MonitoringManager
	sinkTimeout time.Duration
}

func NewPresenceWorker(
	log *slog.Logger,
	registry contract.IPresenceRegistry,
	changes chan PresenceChange,
	monitoring *observability.MonitoringManager,
	sinkTimeout time.Duration,
) *PresenceWorker {
	return &PresenceWorker{
		log:         log,
		registry:    registry,
		open:        make(map[domain.ConnectionID]contract.Session),
		changes:     changes,
		monitoring:  monitoring,
		sinkTimeout: sinkTimeout,
	}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence worker")
			return nil
		case change := <-w.changes:
			w.Apply(ctx, change)
		}
	}
}

// Apply mutates the registry then broadcasts the new snapshot.
// A disconnect of a connection that was already replaced changes nothing
// and broadcasts nothing.
func (w *PresenceWorker) Apply(ctx context.Context, change PresenceChange) {
	switch change.Kind {
	case Connected:
		w.open[change.Session.ConnectionID] = change.Session
		w.registry.Register(change.UserID, change.Session)
	case Disconnected:
		delete(w.open, change.Session.ConnectionID)
		if !w.registry.Release(change.UserID, change.Session.ConnectionID) {
			w.log.Debug("Stale disconnect ignored", "user_id", change.UserID)
			return
		}
	}
	w.log.Debug("Presence changed", "user_id", change.UserID, "kind", change.Kind)
	w.broadcast(ctx)
}

func (w *PresenceWorker) broadcast(ctx context.Context) {
	online := w.registry.Snapshot()
	evt := event.OnlineUsers{UserIDs: online}
	w.monitoring.SetOnlineUsers(len(online))
	w.monitoring.IncrPresenceBroadcasts()

	for _, session := range w.open {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		err := session.Sink.Consume(sinkCtx, evt)
		cancel()
		if err != nil {
			w.monitoring.IncrDroppedEvents()
			w.log.Warn("Online users not delivered",
				"connection_id", session.ConnectionID, "error", err)
		}
	}
}
