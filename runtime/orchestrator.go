// Package runtime owns presence and the realtime workers.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"linkup/contract"
	"linkup/domain"
	"linkup/moderation"
	"linkup/observability"
	"linkup/runtime/workers"
)

//go:embed censored/*
var censoredFolder embed.FS

type Orchestrator struct {
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       contract.IPresenceRegistry
	changes        chan workers.PresenceChange
	monitoring     *observability.MonitoringManager
	health         workers.HealthStatusSetter
	probe          func() error
	sinkTimeout    time.Duration
	metricInterval time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IPresenceRegistry, monitoring *observability.MonitoringManager,
	health workers.HealthStatusSetter, probe func() error,
	bufferSize int, sinkTimeout, metricInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		registry:       registry,
		changes:        make(chan workers.PresenceChange, bufferSize),
		monitoring:     monitoring,
		health:         health,
		probe:          probe,
		sinkTimeout:    sinkTimeout,
		metricInterval: metricInterval,
	}
}

// Connect queues a presence change for a freshly opened connection.
func (o *Orchestrator) Connect(ctx context.Context, userID domain.UserID, session contract.Session) error {
	return o.enqueue(ctx, workers.PresenceChange{Kind: workers.Connected, UserID: userID, Session: session})
}

// Disconnect queues the release of a closed connection.
func (o *Orchestrator) Disconnect(ctx context.Context, userID domain.UserID, session contract.Session) error {
	return o.enqueue(ctx, workers.PresenceChange{Kind: workers.Disconnected, UserID: userID, Session: session})
}

func (o *Orchestrator) enqueue(ctx context.Context, change workers.PresenceChange) error {
	select {
	case o.changes <- change:
		return nil
	case <-ctx.Done():
		o.log.Warn("Presence change dropped", "user_id", change.UserID, "kind", change.Kind)
		return ctx.Err()
	}
}

// Lookup gives the message path read access to presence.
func (o *Orchestrator) Lookup(userID domain.UserID) (contract.Session, bool) {
	return o.registry.Lookup(userID)
}

// OnlineUsers is the current presence snapshot.
func (o *Orchestrator) OnlineUsers() []domain.UserID {
	return o.registry.Snapshot()
}

// LoadModerator loads the embedded censored words and builds the Aho-Corasick automaton.
// When moderation is disabled, text goes through untouched.
func (o *Orchestrator) LoadModerator(enabled bool, charReplacement rune) (contract.Censor, error) {
	if !enabled {
		o.log.Info("Moderation disabled")
		return moderation.Passthrough{}, nil
	}
	data, err := NewCensoredLoader(censoredFolder).LoadAll("censored")
	if err != nil {
		return nil, err
	}
	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	return moderation.NewModerator(data.Words, charReplacement, o.log)
}

// Start registers the realtime workers and blocks until ctx is canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.supervisor.Add(
		workers.NewPresenceWorker(o.log, o.registry, o.changes, o.monitoring, o.sinkTimeout),
		workers.NewHealthMonitoringWorker(o.log, o.monitoring, o.health, o.probe, o.metricInterval),
		workers.NewChannelCapacityWorker(o.log, []workers.NamedChannel{
			{Name: "presence_changes", Channel: o.changes},
		}, o.monitoring, o.metricInterval),
		workers.NewReporterWorker(o.log, o.monitoring, reportInterval(o.metricInterval)),
	)
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
}

// reportInterval keeps the stats log line rarer than the metric sampling.
func reportInterval(metricInterval time.Duration) time.Duration {
	return max(6*metricInterval, time.Minute)
}

// Stop cancels the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
