package workers

import (
	"context"
	"log/slog"
	"time"

	"linkup/observability"
)

// ReporterWorker periodically logs a one-line summary of the live counters.
type ReporterWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewReporterWorker(log *slog.Logger, monitoring *observability.MonitoringManager, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, monitoring: monitoring, interval: interval}
}

// Run starts the reporting loop until context cancellation, with a last report on the way out
func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Report()
			return nil
		case <-ticker.C:
			w.Report()
		}
	}
}

func (w *ReporterWorker) Report() {
	stats := w.monitoring.GetLatest()
	w.log.Info("Stats",
		"uptime", (time.Duration(stats.UptimeSeconds) * time.Second).String(),
		"online_users", stats.OnlineUsers,
		"connections", stats.ActiveConnections,
		"sent", stats.MessagesSent,
		"delivered", stats.MessagesDelivered,
		"dropped", stats.DroppedEvents,
		"images", stats.ImagesUploaded,
		"upload_failures", stats.UploadFailures,
		"rss_mb", stats.Process.RSSMb,
		"cpu_percent", stats.Process.CPUPercent,
	)
}
