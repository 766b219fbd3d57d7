package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"linkup/observability"

	"github.com/shirou/gopsutil/process"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name under which the server reports its health.
const ServiceName = "linkup"

// HealthStatusSetter is the part of grpc health.Server the worker drives.
type HealthStatusSetter interface {
	SetServingStatus(service string, servingStatus healthpb.HealthCheckResponse_ServingStatus)
}

// HealthMonitoringWorker samples the server process and its storage on each tick.
// A failing storage probe flips the health status to NOT_SERVING until it recovers.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	monitoring     *observability.MonitoringManager
	health         HealthStatusSetter
	probe          func() error
	metricInterval time.Duration
	proc           *process.Process
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	monitoring *observability.MonitoringManager,
	health HealthStatusSetter,
	probe func() error,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Unable to track own process, process metrics disabled", "error", err)
	}
	return &HealthMonitoringWorker{
		log:            log,
		monitoring:     monitoring,
		health:         health,
		probe:          probe,
		metricInterval: metricInterval,
		proc:           proc,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	w.Sample()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

func (w *HealthMonitoringWorker) Sample() {
	stats := observability.ProcessStats{StorageOK: true}
	if err := w.probe(); err != nil {
		stats.StorageOK = false
		w.log.Error("Storage probe failed", "error", err)
	}

	if w.proc != nil {
		if mem, err := w.proc.MemoryInfo(); err != nil {
			w.log.Debug("Error while finding process ram usage", "error", err)
		} else {
			stats.RSSMb = mem.RSS / 1024 / 1024
		}
		if cpu, err := w.proc.CPUPercent(); err != nil {
			w.log.Debug("Error while finding process cpu usage", "error", err)
		} else {
			stats.CPUPercent = cpu
		}
	}
	w.monitoring.UpdateProcess(stats)

	status := healthpb.HealthCheckResponse_SERVING
	if !stats.StorageOK {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	w.health.SetServingStatus(ServiceName, status)
	w.health.SetServingStatus("", status)
}
