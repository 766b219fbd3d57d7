package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessStats is the last sample of the server process taken by the health worker.
type ProcessStats struct {
	RSSMb      uint64  `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	StorageOK  bool    `json:"storage_ok"`
	SampledAt  string  `json:"sampled_at"`
}

// ChannelStats is the fill level of an internal queue.
type ChannelStats struct {
	Name     string `json:"name"`
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
}

// MonitoringStats aggregates every metric exposed on /api/stats.
type MonitoringStats struct {
	StartedAt          string         `json:"started_at"`
	UptimeSeconds      int64          `json:"uptime_seconds"`
	OnlineUsers        int            `json:"online_users"`
	ActiveConnections  int64          `json:"active_connections"`
	MessagesSent       uint64         `json:"messages_sent"`
	MessagesDelivered  uint64         `json:"messages_delivered"`
	ImagesUploaded     uint64         `json:"images_uploaded"`
	UploadFailures     uint64         `json:"upload_failures"`
	PresenceBroadcasts uint64         `json:"presence_broadcasts"`
	DroppedEvents      uint64         `json:"dropped_events"`
	CensoredMessages   uint64         `json:"censored_messages"`
	Process            ProcessStats   `json:"process"`
	Channels           []ChannelStats `json:"channels"`
}

// MonitoringManager holds the live counters of the server.
// Counters are atomic, sampled values are guarded by mu.
type MonitoringManager struct {
	log       *slog.Logger
	startedAt time.Time

	mu          sync.RWMutex
	process     ProcessStats
	channels    map[string]ChannelStats
	onlineUsers int

	activeConnections  atomic.Int64
	messagesSent       atomic.Uint64
	messagesDelivered  atomic.Uint64
	imagesUploaded     atomic.Uint64
	uploadFailures     atomic.Uint64
	presenceBroadcasts atomic.Uint64
	droppedEvents      atomic.Uint64
	censoredMessages   atomic.Uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{
		log:       log,
		startedAt: time.Now(),
		channels:  make(map[string]ChannelStats),
	}
}

func (mm *MonitoringManager) IncrMessagesSent()       { mm.messagesSent.Add(1) }
func (mm *MonitoringManager) IncrMessagesDelivered()  { mm.messagesDelivered.Add(1) }
func (mm *MonitoringManager) IncrImagesUploaded()     { mm.imagesUploaded.Add(1) }
func (mm *MonitoringManager) IncrUploadFailures()     { mm.uploadFailures.Add(1) }
func (mm *MonitoringManager) IncrPresenceBroadcasts() { mm.presenceBroadcasts.Add(1) }
func (mm *MonitoringManager) IncrDroppedEvents()      { mm.droppedEvents.Add(1) }
func (mm *MonitoringManager) IncrCensoredMessages()   { mm.censoredMessages.Add(1) }

func (mm *MonitoringManager) ConnectionOpened() { mm.activeConnections.Add(1) }
func (mm *MonitoringManager) ConnectionClosed() { mm.activeConnections.Add(-1) }

func (mm *MonitoringManager) SetOnlineUsers(n int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.onlineUsers = n
}

// UpdateProcess stores a process sample and completes it with Go runtime metrics.
func (mm *MonitoringManager) UpdateProcess(stats ProcessStats) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC
	stats.Goroutines = runtime.NumGoroutine()
	stats.SampledAt = time.Now().UTC().Format(time.RFC3339)

	mm.mu.Lock()
	mm.process = stats
	mm.mu.Unlock()

	mm.log.Debug("Process stats updated",
		"rss_mb", stats.RSSMb,
		"cpu", stats.CPUPercent,
		"goroutines", stats.Goroutines,
		"storage_ok", stats.StorageOK,
	)
}

func (mm *MonitoringManager) UpdateChannel(name string, length, capacity int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.channels[name] = ChannelStats{Name: name, Length: length, Capacity: capacity}
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	channels := make([]ChannelStats, 0, len(mm.channels))
	for _, c := range mm.channels {
		channels = append(channels, c)
	}
	return MonitoringStats{
		StartedAt:          mm.startedAt.UTC().Format(time.RFC3339),
		UptimeSeconds:      int64(time.Since(mm.startedAt).Seconds()),
		OnlineUsers:        mm.onlineUsers,
		ActiveConnections:  mm.activeConnections.Load(),
		MessagesSent:       mm.messagesSent.Load(),
		MessagesDelivered:  mm.messagesDelivered.Load(),
		ImagesUploaded:     mm.imagesUploaded.Load(),
		UploadFailures:     mm.uploadFailures.Load(),
		PresenceBroadcasts: mm.presenceBroadcasts.Load(),
		DroppedEvents:      mm.droppedEvents.Load(),
		CensoredMessages:   mm.censoredMessages.Load(),
		Process:            mm.process,
		Channels:           channels,
	}
}
