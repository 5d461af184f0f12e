// Package monitoring watches the cloud sync pipeline from the worker.
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
)

const (
	queueWarnDepth = 1000
	dlqAlertDepth  = 100
	failureWarn    = 0.1
)

// Health levels reported by SystemHealth
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Metrics is a snapshot of the sync pipeline
type Metrics struct {
	QueueDepth    int       `json:"queue_depth"`
	DLQDepth      int       `json:"dlq_depth"`
	ProcessedJobs int64     `json:"processed_jobs"`
	FailedJobs    int64     `json:"failed_jobs"`
	LastSweep     time.Time `json:"last_sweep"`
	SweepDeleted  int       `json:"sweep_deleted"`
	LastUpdated   time.Time `json:"last_updated"`
}

// QueueProvider reports queue depths
type QueueProvider interface {
	GetQueueDepth() (int, error)
	GetDLQDepth() (int, error)
}

// Monitor tracks queue depths and job outcomes
type Monitor struct {
	metrics  Metrics
	mu       sync.RWMutex
	queue    QueueProvider
	interval time.Duration
	logger   *logging.Logger
}

// NewMonitor creates a monitor polling queue every interval
func NewMonitor(queue QueueProvider, interval time.Duration, logger *logging.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		metrics:  Metrics{LastUpdated: time.Now()},
		queue:    queue,
		interval: interval,
		logger:   logger,
	}
}

// Start polls queue depths until ctx is done
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Update(); err != nil {
					m.logger.WithError(err).Warn("Failed to update queue metrics")
				}
				for _, alert := range m.Alerts() {
					m.logger.Warn(alert)
				}
			}
		}
	}()
}

// Update reads the current queue depths
func (m *Monitor) Update() error {
	queueDepth, err := m.queue.GetQueueDepth()
	if err != nil {
		return fmt.Errorf("failed to get queue depth: %w", err)
	}
	dlqDepth, err := m.queue.GetDLQDepth()
	if err != nil {
		return fmt.Errorf("failed to get DLQ depth: %w", err)
	}

	metrics.SetQueueDepth("sync", queueDepth)
	metrics.SetQueueDepth("dlq", dlqDepth)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.QueueDepth = queueDepth
	m.metrics.DLQDepth = dlqDepth
	m.metrics.LastUpdated = time.Now()
	return nil
}

// RecordJob counts a processed sync job
func (m *Monitor) RecordJob(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.ProcessedJobs++
	if err != nil {
		m.metrics.FailedJobs++
	}
}

// RecordSweep notes a finished retention sweep
func (m *Monitor) RecordSweep(deleted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.LastSweep = time.Now()
	m.metrics.SweepDeleted = deleted
}

// Snapshot returns a copy of the current metrics
func (m *Monitor) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// SystemHealth summarizes the pipeline as healthy, warning or critical
func (m *Monitor) SystemHealth() string {
	s := m.Snapshot()

	if s.DLQDepth > dlqAlertDepth {
		return HealthCritical
	}
	if s.QueueDepth > queueWarnDepth || failureRate(s) > failureWarn {
		return HealthWarning
	}
	return HealthHealthy
}

// Alerts describes every threshold currently exceeded
func (m *Monitor) Alerts() []string {
	s := m.Snapshot()

	var alerts []string
	if s.DLQDepth > dlqAlertDepth {
		alerts = append(alerts, fmt.Sprintf("High DLQ depth: %d messages", s.DLQDepth))
	}
	if s.QueueDepth > queueWarnDepth {
		alerts = append(alerts, fmt.Sprintf("High queue depth: %d jobs pending", s.QueueDepth))
	}
	if rate := failureRate(s); rate > failureWarn {
		alerts = append(alerts, fmt.Sprintf("High failure rate: %.1f%%", rate*100))
	}
	return alerts
}

func failureRate(s Metrics) float64 {
	if s.ProcessedJobs == 0 {
		return 0
	}
	return float64(s.FailedJobs) / float64(s.ProcessedJobs)
}
