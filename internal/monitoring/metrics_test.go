package monitoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	depth, dlq int
	err        error
}

func (f *fakeQueue) GetQueueDepth() (int, error) { return f.depth, f.err }
func (f *fakeQueue) GetDLQDepth() (int, error)   { return f.dlq, nil }

func TestMonitorHealthy(t *testing.T) {
	m := NewMonitor(&fakeQueue{depth: 3}, 0, nil)
	require.NoError(t, m.Update())

	m.RecordJob(nil)
	m.RecordJob(nil)

	s := m.Snapshot()
	assert.Equal(t, 3, s.QueueDepth)
	assert.Equal(t, int64(2), s.ProcessedJobs)
	assert.Equal(t, HealthHealthy, m.SystemHealth())
	assert.Empty(t, m.Alerts())
}

func TestMonitorAlerts(t *testing.T) {
	m := NewMonitor(&fakeQueue{depth: 1500, dlq: 101}, 0, nil)
	require.NoError(t, m.Update())

	assert.Equal(t, HealthCritical, m.SystemHealth())
	assert.Len(t, m.Alerts(), 2)
}

func TestMonitorFailureRate(t *testing.T) {
	m := NewMonitor(&fakeQueue{}, 0, nil)
	m.RecordJob(nil)
	m.RecordJob(errors.New("upload failed"))

	assert.Equal(t, HealthWarning, m.SystemHealth())
	assert.Contains(t, m.Alerts()[0], "50.0%")
}

func TestMonitorUpdateError(t *testing.T) {
	m := NewMonitor(&fakeQueue{err: errors.New("channel closed")}, 0, nil)
	assert.ErrorContains(t, m.Update(), "channel closed")
}

func TestMonitorRecordSweep(t *testing.T) {
	m := NewMonitor(&fakeQueue{}, 0, nil)
	m.RecordSweep(4)

	s := m.Snapshot()
	assert.Equal(t, 4, s.SweepDeleted)
	assert.False(t, s.LastSweep.IsZero())
}
