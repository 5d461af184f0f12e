package session

import (
	"context"
	"time"

	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/logging"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/metrics"
)

// Operations reported by the machine
const (
	OpSessionFetch  = "session_fetch"
	OpProfileUpsert = "profile_upsert"
	OpSignOut       = "sign_out"
	OpNavigate      = "navigate"
)

// Outcomes reported by the machine
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeNoSession = "no_session"
	OutcomeDiscarded = "discarded"
)

// OperationEvent describes one finished session operation
type OperationEvent struct {
	Operation     string
	Outcome       string
	Duration      time.Duration
	CorrelationID string
	UserID        string
	Detail        string
	Err           error
}

// EventSink consumes operation events
type EventSink interface {
	Emit(event OperationEvent)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(OperationEvent)

func (f EventSinkFunc) Emit(event OperationEvent) { f(event) }

// NopSink drops every event
type NopSink struct{}

func (NopSink) Emit(OperationEvent) {}

// LoggingSink writes events as structured log lines
type LoggingSink struct {
	Logger *logging.Logger
}

func (s LoggingSink) Emit(e OperationEvent) {
	logger := s.Logger
	if e.Detail != "" {
		logger = logger.WithField("detail", e.Detail)
	}
	logger.LogOperation(e.Operation, e.Outcome, e.CorrelationID, e.UserID, e.Duration, e.Err)
}

// PrometheusSink counts events and observes their durations
type PrometheusSink struct{}

func (PrometheusSink) Emit(e OperationEvent) {
	metrics.RecordSessionOperation(e.Operation, e.Outcome, e.Duration.Seconds())
}

// MultiSink fans events out to several sinks
type MultiSink []EventSink

func (m MultiSink) Emit(e OperationEvent) {
	for _, sink := range m {
		sink.Emit(e)
	}
}

// RetryPolicy bounds attempts of a profile call. Only transient failures
// are retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy makes a single attempt
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 1}

func (p RetryPolicy) do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := p.Backoff
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil || attempt == attempts || !apperrors.IsKind(err, apperrors.KindTransient) {
			return err
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}
	return err
}
