package notify

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/internal/observability/metrics"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// Sink delivers a captured lead somewhere a human will see it.
// Notify reports delivery success and never returns an error or panics;
// failures are folded into false.
type Sink interface {
	Notify(ctx context.Context, record leads.Record) bool
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, record leads.Record) bool

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, record leads.Record) bool {
	return f(ctx, record)
}

// Named pairs a sink with the label used in logs and metrics.
type Named struct {
	Name string
	Sink Sink
}

// Bounded caps every delivery attempt at timeout and converts panics into false.
// The bound holds even for a sink that ignores its context: the call runs on
// its own goroutine and is abandoned once the deadline passes.
func Bounded(sink Sink, timeout time.Duration, logger *logging.Logger) Sink {
	if sink == nil {
		panic("notify: sink cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return SinkFunc(func(ctx context.Context, record leads.Record) bool {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		done := make(chan bool, 1)
		go func() {
			ok := false
			defer func() {
				if r := recover(); r != nil {
					logger.Error("lead sink panicked", "lead_id", record.ID, "panic", r)
				}
				done <- ok
			}()
			ok = sink.Notify(ctx, record)
		}()

		select {
		case ok := <-done:
			return ok
		case <-ctx.Done():
			logger.Warn("lead sink abandoned", "lead_id", record.ID, "error", ctx.Err())
			return false
		}
	})
}

// MultiSink fans a record out to every configured sink concurrently.
type MultiSink struct {
	sinks   []Named
	metrics *metrics.ConversationMetrics
	logger  *logging.Logger
}

// NewMultiSink builds a fan-out sink. Nil sinks are skipped.
func NewMultiSink(m *metrics.ConversationMetrics, logger *logging.Logger, sinks ...Named) *MultiSink {
	if logger == nil {
		logger = logging.Default()
	}
	filtered := make([]Named, 0, len(sinks))
	for _, s := range sinks {
		if s.Sink != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered, metrics: m, logger: logger}
}

// Len reports how many sinks are configured.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Notify succeeds when at least one sink accepted the record. With no sinks
// configured the lead counts as not shared. Sinks run concurrently so a slow
// sink does not add its latency to the others; wrap them in Bounded.
func (m *MultiSink) Notify(ctx context.Context, record leads.Record) bool {
	results := make([]bool, len(m.sinks))
	var wg sync.WaitGroup
	for i, s := range m.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Sink.Notify(ctx, record)
		}()
	}
	wg.Wait()

	delivered := false
	for i, s := range m.sinks {
		ok := results[i]
		m.metrics.ObserveNotification(s.Name, ok)
		if ok {
			delivered = true
			m.logger.Info("lead delivered", "sink", s.Name, "lead_id", record.ID)
		} else {
			m.logger.Warn("lead delivery failed", "sink", s.Name, "lead_id", record.ID)
		}
	}
	return delivered
}

// RecordingSink persists every record alongside handing it to next. A storage
// failure is logged and does not affect the delivery result. Save gets its own
// deadline so a stalled repository cannot hold up the delivery result.
type RecordingSink struct {
	repo        leads.Repository
	next        Sink
	saveTimeout time.Duration
	logger      *logging.Logger
}

// NewRecordingSink wraps next with persistence into repo. A non-positive
// saveTimeout leaves Save bounded only by the caller's context.
func NewRecordingSink(repo leads.Repository, next Sink, saveTimeout time.Duration, logger *logging.Logger) *RecordingSink {
	if repo == nil {
		panic("notify: lead repository cannot be nil")
	}
	if next == nil {
		panic("notify: next sink cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RecordingSink{repo: repo, next: next, saveTimeout: saveTimeout, logger: logger}
}

// Notify saves the record while delegating, and returns once both are done or
// the save deadline has passed.
func (s *RecordingSink) Notify(ctx context.Context, record leads.Record) bool {
	saveCtx := ctx
	if s.saveTimeout > 0 {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(ctx, s.saveTimeout)
		defer cancel()
	}

	saved := make(chan struct{})
	go func() {
		defer close(saved)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("lead repository panicked", "lead_id", record.ID, "panic", r)
			}
		}()
		if err := s.repo.Save(saveCtx, record); err != nil {
			s.logger.Error("failed to persist lead", "lead_id", record.ID, "error", err)
		}
	}()

	ok := s.next.Notify(ctx, record)
	select {
	case <-saved:
	case <-saveCtx.Done():
		s.logger.Warn("lead persistence abandoned", "lead_id", record.ID, "error", saveCtx.Err())
	}
	return ok
}
