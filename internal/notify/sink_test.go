package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/internal/observability/metrics"
)

func constSink(ok bool, calls *int) Sink {
	return SinkFunc(func(ctx context.Context, record leads.Record) bool {
		*calls++
		return ok
	})
}

func TestBounded_RecoversPanic(t *testing.T) {
	sink := Bounded(SinkFunc(func(ctx context.Context, record leads.Record) bool {
		panic("kaboom")
	}), time.Second, nil)

	assert.False(t, sink.Notify(context.Background(), sampleRecord()))
}

func TestBounded_AppliesDeadline(t *testing.T) {
	sink := Bounded(SinkFunc(func(ctx context.Context, record leads.Record) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(2 * time.Second):
			return true
		}
	}), 20*time.Millisecond, nil)

	start := time.Now()
	assert.False(t, sink.Notify(context.Background(), sampleRecord()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestBounded_AbandonsSinkIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	sink := Bounded(SinkFunc(func(ctx context.Context, record leads.Record) bool {
		<-release
		return true
	}), 20*time.Millisecond, nil)

	start := time.Now()
	assert.False(t, sink.Notify(context.Background(), sampleRecord()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestBounded_PassesThroughSuccess(t *testing.T) {
	calls := 0
	sink := Bounded(constSink(true, &calls), time.Second, nil)

	assert.True(t, sink.Notify(context.Background(), sampleRecord()))
	assert.Equal(t, 1, calls)
}

func TestMultiSink_AnySuccessWins(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)
	var failCalls, okCalls int

	multi := NewMultiSink(m, nil,
		Named{Name: "webhook", Sink: constSink(false, &failCalls)},
		Named{Name: "nil", Sink: nil},
		Named{Name: "email", Sink: constSink(true, &okCalls)},
	)

	require.Equal(t, 2, multi.Len())
	assert.True(t, multi.Notify(context.Background(), sampleRecord()))
	assert.Equal(t, 1, failCalls)
	assert.Equal(t, 1, okCalls)
	series, err := testutil.GatherAndCount(reg, "support_leads_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

// rendezvousSink succeeds only if every peer sink is running at the same time.
func rendezvousSink(started *sync.WaitGroup, result *bool) Sink {
	return SinkFunc(func(ctx context.Context, record leads.Record) bool {
		started.Done()
		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()
		select {
		case <-done:
			*result = true
		case <-time.After(time.Second):
			*result = false
		}
		return *result
	})
}

func TestMultiSink_NotifiesConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	var webhookOK, sqsOK bool
	multi := NewMultiSink(nil, nil,
		Named{Name: "webhook", Sink: rendezvousSink(&started, &webhookOK)},
		Named{Name: "sqs", Sink: rendezvousSink(&started, &sqsOK)},
	)

	assert.True(t, multi.Notify(context.Background(), sampleRecord()))
	assert.True(t, webhookOK, "webhook sink never saw its peer running")
	assert.True(t, sqsOK, "sqs sink never saw its peer running")
}

func TestMultiSink_AllFail(t *testing.T) {
	var a, b int
	multi := NewMultiSink(nil, nil,
		Named{Name: "a", Sink: constSink(false, &a)},
		Named{Name: "b", Sink: constSink(false, &b)},
	)

	assert.False(t, multi.Notify(context.Background(), sampleRecord()))
}

func TestMultiSink_EmptyFails(t *testing.T) {
	assert.False(t, NewMultiSink(nil, nil).Notify(context.Background(), sampleRecord()))
}

type failingRepo struct {
	leads.Repository
}

func (failingRepo) Save(ctx context.Context, record leads.Record) error {
	return errors.New("db down")
}

func TestRecordingSink_PersistsThenDelegates(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	calls := 0
	sink := NewRecordingSink(repo, constSink(true, &calls), time.Second, nil)

	require.True(t, sink.Notify(context.Background(), sampleRecord()))
	stored, err := repo.GetByID(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.Email)
	assert.Equal(t, 1, calls)
}

// gatedRepo only saves once delivery has started.
type gatedRepo struct {
	leads.Repository
	delivering <-chan struct{}
}

func (r gatedRepo) Save(ctx context.Context, record leads.Record) error {
	select {
	case <-r.delivering:
		return r.Repository.Save(ctx, record)
	case <-time.After(time.Second):
		return errors.New("delivery never started")
	}
}

func TestRecordingSink_SavesWhileDelivering(t *testing.T) {
	delivering := make(chan struct{})
	repo := leads.NewInMemoryRepository()
	next := SinkFunc(func(ctx context.Context, record leads.Record) bool {
		close(delivering)
		return true
	})
	sink := NewRecordingSink(gatedRepo{Repository: repo, delivering: delivering}, next, 0, nil)

	require.True(t, sink.Notify(context.Background(), sampleRecord()))
	_, err := repo.GetByID(context.Background(), "lead-1")
	require.NoError(t, err, "Notify must wait for the save to finish")
}

func TestRecordingSink_StorageFailureDoesNotBlockDelivery(t *testing.T) {
	calls := 0
	sink := NewRecordingSink(failingRepo{}, constSink(false, &calls), time.Second, nil)

	assert.False(t, sink.Notify(context.Background(), sampleRecord()))
	assert.Equal(t, 1, calls)
}

// stalledRepo blocks in Save until released, ignoring its context.
type stalledRepo struct {
	leads.Repository
	release <-chan struct{}
}

func (r stalledRepo) Save(ctx context.Context, record leads.Record) error {
	<-r.release
	return nil
}

func TestRecordingSink_StalledRepositoryDoesNotHoldDelivery(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	calls := 0
	sink := NewRecordingSink(stalledRepo{release: release}, constSink(true, &calls), 50*time.Millisecond, nil)

	start := time.Now()
	assert.True(t, sink.Notify(context.Background(), sampleRecord()))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, calls)
}
