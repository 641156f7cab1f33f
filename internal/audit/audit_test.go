package audit_test

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

	"loanflow/internal/audit"
	"loanflow/internal/audit/store/memory"
)

type failingSink struct{}

func (failingSink) Append(context.Context, audit.Entry) error {
	return errors.New("disk full")
}

// blockingSink holds every append until release is closed.
type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     int
}

func (b *blockingSink) Append(context.Context, audit.Entry) error {
	<-b.release
	b.mu.Lock()
	b.got++
	b.mu.Unlock()
	return nil
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	a, b := memory.New(), memory.New()
	entry := audit.NewEntry("app-1", audit.KindOutcome, "", "approved", nil)

	require.NoError(t, audit.Fanout{a, b}.Append(ctx, entry))
	gotA, _ := a.ListByApplication(ctx, "app-1")
	gotB, _ := b.ListByApplication(ctx, "app-1")
	assert.Len(t, gotA, 1)
	assert.Len(t, gotB, 1)

	err := audit.Fanout{a, failingSink{}}.Append(ctx, entry)
	assert.ErrorContains(t, err, "disk full")
	gotA, _ = a.ListByApplication(ctx, "app-1")
	assert.Len(t, gotA, 2, "healthy sinks still receive the entry")
}

func TestWorkerPersistsAndFlushesOnClose(t *testing.T) {
	store := memory.New()
	w := audit.NewWorker(store)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	for _, stage := range []string{"preliminary_assessment", "identity_verification", "credit_check"} {
		require.NoError(t, w.Append(context.Background(),
			audit.NewEntry("app-2", audit.KindStageTransition, stage, "completed", nil)))
	}
	w.Close()
	<-done

	entries, err := store.ListByApplication(context.Background(), "app-2")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "credit_check", entries[2].Stage)
}

func TestWorkerCountsFailures(t *testing.T) {
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "failed"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped"})
	w := audit.NewWorker(failingSink{}, audit.WithCounters(failed, dropped))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, w.Append(ctx, audit.NewEntry("app-3", audit.KindOutcome, "", "rejected", nil)),
		"sink failures never surface to the caller")
	assert.Eventually(t, func() bool { return testutil.ToFloat64(failed) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestWorkerDropsWhenBufferFull(t *testing.T) {
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped"})
	sink := &blockingSink{release: make(chan struct{})}
	w := audit.NewWorker(sink, audit.WithBuffer(1), audit.WithCounters(nil, dropped))

	ctx := context.Background()
	// Run is not started, so the single slot fills and the rest drop.
	for range 3 {
		require.NoError(t, w.Append(ctx, audit.NewEntry("app-4", audit.KindOutcome, "", "approved", nil)))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(dropped))

	close(sink.release)
	w.Close()
	w.Run(ctx)
	assert.Equal(t, 1, sink.got)
}

func TestMemoryListRecent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for _, app := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, audit.NewEntry(app, audit.KindOutcome, "", "approved", nil)))
	}
	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ApplicationID)
	assert.Equal(t, "c", recent[1].ApplicationID)

	store.Clear()
	recent, _ = store.ListRecent(ctx, 5)
	assert.Empty(t, recent)
}
