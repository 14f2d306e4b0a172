package production_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/plutolang/pluto/runtime/concurrency/engine/production"
)

// fakeMetrics records every RecordGauge call so the active-task gauge
// wiring can be asserted on directly.
type fakeMetrics struct {
	mu     sync.Mutex
	gauges []float64
}

func (f *fakeMetrics) IncCounter(ctx context.Context, name string, keyvals ...any) {}

func (f *fakeMetrics) RecordGauge(ctx context.Context, name string, value float64, keyvals ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges = append(f.gauges, value)
}

func (f *fakeMetrics) last() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.gauges) == 0 {
		return 0
	}
	return f.gauges[len(f.gauges)-1]
}

func TestSpawnRecordsActiveTasksGauge(t *testing.T) {
	m := &fakeMetrics{}
	eng := production.New(production.WithMetrics(m))

	release := make(chan struct{})
	task := eng.Spawn(context.Background(), func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})

	require.Eventually(t, func() bool { return m.last() == 1 }, time.Second, time.Millisecond)

	close(release)
	_, err := task.Get(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.last() == 0 }, time.Second, time.Millisecond)
}
