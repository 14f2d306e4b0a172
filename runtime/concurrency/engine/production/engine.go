// Package production is the production-mode concurrency engine (spec.md
// §4.12): tasks map 1:1 to goroutines standing in for pthreads, channels
// use a mutex and two condition variables over a circular buffer, and
// select polls ready branches in a randomized order to avoid head-of-line
// bias.
//
// Adapted from the teacher's runtime/agent/engine/inmem.eng: the same
// mutex-guarded-state-plus-done-channel handle shape as inmem's
// handle/future, generalized from a single-shot workflow result to a
// general-purpose Task, and from an in-memory dev engine to the
// production adapter. The active-task gauge it reports follows the same
// internal/telemetry Metrics facade every other pass uses (SPEC_FULL.md
// §1.1).
package production

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/plutolang/pluto/internal/telemetry"
	"github.com/plutolang/pluto/runtime/concurrency/engine"
)

type prodEngine struct {
	metrics     telemetry.Metrics
	activeTasks atomic.Int64
}

// Option configures optional production Engine behavior.
type Option func(*prodEngine)

// WithMetrics reports the `active_tasks` gauge named in SPEC_FULL.md §1.1
// through m as tasks spawn and complete. Without it, the engine still
// works but emits nothing.
func WithMetrics(m telemetry.Metrics) Option {
	return func(e *prodEngine) { e.metrics = m }
}

// New returns the production Engine adapter.
func New(opts ...Option) engine.Engine {
	e := &prodEngine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *prodEngine) Spawn(ctx context.Context, fn func(context.Context) (any, error)) engine.Task {
	t := &task{done: make(chan struct{})}
	taskCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	e.recordActiveTasks(e.activeTasks.Add(1))

	go func() {
		defer close(t.done)
		defer e.recordActiveTasks(e.activeTasks.Add(-1))
		result, err := fn(taskCtx)
		t.mu.Lock()
		t.result, t.err = result, err
		t.mu.Unlock()
	}()
	return t
}

func (e *prodEngine) recordActiveTasks(n int64) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordGauge(context.Background(), "active_tasks", float64(n))
}

func (e *prodEngine) NewChannel(capacity int) engine.Channel {
	if capacity <= 0 {
		capacity = 1
	}
	c := &channel{
		buf:      make([]any, 0, capacity),
		capacity: capacity,
	}
	c.notEmpty = sync.NewCond(&c.mu)
	c.notFull = sync.NewCond(&c.mu)
	return c
}

func (prodEngine) NewRWLock() engine.RWLock { return &rwlock{} }

// Select polls all branches in a randomized order (spec.md §4.12) and
// blocks until one of them is immediately performable, re-shuffling the
// poll order each pass so no branch is systematically favored.
func (prodEngine) Select(ctx context.Context, cases []engine.SelectCase) (int, error) {
	if len(cases) == 0 {
		return -1, nil
	}
	order := make([]int, len(cases))
	for i := range order {
		order[i] = i
	}
	for {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			c := cases[idx]
			if c.Send != nil {
				if err := c.Channel.TrySend(*c.Send); err == nil {
					if c.OnReady != nil {
						c.OnReady(nil, nil)
					}
					return idx, nil
				}
			} else if c.Recv {
				v, err := c.Channel.TryRecv()
				if err == nil || err == engine.ErrChannelClosed {
					if c.OnReady != nil {
						c.OnReady(v, err)
					}
					return idx, err
				}
			}
		}
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		default:
		}
	}
}

// task implements engine.Task over a goroutine and a done channel, mirroring
// the teacher's inmem.handle (mutex-guarded result/err, done channel
// signaling completion).
type task struct {
	mu        sync.Mutex
	done      chan struct{}
	result    any
	err       error
	cancel    context.CancelFunc
	cancelled bool
}

func (t *task) Get(ctx context.Context) (any, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled && t.err == nil {
		return nil, engine.ErrTaskCancelled
	}
	return t.result, t.err
}

func (t *task) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	t.mu.Unlock()
	t.cancel()
}

func (t *task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// channel implements engine.Channel as a mutex-guarded circular buffer with
// two condition variables, matching spec.md §4.12's production-mode
// description exactly.
type channel struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	buf      []any
	capacity int
	closed   bool
}

func (c *channel) Send(ctx context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.buf) >= c.capacity && !c.closed {
		c.notFull.Wait()
	}
	if c.closed {
		return engine.ErrChannelClosed
	}
	c.buf = append(c.buf, v)
	c.notEmpty.Signal()
	return nil
}

func (c *channel) Recv(ctx context.Context) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.buf) == 0 && !c.closed {
		c.notEmpty.Wait()
	}
	if len(c.buf) == 0 {
		return nil, engine.ErrChannelClosed
	}
	v := c.buf[0]
	c.buf = c.buf[1:]
	c.notFull.Signal()
	return v, nil
}

func (c *channel) TrySend(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return engine.ErrChannelClosed
	}
	if len(c.buf) >= c.capacity {
		return engine.ErrChannelFull
	}
	c.buf = append(c.buf, v)
	c.notEmpty.Signal()
	return nil
}

func (c *channel) TryRecv() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) == 0 {
		if c.closed {
			return nil, engine.ErrChannelClosed
		}
		return nil, engine.ErrChannelEmpty
	}
	v := c.buf[0]
	c.buf = c.buf[1:]
	c.notFull.Signal()
	return v, nil
}

func (c *channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}

// rwlock wraps sync.RWMutex directly; production mode has no fiber state to
// coordinate with, unlike the test-mode adapter.
type rwlock struct{ mu sync.RWMutex }

func (l *rwlock) RLock()   { l.mu.RLock() }
func (l *rwlock) RUnlock() { l.mu.RUnlock() }
func (l *rwlock) Lock()    { l.mu.Lock() }
func (l *rwlock) Unlock()  { l.mu.Unlock() }
