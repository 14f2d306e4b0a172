// Package runtime holds the ambient configuration and fatal-failure types
// shared by the native runtime's sub-packages (gc, values, concurrency):
// the functional-options Config a host program builds once at startup, and
// the Fault type every non-catchable abort path raises.
package runtime

// ConcurrencyMode selects which runtime/concurrency/engine adapter backs
// task/channel/rwlock primitives (spec.md §4.12).
type ConcurrencyMode string

const (
	ModeProduction ConcurrencyMode = "production"
	ModeTest        ConcurrencyMode = "test"
)

// Scheduler names a test-mode selection strategy (spec.md §4.12, "Test
// mode"). Ignored outside ModeTest.
type Scheduler string

const (
	SchedulerSequential Scheduler = "sequential"
	SchedulerRoundRobin Scheduler = "round_robin"
	SchedulerRandom     Scheduler = "random"
	SchedulerExhaustive Scheduler = "exhaustive"
)

// Config is the ambient configuration a host program assembles once, at
// startup, and threads through to the gc heap, the concurrency engine, and
// the value representations.
type Config struct {
	// GCInitialThreshold is the allocation-bytes threshold that triggers the
	// first GC cycle (spec.md §4.11: "initially 256 KB").
	GCInitialThreshold uint64
	// GCHardCap aborts the program with a Fault once cumulative heap size
	// exceeds it (spec.md §4.11: "A hard cap (1 GB)").
	GCHardCap uint64
	Mode      ConcurrencyMode
	Scheduler Scheduler
	// SchedulerSeed seeds the Random scheduler deterministically (spec.md
	// §4.12: "seed is deterministic and printed on failure").
	SchedulerSeed int64
	// MaxSchedules and MaxDepth bound the Exhaustive scheduler's search
	// (spec.md §4.12: "up to configurable bounds (max-depth,
	// max-schedules)").
	MaxDepth     int
	MaxSchedules int
}

// Option mutates a Config under construction, following the same
// functional-option shape as the teacher's RunOption/WithSessionID family.
type Option func(*Config)

func WithGCInitialThreshold(bytes uint64) Option {
	return func(c *Config) { c.GCInitialThreshold = bytes }
}

func WithGCHardCap(bytes uint64) Option {
	return func(c *Config) { c.GCHardCap = bytes }
}

func WithConcurrencyMode(m ConcurrencyMode) Option {
	return func(c *Config) { c.Mode = m }
}

func WithScheduler(s Scheduler) Option {
	return func(c *Config) { c.Scheduler = s }
}

func WithSchedulerSeed(seed int64) Option {
	return func(c *Config) { c.SchedulerSeed = seed }
}

func WithExhaustiveBounds(maxDepth, maxSchedules int) Option {
	return func(c *Config) {
		c.MaxDepth = maxDepth
		c.MaxSchedules = maxSchedules
	}
}

// NewConfig applies opts over the phase-1 defaults spec.md states
// explicitly: a 256 KB initial GC threshold, a 1 GB hard cap, production
// concurrency mode, and the sequential test scheduler.
func NewConfig(opts ...Option) Config {
	c := Config{
		GCInitialThreshold: 256 * 1024,
		GCHardCap:          1 << 30,
		Mode:               ModeProduction,
		Scheduler:          SchedulerSequential,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
