// Package ioruntime is a thread-per-core asynchronous I/O runtime for
// Linux, built on io_uring. A Runtime owns one kernel ring, one
// scheduler and (optionally) one timer wheel, and is pinned to the OS
// thread that built it: spawn and block_on never move a task across
// runtimes.
package ioruntime

import (
	"github.com/behrlich/ioruntime/internal/logging"
	"github.com/behrlich/ioruntime/internal/metrics"
	"github.com/behrlich/ioruntime/internal/sched"
	"github.com/behrlich/ioruntime/internal/timer"
	"github.com/behrlich/ioruntime/internal/uring"
	"github.com/behrlich/ioruntime/ioerr"
)

const (
	minEntries     = 256
	defaultEntries = 1024
)

// BlockingStrategy selects what happens when CPU-bound work needs to
// run without blocking the runtime's single OS thread.
type BlockingStrategy int

const (
	// BlockingPanic rejects blocking work outright; the default, since a
	// silent fallback to inline execution would quietly break the
	// runtime's no-blocking-the-thread invariant.
	BlockingPanic BlockingStrategy = iota
	// BlockingExecuteLocal runs the work inline, accepting the latency
	// hit to every other task sharing this thread.
	BlockingExecuteLocal
	// BlockingAttached offloads to an attached ThreadPool.
	BlockingAttached
)

// ThreadPool accepts CPU-bound work for BlockingAttached, running fn on
// a pool thread and reporting its result through the done callback once
// it completes (so the caller's future can be polled again).
type ThreadPool interface {
	Submit(fn func() any, done func(any))
}

// RingBuilder customizes kernel-level ring configuration (feature
// flags, SQPOLL, fixed buffers/files) beyond the plain entry-count
// Builder exposes directly.
type RingBuilder func(entries uint32) (*uring.Driver, error)

// Builder configures and constructs a Runtime, mirroring the shape of a
// device-params struct: every field has a sensible default, and Build
// is the single validating constructor.
type Builder struct {
	entries uint32

	ringBuilder RingBuilder

	enableTimer bool

	blockingStrategy BlockingStrategy
	threadPool       ThreadPool

	logger   *logging.Logger
	observer metrics.Observer
}

// NewBuilder returns a Builder with spec defaults: 1024 submission
// entries, timers disabled, and blocking work rejected outright.
func NewBuilder() *Builder {
	return &Builder{
		entries:          defaultEntries,
		blockingStrategy: BlockingPanic,
	}
}

// Entries sets the submission-ring capacity, clamped to a minimum of
// 256.
func (b *Builder) Entries(n uint32) *Builder {
	if n < minEntries {
		n = minEntries
	}
	b.entries = n
	return b
}

// WithRingBuilder replaces the kernel-level ring construction, for
// callers that need SQPOLL or another feature the plain entry count
// does not express.
func (b *Builder) WithRingBuilder(rb RingBuilder) *Builder {
	b.ringBuilder = rb
	return b
}

// EnableTimer wraps the driver with a hashed hierarchical timing wheel,
// required for time.Sleep/time.Timeout to function on this runtime.
func (b *Builder) EnableTimer() *Builder {
	b.enableTimer = true
	return b
}

// EnableAll turns on every optional subsystem (currently just the
// timer; future additions land here too).
func (b *Builder) EnableAll() *Builder {
	return b.EnableTimer()
}

// AttachThreadPool configures blocking work to offload to pool.
func (b *Builder) AttachThreadPool(pool ThreadPool) *Builder {
	b.blockingStrategy = BlockingAttached
	b.threadPool = pool
	return b
}

// WithBlockingStrategy sets the strategy directly, e.g. BlockingExecuteLocal
// for callers who accept the latency cost of running inline.
func (b *Builder) WithBlockingStrategy(s BlockingStrategy) *Builder {
	b.blockingStrategy = s
	return b
}

// WithLogger installs a logger every runtime subsystem logs through.
func (b *Builder) WithLogger(log *logging.Logger) *Builder {
	b.logger = log
	return b
}

// WithObserver installs a metrics sink; if unset, Build creates its own
// *metrics.Metrics and an Observer over it, reachable via Runtime.Metrics.
func (b *Builder) WithObserver(obs metrics.Observer) *Builder {
	b.observer = obs
	return b
}

// Build constructs the driver (optionally timer-wrapped) and the
// scheduler. It installs no thread-local runtime context and does not
// lock the calling goroutine to its OS thread: every entry point takes
// the Runtime explicitly. Callers must call Build from the thread the Runtime will live
// on and must not move the resulting Runtime, or anything spawned on
// it, to another thread.
func (b *Builder) Build() (*Runtime, error) {
	entries := b.entries
	if entries < minEntries {
		entries = minEntries
	}

	log := b.logger
	if log == nil {
		log = logging.Default()
	}
	log = log.With("ioruntime")

	// Runtime.Metrics always has a snapshot source. m receives
	// observations only when the caller supplied no Observer; with a
	// caller-supplied Observer, every subsystem reports to that observer
	// and m's counters stay at zero.
	m := metrics.New()
	obs := b.observer
	if obs == nil {
		obs = metrics.NewObserver(m)
	}

	var driver *uring.Driver
	var err error
	if b.ringBuilder != nil {
		driver, err = b.ringBuilder(entries)
	} else {
		driver, err = uring.NewDriver(entries, log, obs)
	}
	if err != nil {
		return nil, ioerr.Wrap("build", ioerr.CodeResourceExhausted, err)
	}

	features, err := driver.Probe()
	if err != nil {
		log.Warn("kernel probe failed, proceeding without feature gating", "error", err)
		features = uring.Features{}
	}

	var parkDriver sched.Driver = driver
	var timerDriver *timer.TimerDriver
	if b.enableTimer {
		timerDriver = timer.NewTimerDriver(driver, timer.NewClock(), timer.NewWheelObserver(obs))
		parkDriver = timerDriver
	}

	scheduler := sched.New(parkDriver, log, obs)

	return &Runtime{
		driver:           driver,
		timerDriver:      timerDriver,
		scheduler:        scheduler,
		log:              log,
		metrics:          m,
		observer:         obs,
		features:         features,
		blockingStrategy: b.blockingStrategy,
		threadPool:       b.threadPool,
	}, nil
}
