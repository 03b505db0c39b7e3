// Package browser provides browser process pool management for efficient
// resource usage. The pool lazily launches browser instances up to a
// concurrency ceiling and reuses them across requests, dramatically
// reducing memory usage compared to spawning a new browser per request.
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thevalentinedev/altreach/internal/config"
	"github.com/thevalentinedev/altreach/internal/types"
)

// acquirePollInterval is how often a waiting Acquire re-checks the pool
// when all records are busy.
const acquirePollInterval = 100 * time.Millisecond

// recordState tracks the lifecycle of a pooled browser process.
type recordState int

const (
	stateIdle recordState = iota
	stateInUse
	stateDead
)

func (s recordState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateInUse:
		return "in_use"
	case stateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// record tracks metadata for one browser process in the pool.
// All fields except useCount are guarded by Pool.mu.
type record struct {
	proc           Process
	state          recordState
	createdAt      time.Time
	lastReleasedAt time.Time
	useCount       atomic.Int64
}

// Pool manages a bounded set of reusable browser processes.
//
// Processes are launched lazily: the pool starts empty and grows on
// demand up to PoolMaxConcurrency. Released processes stay resident so
// later requests skip the expensive launch, and a background reaper
// closes any that sit idle past PoolMaxIdleTime.
//
// There is no FIFO fairness among waiters. Contending acquires poll on
// a short interval and whichever wakes first after a release wins. At
// the expected request rates starvation is not a practical concern.
//
// Lock ordering: mu guards records and creating. Never hold mu while
// performing slow I/O such as launching or closing a browser.
type Pool struct {
	mu       sync.Mutex
	records  []*record
	creating int // launches in flight, reserved against the ceiling

	config *config.Config
	launch launchFunc

	closed atomic.Bool

	// Stop channel for graceful shutdown of the reaper
	stopCh chan struct{}

	// WaitGroup to track background goroutines for clean shutdown
	wg sync.WaitGroup

	// WaitGroup to track async process close goroutines
	closeWg sync.WaitGroup

	// Statistics for monitoring
	stats PoolStats
}

// PoolStats provides statistics about pool usage.
type PoolStats struct {
	Created   atomic.Int64
	Acquired  atomic.Int64
	Released  atomic.Int64
	Reaped    atomic.Int64
	Discarded atomic.Int64
	Timeouts  atomic.Int64
	Errors    atomic.Int64
}

// NewPool creates a new browser pool with the specified configuration.
// No browsers are launched until the first Acquire.
func NewPool(cfg *config.Config) *Pool {
	return newPool(cfg, func(ctx context.Context) (Process, error) {
		return launchChrome(ctx, cfg)
	})
}

func newPool(cfg *config.Config, launch launchFunc) *Pool {
	log.Info().
		Int("max_concurrency", cfg.PoolMaxConcurrency).
		Dur("acquire_timeout", cfg.PoolAcquireTimeout).
		Dur("max_idle", cfg.PoolMaxIdleTime).
		Bool("headless", cfg.Headless).
		Msg("Initializing browser pool")

	p := &Pool{
		records: make([]*record, 0, cfg.PoolMaxConcurrency),
		config:  cfg,
		launch:  launch,
		stopCh:  make(chan struct{}),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reapRoutine()
	}()

	return p
}

// Acquire obtains a browser process from the pool.
//
// It prefers an idle process, launches a new one when under the
// concurrency ceiling, and otherwise polls until a process frees up,
// the acquire timeout elapses (types.ErrPoolTimeout), the context is
// canceled, or the pool closes (types.ErrPoolClosed).
//
// The caller MUST call Release() when done with the process.
// Use defer to ensure the process is always released:
//
//	proc, err := pool.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Release(proc)
func (p *Pool) Acquire(ctx context.Context) (Process, error) {
	if p.closed.Load() {
		return nil, types.ErrPoolClosed
	}

	deadline := time.Now().Add(p.config.PoolAcquireTimeout)

	for {
		proc, err := p.tryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if proc != nil {
			p.stats.Acquired.Add(1)
			log.Debug().
				Int64("total_acquired", p.stats.Acquired.Load()).
				Msg("Browser acquired from pool")
			return proc, nil
		}

		// Pool is at capacity with nothing idle. Wait and retry.
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", types.ErrContextCanceled, ctx.Err())
		case <-p.stopCh:
			return nil, types.ErrPoolClosed
		case <-time.After(acquirePollInterval):
			if time.Now().After(deadline) {
				p.stats.Timeouts.Add(1)
				log.Warn().
					Dur("timeout", p.config.PoolAcquireTimeout).
					Int("size", p.Size()).
					Msg("Timed out waiting for a browser")
				return nil, types.ErrPoolTimeout
			}
		}
	}
}

// tryAcquire makes a single non-blocking attempt. It returns (nil, nil)
// when the pool is full and nothing is idle.
func (p *Pool) tryAcquire(ctx context.Context) (Process, error) {
	// Reuse idle processes first. Claim under the lock, verify
	// liveness outside it: the record is already marked in-use so no
	// other acquirer can take it while we wait on the CDP roundtrip.
	for {
		if p.closed.Load() {
			return nil, types.ErrPoolClosed
		}

		p.mu.Lock()
		var rec *record
		for _, r := range p.records {
			if r.state == stateIdle {
				r.state = stateInUse
				rec = r
				break
			}
		}
		p.mu.Unlock()

		if rec == nil {
			break
		}

		if rec.proc.Alive() {
			rec.useCount.Add(1)
			return rec.proc, nil
		}

		// Dead records are never handed out.
		log.Warn().
			Time("created_at", rec.createdAt).
			Int64("use_count", rec.useCount.Load()).
			Msg("Idle browser no longer responding, discarding")
		p.discard(rec)
	}

	// Nothing idle. Launch a new process if under the ceiling,
	// reserving the slot first so concurrent acquires cannot
	// overshoot while the launch is in flight.
	p.mu.Lock()
	if len(p.records)+p.creating >= p.config.PoolMaxConcurrency {
		p.mu.Unlock()
		return nil, nil
	}
	p.creating++
	p.mu.Unlock()

	proc, err := p.launch(ctx)
	if err != nil {
		p.mu.Lock()
		p.creating--
		p.mu.Unlock()
		p.stats.Errors.Add(1)
		return nil, types.NewPoolAcquireError("browser launch failed", err)
	}

	rec := &record{
		proc:      proc,
		state:     stateInUse,
		createdAt: time.Now(),
	}
	rec.useCount.Add(1)

	p.mu.Lock()
	p.creating--
	if p.closed.Load() {
		p.mu.Unlock()
		if cerr := proc.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Error closing browser launched during shutdown")
		}
		return nil, types.ErrPoolClosed
	}
	p.records = append(p.records, rec)
	p.mu.Unlock()

	p.stats.Created.Add(1)
	log.Info().
		Int64("total_created", p.stats.Created.Load()).
		Int("size", p.Size()).
		Msg("Browser launched and added to pool")
	return proc, nil
}

// Release returns a browser process to the pool.
//
// It is safe to call Release multiple times, with a nil process, or
// with a process the pool no longer tracks: all of these are no-ops.
// Cleanup paths release unconditionally and must never blow up.
func (p *Pool) Release(proc Process) {
	if proc == nil {
		return
	}

	p.mu.Lock()

	if p.closed.Load() {
		p.mu.Unlock()
		// Pool is closed, just close the process.
		if err := proc.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing browser during release (pool closed)")
		}
		return
	}

	for _, rec := range p.records {
		if rec.proc != proc {
			continue
		}
		if rec.state != stateInUse {
			// Double release. The first call already returned it.
			p.mu.Unlock()
			log.Debug().Str("state", rec.state.String()).Msg("Release of a browser that is not in use, ignoring")
			return
		}
		rec.state = stateIdle
		rec.lastReleasedAt = time.Now()
		p.mu.Unlock()

		p.stats.Released.Add(1)
		log.Debug().
			Int64("total_released", p.stats.Released.Load()).
			Msg("Browser released to pool")
		return
	}

	p.mu.Unlock()
	// Unknown handle, e.g. released again after the reaper removed it.
	log.Debug().Msg("Release of unknown browser handle, ignoring")
}

// discard removes a dead record from the pool and closes its process
// in the background.
func (p *Pool) discard(rec *record) {
	p.mu.Lock()
	rec.state = stateDead
	for i, r := range p.records {
		if r == rec {
			last := len(p.records) - 1
			if i != last {
				p.records[i] = p.records[last]
			}
			p.records = p.records[:last]
			break
		}
	}
	p.mu.Unlock()

	p.stats.Discarded.Add(1)
	p.closeProcAsync(rec.proc, "discard")
}

// closeProcAsync closes a process without blocking the caller. The
// goroutine is tracked so Close() can wait for stragglers.
func (p *Pool) closeProcAsync(proc Process, reason string) {
	p.closeWg.Add(1)
	go func() {
		defer p.closeWg.Done()
		if err := proc.Close(); err != nil {
			log.Warn().Err(err).Str("reason", reason).Msg("Error closing browser process")
		}
	}()
}

// reapRoutine periodically removes processes that have sat idle past
// the configured limit.
func (p *Pool) reapRoutine() {
	ticker := time.NewTicker(p.config.PoolReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			log.Debug().Msg("Reaper stopping")
			return
		case <-ticker.C:
			if p.closed.Load() {
				return
			}
			p.reapIdle(time.Now())
		}
	}
}

// reapIdle removes and closes every idle record whose last release is
// older than PoolMaxIdleTime. Split from reapRoutine for testability.
func (p *Pool) reapIdle(now time.Time) {
	var expired []*record

	p.mu.Lock()
	kept := p.records[:0]
	for _, rec := range p.records {
		if rec.state == stateIdle && now.Sub(rec.lastReleasedAt) > p.config.PoolMaxIdleTime {
			rec.state = stateDead
			expired = append(expired, rec)
			continue
		}
		kept = append(kept, rec)
	}
	p.records = kept
	p.mu.Unlock()

	for _, rec := range expired {
		log.Info().
			Dur("idle", now.Sub(rec.lastReleasedAt)).
			Int64("use_count", rec.useCount.Load()).
			Msg("Reaping idle browser")
		p.closeProcAsync(rec.proc, "reap")
	}
	p.stats.Reaped.Add(int64(len(expired)))
}

// Size returns the number of processes currently tracked by the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// InUse returns the number of processes currently handed out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, rec := range p.records {
		if rec.state == stateInUse {
			n++
		}
	}
	return n
}

// Idle returns the number of processes waiting for reuse.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, rec := range p.records {
		if rec.state == stateIdle {
			n++
		}
	}
	return n
}

// PoolStatsSnapshot holds a point-in-time snapshot of pool statistics.
type PoolStatsSnapshot struct {
	Created   int64
	Acquired  int64
	Released  int64
	Reaped    int64
	Discarded int64
	Timeouts  int64
	Errors    int64
}

// Stats returns a snapshot of the current pool statistics.
func (p *Pool) Stats() PoolStatsSnapshot {
	return PoolStatsSnapshot{
		Created:   p.stats.Created.Load(),
		Acquired:  p.stats.Acquired.Load(),
		Released:  p.stats.Released.Load(),
		Reaped:    p.stats.Reaped.Load(),
		Discarded: p.stats.Discarded.Load(),
		Timeouts:  p.stats.Timeouts.Load(),
		Errors:    p.stats.Errors.Load(),
	}
}

// Close shuts down the pool and terminates every tracked process,
// including ones currently handed out. In-flight page operations on
// those processes will fail, which is intentional: shutdown must not
// wait on a stuck navigation.
//
// After Close, Acquire returns types.ErrPoolClosed and Release closes
// the returned process instead of pooling it. Close is safe to call
// multiple times.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil // Already closed
	}

	log.Info().Msg("Closing browser pool")

	// Signal the reaper and any waiting acquires to stop.
	close(p.stopCh)

	// Wait for background goroutines to finish with timeout.
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Debug().Msg("Background goroutines stopped")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("Timeout waiting for background goroutines to stop")
	}

	p.mu.Lock()
	records := make([]*record, len(p.records))
	copy(records, p.records)
	p.records = nil
	p.mu.Unlock()

	// Close all processes in parallel, bounded to avoid a thundering
	// herd of Chrome teardowns.
	eg := new(errgroup.Group)
	eg.SetLimit(4)

	for _, rec := range records {
		proc := rec.proc // Capture for closure
		eg.Go(func() error {
			if err := proc.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing browser during pool shutdown")
				return err
			}
			return nil
		})
	}
	closeErr := eg.Wait()

	// Wait for closes started by discard/reap before declaring done.
	closeWgDone := make(chan struct{})
	go func() {
		p.closeWg.Wait()
		close(closeWgDone)
	}()
	select {
	case <-closeWgDone:
		log.Debug().Msg("Async close goroutines finished")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("Timeout waiting for async close goroutines")
	}

	log.Info().
		Int64("total_created", p.stats.Created.Load()).
		Int64("total_acquired", p.stats.Acquired.Load()).
		Int64("total_released", p.stats.Released.Load()).
		Int64("total_reaped", p.stats.Reaped.Load()).
		Msg("Browser pool closed")

	return closeErr
}
