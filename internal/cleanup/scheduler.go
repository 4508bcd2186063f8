// Package cleanup owns temporary artifacts once they have been handed off:
// it removes them after a delay, and periodically sweeps the staging
// directory for anything that was left behind.
package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hbomb79/Siphon/pkg/logger"
	tsync "github.com/hbomb79/Siphon/pkg/sync"
)

var log = logger.Get("Cleanup")

type Config struct {
	// Dir is the staging directory swept for stale artifacts.
	Dir string

	// Delay is how long a handed-off artifact survives before removal.
	Delay time.Duration

	// SweepMaxAge is the age beyond which a file in Dir is considered
	// abandoned.
	SweepMaxAge time.Duration

	// SweepInterval controls the periodic sweep while running. Zero
	// disables the periodic sweep (start and shutdown sweeps still run).
	SweepInterval time.Duration
}

type removal struct {
	mu        sync.Mutex
	timer     Timer
	onRemoved func()
}

// complete removes the file and, once it is gone, notifies the owner.
func (r *removal) complete(path string) {
	if removeFile(path) && r.onRemoved != nil {
		r.onRemoved()
	}
}

func (r *removal) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
}

// Scheduler removes files after a delay. Removal is fire-and-forget:
// failures are logged, never reported to the caller.
type Scheduler struct {
	config  Config
	clock   Clock
	pending tsync.TypedSyncMap[string, *removal]

	hooksMu sync.Mutex
	hooks   []func()
}

func NewScheduler(config Config, clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock
	}

	return &Scheduler{config: config, clock: clock}
}

// Delay returns the configured delay for handed-off artifacts.
func (scheduler *Scheduler) Delay() time.Duration { return scheduler.config.Delay }

// ScheduleRemoval removes path once delay has elapsed, then calls onRemoved
// (if non-nil). Scheduling a path which already has a pending removal
// replaces the earlier one; the replaced callback is never called.
func (scheduler *Scheduler) ScheduleRemoval(path string, delay time.Duration, onRemoved func()) {
	entry := &removal{onRemoved: onRemoved}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if previous, ok := scheduler.pending.Swap(path, entry); ok {
		previous.stop()
		log.Emit(logger.DEBUG, "Rescheduled removal of %s\n", path)
	}

	entry.timer = scheduler.clock.AfterFunc(delay, func() {
		if !scheduler.pending.CompareAndDelete(path, entry) {
			return
		}

		entry.complete(path)
	})
}

// Pending returns the number of removals which have not yet fired.
func (scheduler *Scheduler) Pending() int {
	count := 0
	scheduler.pending.Range(func(string, *removal) bool {
		count++
		return true
	})

	return count
}

// OnSweep registers a callback invoked after every sweep. Used to piggyback
// other housekeeping (e.g. pruning idle rate limit buckets) on the same
// schedule.
func (scheduler *Scheduler) OnSweep(hook func()) {
	scheduler.hooksMu.Lock()
	defer scheduler.hooksMu.Unlock()

	scheduler.hooks = append(scheduler.hooks, hook)
}

// Run sweeps the staging directory at start, every SweepInterval, and once
// more when ctx is cancelled. On shutdown any pending removals are carried
// out immediately rather than being abandoned.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	log.Emit(logger.NEW, "Cleanup scheduler started (delay=%s, max age=%s)\n", scheduler.config.Delay, scheduler.config.SweepMaxAge)
	scheduler.sweep()

	var tick <-chan time.Time
	if scheduler.config.SweepInterval > 0 {
		ticker := time.NewTicker(scheduler.config.SweepInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			scheduler.sweep()
		case <-ctx.Done():
			scheduler.flush()
			scheduler.sweep()
			log.Emit(logger.STOP, "Cleanup scheduler stopped\n")
			return nil
		}
	}
}

// flush stops every pending timer and removes its file now.
func (scheduler *Scheduler) flush() {
	scheduler.pending.Range(func(path string, entry *removal) bool {
		if scheduler.pending.CompareAndDelete(path, entry) {
			entry.stop()
			entry.complete(path)
		}
		return true
	})
}

func (scheduler *Scheduler) sweep() {
	if scheduler.config.Dir != "" && scheduler.config.SweepMaxAge > 0 {
		if removed, err := Sweep(scheduler.config.Dir, scheduler.config.SweepMaxAge, scheduler.clock.Now()); err != nil {
			log.Emit(logger.WARNING, "Sweep of %s failed: %v\n", scheduler.config.Dir, err)
		} else if removed > 0 {
			log.Emit(logger.REMOVE, "Swept %d stale file(s) from %s\n", removed, scheduler.config.Dir)
		}
	}

	scheduler.hooksMu.Lock()
	hooks := append([]func(){}, scheduler.hooks...)
	scheduler.hooksMu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// Sweep removes every regular file directly inside dir whose modification
// time is older than maxAge relative to now. A missing directory is not an
// error. Individual removal failures are logged and skipped.
func Sweep(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Emit(logger.WARNING, "Failed to sweep %s: %v\n", path, err)
			continue
		}
		removed++
	}

	return removed, nil
}

// removeFile reports whether path no longer exists.
func removeFile(path string) bool {
	err := os.Remove(path)
	switch {
	case err == nil:
		log.Emit(logger.REMOVE, "Removed %s\n", path)
	case errors.Is(err, os.ErrNotExist):
		log.Emit(logger.DEBUG, "Skipped removal of %s: already gone\n", path)
	default:
		log.Emit(logger.WARNING, "Failed to remove %s: %v\n", path, err)
		return false
	}

	return true
}
