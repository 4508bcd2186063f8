package cleanup_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hbomb79/Siphon/internal/cleanup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) cleanup.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, timer)
	return timer
}

// Advance moves time forward and synchronously fires every due timer.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	due := make([]*fakeTimer, 0)
	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired && !timer.at.After(c.now) {
			timer.fired = true
			due = append(due, timer)
		}
	}
	c.mu.Unlock()

	for _, timer := range due {
		timer.f()
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func Test_ScheduleRemoval_RemovesAfterDelay(t *testing.T) {
	dir := fs.NewDir(t, "staging", fs.WithFile("Title.mp3", "audio"))
	clock := newFakeClock()
	scheduler := cleanup.NewScheduler(cleanup.Config{Delay: 300 * time.Second}, clock)

	path := dir.Join("Title.mp3")
	scheduler.ScheduleRemoval(path, scheduler.Delay(), nil)
	assert.Equal(t, 1, scheduler.Pending())

	clock.Advance(299 * time.Second)
	assert.True(t, exists(path), "file must survive until the delay has elapsed")

	clock.Advance(time.Second)
	assert.False(t, exists(path))
	assert.Equal(t, 0, scheduler.Pending())
}

func Test_ScheduleRemoval_ToleratesMissingFile(t *testing.T) {
	dir := fs.NewDir(t, "staging")
	clock := newFakeClock()
	scheduler := cleanup.NewScheduler(cleanup.Config{}, clock)

	scheduler.ScheduleRemoval(dir.Join("never-existed.mp4"), time.Second, nil)
	assert.NotPanics(t, func() { clock.Advance(time.Second) })
	assert.Equal(t, 0, scheduler.Pending())
}

func Test_ScheduleRemoval_ReschedulingReplaces(t *testing.T) {
	dir := fs.NewDir(t, "staging", fs.WithFile("Title.mp4", "video"))
	clock := newFakeClock()
	scheduler := cleanup.NewScheduler(cleanup.Config{}, clock)
	path := dir.Join("Title.mp4")

	scheduler.ScheduleRemoval(path, 10*time.Second, nil)
	clock.Advance(5 * time.Second)
	scheduler.ScheduleRemoval(path, 10*time.Second, nil)
	assert.Equal(t, 1, scheduler.Pending())

	clock.Advance(5 * time.Second)
	assert.True(t, exists(path), "first timer was replaced and must not fire")

	clock.Advance(5 * time.Second)
	assert.False(t, exists(path))
}

func Test_ScheduleRemoval_NotifiesOnlyLatestOwner(t *testing.T) {
	dir := fs.NewDir(t, "staging", fs.WithFile("Title.mp4", "video"))
	clock := newFakeClock()
	scheduler := cleanup.NewScheduler(cleanup.Config{}, clock)
	path := dir.Join("Title.mp4")

	var replaced, latest int
	scheduler.ScheduleRemoval(path, 10*time.Second, func() { replaced++ })
	scheduler.ScheduleRemoval(path, 10*time.Second, func() { latest++ })

	clock.Advance(9 * time.Second)
	assert.Zero(t, latest, "callback must not run before the file is removed")

	clock.Advance(time.Second)
	assert.False(t, exists(path))
	assert.Equal(t, 1, latest)
	assert.Zero(t, replaced, "replaced removals are never reported")
}

func Test_Sweep_RemovesOnlyStaleRegularFiles(t *testing.T) {
	now := time.Now()
	dir := fs.NewDir(t, "staging",
		fs.WithFile("stale.mp4", "old", fs.WithTimestamps(now.Add(-25*time.Hour), now.Add(-25*time.Hour))),
		fs.WithFile("fresh.mp4", "new", fs.WithTimestamps(now.Add(-time.Hour), now.Add(-time.Hour))),
		fs.WithDir("nested", fs.WithTimestamps(now.Add(-48*time.Hour), now.Add(-48*time.Hour))),
	)

	removed, err := cleanup.Sweep(dir.Path(), 24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, exists(dir.Join("stale.mp4")))
	assert.True(t, exists(dir.Join("fresh.mp4")))
	assert.True(t, exists(dir.Join("nested")))
}

func Test_Sweep_MissingDirectory(t *testing.T) {
	removed, err := cleanup.Sweep("/definitely/not/a/staging/dir", time.Hour, time.Now())
	assert.NoError(t, err)
	assert.Zero(t, removed)
}

func Test_Run_SweepsAndFlushesOnShutdown(t *testing.T) {
	now := time.Now()
	dir := fs.NewDir(t, "staging",
		fs.WithFile("stale.mp4", "old", fs.WithTimestamps(now.Add(-48*time.Hour), now.Add(-48*time.Hour))),
		fs.WithFile("handed-off.mp3", "audio"),
	)
	scheduler := cleanup.NewScheduler(cleanup.Config{Dir: dir.Path(), Delay: time.Hour, SweepMaxAge: 24 * time.Hour}, nil)

	hookCalls := 0
	var hookMu sync.Mutex
	scheduler.OnSweep(func() {
		hookMu.Lock()
		defer hookMu.Unlock()
		hookCalls++
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return !exists(dir.Join("stale.mp4")) }, time.Second, 10*time.Millisecond)

	scheduler.ScheduleRemoval(dir.Join("handed-off.mp3"), scheduler.Delay(), nil)
	cancel()
	require.NoError(t, <-done)

	assert.False(t, exists(dir.Join("handed-off.mp3")), "pending removals are carried out on shutdown")
	assert.Equal(t, 0, scheduler.Pending())

	hookMu.Lock()
	defer hookMu.Unlock()
	assert.Equal(t, 2, hookCalls, "hooks run on the start and shutdown sweeps")
}
