package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/mss/internal/platform"
)

// DefaultFadeInterval is the animation step, roughly one frame at 60 Hz.
const DefaultFadeInterval = 16 * time.Millisecond

type fade struct {
	from     float32
	to       float32
	start    time.Time
	duration time.Duration
}

// value returns the opacity at now and whether the fade has finished.
func (f fade) value(now time.Time) (float32, bool) {
	elapsed := now.Sub(f.start)
	if elapsed >= f.duration {
		return f.to, true
	}
	t := float32(elapsed) / float32(f.duration)
	return f.from + (f.to-f.from)*t, false
}

// Fader animates window opacity. At most one fade runs per window; starting
// a new one replaces the fade in flight.
type Fader struct {
	backend  platform.Backend
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	fades map[platform.WindowID]fade
	wake  chan struct{}
}

// NewFader returns a fader stepping every interval. Run drives it.
func NewFader(backend platform.Backend, interval time.Duration, logger *slog.Logger) *Fader {
	if interval <= 0 {
		interval = DefaultFadeInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fader{
		backend:  backend,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		fades:    make(map[platform.WindowID]fade),
		wake:     make(chan struct{}, 1),
	}
}

// Start fades wid from its current opacity to target over duration. A
// non-positive duration sets the target immediately.
func (f *Fader) Start(wid platform.WindowID, target float32, duration time.Duration) error {
	if duration <= 0 {
		return f.Set(wid, target)
	}

	f.mu.Lock()
	from, err := f.backend.WindowOpacity(wid)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.fades[wid] = fade{from: from, to: target, start: f.now(), duration: duration}
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
	return nil
}

// Set drops any fade on wid and applies opacity. Opacity writes for a window
// are serialized with fade steps, so a step in flight cannot land after it.
func (f *Fader) Set(wid platform.WindowID, opacity float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fades, wid)
	return f.backend.SetWindowOpacity(wid, opacity)
}

// Active returns the number of fades in flight.
func (f *Fader) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fades)
}

// Run steps fades until ctx is done. It sleeps while nothing is fading.
func (f *Fader) Run(ctx context.Context) {
	for {
		if f.Active() == 0 {
			select {
			case <-ctx.Done():
				return
			case <-f.wake:
			}
		}

		ticker := time.NewTicker(f.interval)
		for f.Active() > 0 {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				f.step(f.now())
			}
		}
		ticker.Stop()
	}
}

// step applies every fade's value at now and retires finished fades. The
// table lock is held across the backend writes.
func (f *Fader) step(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for wid, fd := range f.fades {
		v, done := fd.value(now)
		if done {
			delete(f.fades, wid)
		}
		if err := f.backend.SetWindowOpacity(wid, v); err != nil {
			f.logger.Debug("fade step failed, dropping fade", "window", wid, "error", err)
			delete(f.fades, wid)
		}
	}
}
