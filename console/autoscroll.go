package console

import "sync"

// FollowThresholdPx is how close to the bottom the viewport must be for
// tail-following to engage. The slack absorbs sub-pixel scroll jitter.
const FollowThresholdPx = 10

// Autoscroll decides whether the viewport tracks the newest line. It
// owns no rendering; the caller supplies the scroll action and an
// optional scheduler that defers it to the next paint.
type Autoscroll struct {
	mu       sync.Mutex
	follow   bool
	scroll   func()
	schedule func(func())
}

// NewAutoscroll constructs a controller that starts following the tail.
// scroll moves the viewport to its maximum scroll position. schedule
// defers the forced scroll after content appends; nil runs it inline.
func NewAutoscroll(scroll func(), schedule func(func())) *Autoscroll {
	if schedule == nil {
		schedule = func(fn func()) { fn() }
	}
	return &Autoscroll{
		follow:   true,
		scroll:   scroll,
		schedule: schedule,
	}
}

// FollowTail reports whether the viewport is tracking the newest line.
func (a *Autoscroll) FollowTail() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.follow
}

// OnViewportScroll updates the follow state from a scroll event. The
// state only flips on a boundary crossing, so jitter near the threshold
// does not flicker.
func (a *Autoscroll) OnViewportScroll(scrollTop, scrollHeight, clientHeight int) {
	atBottom := scrollTop+clientHeight >= scrollHeight-FollowThresholdPx
	a.mu.Lock()
	defer a.mu.Unlock()
	if atBottom && !a.follow {
		a.follow = true
	} else if !atBottom && a.follow {
		a.follow = false
	}
}

// OnContentAppended schedules a forced scroll to the bottom while
// following. A user who scrolled up is left alone.
func (a *Autoscroll) OnContentAppended() {
	a.mu.Lock()
	follow := a.follow
	a.mu.Unlock()
	if !follow {
		return
	}
	a.schedule(a.scrollToBottom)
}

// ScrollToBottom re-engages tail following and scrolls immediately.
func (a *Autoscroll) ScrollToBottom() {
	a.mu.Lock()
	a.follow = true
	a.mu.Unlock()
	a.scrollToBottom()
}

func (a *Autoscroll) scrollToBottom() {
	if a.scroll != nil {
		a.scroll()
	}
}
