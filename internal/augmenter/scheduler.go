package augmenter

import "time"

// Scheduler runs f after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// TimerScheduler uses time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Immediate runs f synchronously, ignoring the delay. Server-side rendering
// uses it so the page is complete when Render returns.
type Immediate struct{}

func (Immediate) AfterFunc(_ time.Duration, f func()) { f() }
