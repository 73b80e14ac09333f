package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidWindow = errors.New("invalid reminder window")

// Window is the range of lead times eligible for reminder dispatch:
// [Lead-Early, Lead+Late] measured forward from "now".
type Window struct {
	Lead  time.Duration // target advance notice
	Early time.Duration // tolerance below Lead
	Late  time.Duration // tolerance above Lead
}

// NewWindow returns a window centered on lead with a symmetric tolerance.
func NewWindow(lead, tolerance time.Duration) Window {
	return Window{Lead: lead, Early: tolerance, Late: tolerance}
}

// Validate checks that bounds are non-negative and never reach into the past.
func (w Window) Validate() error {
	if w.Lead <= 0 {
		return fmt.Errorf("%w: lead must be positive", ErrInvalidWindow)
	}
	if w.Early < 0 || w.Late < 0 {
		return fmt.Errorf("%w: negative tolerance", ErrInvalidWindow)
	}
	if w.Early > w.Lead {
		return fmt.Errorf("%w: early tolerance %s exceeds lead %s", ErrInvalidWindow, w.Early, w.Lead)
	}
	return nil
}

// Bounds returns the absolute window for an invocation at now.
func (w Window) Bounds(now time.Time) (from, to time.Time) {
	return now.Add(w.Lead - w.Early), now.Add(w.Lead + w.Late)
}

// Accepts reports whether start is still within tolerance of the target lead
// time when measured at now. Both ends are inclusive.
func (w Window) Accepts(now, start time.Time) bool {
	lead := start.Sub(now)
	return lead >= w.Lead-w.Early && lead <= w.Lead+w.Late
}

// Covers reports whether invocations every period are guaranteed to see each
// block at least once. The window must be strictly wider than the period so a
// late tick still overlaps the previous one.
func (w Window) Covers(period time.Duration) bool {
	return w.Early+w.Late > period
}

func (w Window) String() string {
	return fmt.Sprintf("[%s..%s]", w.Lead-w.Early, w.Lead+w.Late)
}
