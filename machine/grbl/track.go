package grbl

import (
	"github.com/mastercactapus/grblstream/coord"
	"github.com/mastercactapus/grblstream/machine"
)

// Tracker folds partial status reports into complete displayable state.
// GRBL omits WCO, override, and buffer fields from most reports to save
// bandwidth, so the last seen value of each is cached and reused. A
// report that merely omits a field never invalidates its cache entry.
type Tracker struct {
	limits machine.OverrideLimits

	wco       *coord.Point
	overrides machine.Overrides
	buffer    *machine.Buffer
	feed      float64
	speed     float64
}

// NewTracker seeds overrides at 100% and clamps future reports to lim.
func NewTracker(lim machine.OverrideLimits) *Tracker {
	return &Tracker{
		limits:    lim,
		overrides: machine.Overrides{Feed: 100, Rapid: 100, Spindle: 100},
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Observe merges r into the cached state and returns the resolved view.
// Work position resolution: a reported WPos wins; otherwise MPos minus
// the cached WCO; otherwise nil for this report. The reverse also holds
// for reports that carry only WPos: MPos is derived when a WCO is known.
func (t *Tracker) Observe(r *StatusReport) machine.State {
	if r.WCO != nil {
		t.wco = r.WCO
	}
	if r.Overrides != nil {
		t.overrides = machine.Overrides{
			Feed:    clamp(r.Overrides.Feed, t.limits.FeedMin, t.limits.FeedMax),
			Rapid:   clamp(r.Overrides.Rapid, t.limits.RapidMin, t.limits.RapidMax),
			Spindle: clamp(r.Overrides.Spindle, t.limits.SpindleMin, t.limits.SpindleMax),
		}
	}
	if r.Buffer != nil {
		t.buffer = r.Buffer
	}
	if r.FeedRate != nil {
		t.feed = *r.FeedRate
	}
	if r.SpindleSpeed != nil {
		t.speed = *r.SpindleSpeed
	}

	s := machine.State{
		Status:       r.State,
		StatusText:   r.StateText,
		MPos:         r.MPos,
		WCO:          t.wco,
		Buffer:       t.buffer,
		Overrides:    t.overrides,
		FeedRate:     t.feed,
		SpindleSpeed: t.speed,
	}
	switch {
	case r.WPos != nil:
		s.WPos = r.WPos
		if r.MPos == nil && t.wco != nil {
			p := r.WPos.Add(*t.wco)
			s.MPos = &p
		}
	case r.MPos != nil && t.wco != nil:
		p := r.MPos.Sub(*t.wco)
		s.WPos = &p
	}
	return s
}

// Reset clears the caches that a firmware reset clears: overrides return
// to 100% and buffer/feed/speed readings are dropped. The WCO cache
// survives because work offsets are persistent in the firmware and still
// apply after a reset or reconnect.
func (t *Tracker) Reset() {
	t.overrides = machine.Overrides{Feed: 100, Rapid: 100, Spindle: 100}
	t.buffer = nil
	t.feed = 0
	t.speed = 0
}
