package machine

import "github.com/mastercactapus/grblstream/coord"

// Status is the firmware's reported machine state tag.
type Status string

const (
	StatusIdle    Status = "Idle"
	StatusRun     Status = "Run"
	StatusHold    Status = "Hold"
	StatusJog     Status = "Jog"
	StatusHome    Status = "Home"
	StatusAlarm   Status = "Alarm"
	StatusDoor    Status = "Door"
	StatusCheck   Status = "Check"
	StatusSleep   Status = "Sleep"
	StatusUnknown Status = "Unknown"
)

// Overrides are firmware override percentages.
type Overrides struct{ Feed, Rapid, Spindle int }

// OverrideLimits bound the override percentages the firmware will report.
type OverrideLimits struct {
	FeedMin, FeedMax       int
	RapidMin, RapidMax     int
	SpindleMin, SpindleMax int
}

// DefaultOverrideLimits match stock GRBL build options.
var DefaultOverrideLimits = OverrideLimits{
	FeedMin: 0, FeedMax: 200,
	RapidMin: 0, RapidMax: 200,
	SpindleMin: 10, SpindleMax: 200,
}

// Buffer is the firmware's reported free buffer space.
type Buffer struct{ PlannerFree, RxFree int }

// State is the resolved, displayable machine state. Position pointers are
// nil until the firmware has reported enough to know them; WPos in
// particular is nil on any tick where it can neither be read nor derived.
type State struct {
	Status     Status
	StatusText string // raw first status field, sub-codes included

	MPos *coord.Point
	WPos *coord.Point
	WCO  *coord.Point

	Buffer    *Buffer
	Overrides Overrides

	FeedRate     float64
	SpindleSpeed float64
}

func eqPoint(a, b *coord.Point) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s State) Equal(o State) bool {
	if s.Status != o.Status || s.StatusText != o.StatusText {
		return false
	}
	if !eqPoint(s.MPos, o.MPos) || !eqPoint(s.WPos, o.WPos) || !eqPoint(s.WCO, o.WCO) {
		return false
	}
	if (s.Buffer == nil) != (o.Buffer == nil) {
		return false
	}
	if s.Buffer != nil && *s.Buffer != *o.Buffer {
		return false
	}
	return s.Overrides == o.Overrides &&
		s.FeedRate == o.FeedRate && s.SpindleSpeed == o.SpindleSpeed
}
