package machine

import (
	"fmt"
	"time"
)

// JobState tracks a streaming job's lifecycle.
type JobState string

const (
	JobIdle      JobState = "idle"
	JobStreaming JobState = "streaming"
	JobPaused    JobState = "paused"
	JobCompleted JobState = "completed"
	JobAborted   JobState = "aborted"
)

// Progress is a snapshot of a streaming job.
type Progress struct {
	State JobState

	Sent  int
	Total int

	Elapsed   time.Duration
	Remaining time.Duration
}

// NoEstimate is displayed when no time estimate exists yet.
const NoEstimate = "--:--:--"

// FormatDuration renders d as HH:MM:SS, hours uncapped.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}

func (p Progress) ElapsedString() string {
	switch p.State {
	case JobStreaming, JobPaused, JobCompleted, JobAborted:
		return FormatDuration(p.Elapsed)
	}
	return NoEstimate
}

func (p Progress) RemainingString() string {
	if p.Sent == 0 {
		return NoEstimate
	}
	switch p.State {
	case JobStreaming, JobPaused:
		return FormatDuration(p.Remaining)
	}
	return NoEstimate
}
