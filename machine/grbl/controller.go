package grbl

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/mastercactapus/grblstream/machine"
)

// ErrJobActive is returned when an operation is refused because a job is
// currently streaming.
var ErrJobActive = errors.New("job already streaming")

// ErrBusy is returned by SendCommand while a previous command is still
// awaiting its acknowledgement.
var ErrBusy = errors.New("awaiting acknowledgement")

// initCommands run after every connect and firmware reset: identify the
// firmware, pull the settings dump, and echo the parser state.
var initCommands = []string{CmdIdentify, CmdSettings, CmdParserState}

// Controller implements machine.Controller for GRBL-family firmware. It
// streams at most one unacknowledged line at a time; the firmware input
// buffer is tiny and realtime bytes must always find room.
//
// All methods must be called from a single goroutine. machine.Machine
// takes care of that.
type Controller struct {
	t machine.Transport
	h machine.Handlers

	framer  Framer
	tracker *Tracker

	errors CodeTable
	alarms CodeTable

	fw       machine.Firmware
	settings map[int]float64

	initPending []string

	pending   []string
	sent      int
	total     int
	streaming bool
	paused    bool
	waiting   bool
	startedAt time.Time
	stoppedAt time.Time
	final     machine.JobState

	lastState machine.State
}

var _ machine.Controller = (*Controller)(nil)

// NewController wires a controller to t with stock override limits.
func NewController(t machine.Transport) *Controller {
	return NewControllerLimits(t, machine.DefaultOverrideLimits)
}

// NewControllerLimits sets the bounds reported override percentages are
// clamped to, for firmware built with non-stock limits.
func NewControllerLimits(t machine.Transport, lim machine.OverrideLimits) *Controller {
	return &Controller{
		t:        t,
		tracker:  NewTracker(lim),
		errors:   GrblErrors,
		alarms:   GrblAlarms,
		settings: make(map[int]float64),
		final:    machine.JobIdle,
		lastState: machine.State{
			Status:    machine.StatusUnknown,
			Overrides: machine.Overrides{Feed: 100, Rapid: 100, Spindle: 100},
		},
	}
}

func (c *Controller) SetHandlers(h machine.Handlers) { c.h = h }

// Connect opens the transport, asks for an immediate status report, and
// starts the identification sequence. Firmware detection starts from
// scratch: the device on the other end may have changed since last time.
func (c *Controller) Connect() error {
	if c.t.Connected() {
		return nil
	}
	if err := c.t.Connect(); err != nil {
		return err
	}
	c.framer.Reset()
	c.tracker.Reset()
	c.fw = machine.Firmware{}
	c.errors = GrblErrors
	c.alarms = GrblAlarms
	c.waiting = false
	if err := c.SendRealtime(StatusQuery); err != nil {
		log.Println("ERROR: status query:", err)
	}
	c.beginInit()
	return nil
}

// Disconnect drops the link. A streaming job is aborted; its final
// progress survives for inspection.
func (c *Controller) Disconnect() error {
	if c.streaming {
		c.abortJob()
	}
	c.initPending = nil
	c.waiting = false
	if !c.t.Connected() {
		return nil
	}
	return c.t.Close()
}

func (c *Controller) Connected() bool { return c.t.Connected() }

// Poll drains the transport and applies every complete line in arrival
// order. A status report and the acknowledgement behind it in the same
// read both land in the same tick.
func (c *Controller) Poll() error {
	if !c.t.Connected() {
		return machine.ErrNotConnected
	}
	for {
		p, err := c.t.Recv()
		if err != nil {
			return err
		}
		if len(p) == 0 {
			return nil
		}
		for _, line := range c.framer.Push(p) {
			c.handleLine(line)
		}
	}
}

// QueryStatus asks for a status report. '?' is realtime, so reports keep
// flowing through holds and running jobs.
func (c *Controller) QueryStatus() error {
	return c.SendRealtime(StatusQuery)
}

func (c *Controller) handleLine(line string) {
	ev := Classify(line)

	switch e := ev.(type) {
	case Ack:
		c.onAck()
	case FirmwareError:
		log.Println("ERROR: firmware:", e.Raw, "-", c.errors.Decode(e.Code))
		c.onAck()
	case *StatusReport:
		c.applyStatus(e)
	case Banner:
		c.onBanner(e)
	case Setting:
		c.settings[e.Number] = e.Value
	}

	if c.h.Event != nil {
		c.h.Event(ev)
	}
}

// onAck consumes one acknowledgement. A stray ack with nothing in flight
// is dropped: a noisy link must not corrupt the queue accounting.
func (c *Controller) onAck() {
	if !c.waiting {
		return
	}
	c.waiting = false

	if len(c.initPending) > 0 {
		c.advanceInit()
		return
	}
	if !c.streaming || c.paused {
		return
	}
	c.advance()
}

func (c *Controller) applyStatus(r *StatusReport) {
	s := c.tracker.Observe(r)
	if s.Equal(c.lastState) {
		return
	}
	c.lastState = s
	if c.h.State != nil {
		c.h.State(s)
	}
}

// onBanner records firmware identity the first time it is seen. The
// unprompted greeting form means the firmware just reset: whatever was
// in flight is gone, so a streaming job is aborted and the
// identification sequence starts over.
func (c *Controller) onBanner(b Banner) {
	if c.fw.Type == "" {
		c.fw = machine.Firmware{Type: b.Type, Version: b.Version}
		if b.Type == machine.FirmwareGrblHAL {
			c.errors = GrblHALErrors
			c.alarms = GrblHALAlarms
		}
	}
	if !b.Greeting {
		return
	}
	c.tracker.Reset()
	c.waiting = false
	if c.streaming {
		log.Println("ERROR: firmware reset mid-job, aborting stream")
		c.abortJob()
	}
	c.beginInit()
}

func (c *Controller) beginInit() {
	c.initPending = append([]string(nil), initCommands...)
	c.advanceInit()
}

func (c *Controller) advanceInit() {
	if len(c.initPending) == 0 {
		return
	}
	line := c.initPending[0]
	c.initPending = c.initPending[1:]
	if err := c.sendLine(line); err != nil {
		log.Println("ERROR: send:", err)
		c.initPending = nil
	}
}

// sendLine writes one queued line. waiting flips only after a successful
// write, so a failed send leaves the flow-control state untouched.
func (c *Controller) sendLine(line string) error {
	if err := c.t.Send(append([]byte(line), '\n')); err != nil {
		return err
	}
	c.waiting = true
	return nil
}

// advance sends the next queued line, or completes the job once the
// queue drains. The line is popped only after its send succeeds, so a
// write failure leaves it queued for the resume recovery path.
func (c *Controller) advance() {
	if len(c.pending) == 0 {
		c.complete()
		return
	}
	if err := c.sendLine(c.pending[0]); err != nil {
		log.Println("ERROR: send:", err)
		return
	}
	c.pending = c.pending[1:]
	c.sent++
	c.notifyProgress()
}

func (c *Controller) complete() {
	c.streaming = false
	c.paused = false
	c.stoppedAt = time.Now()
	c.final = machine.JobCompleted
	c.notifyProgress()
}

func (c *Controller) abortJob() {
	c.pending = nil
	c.streaming = false
	c.paused = false
	c.waiting = false
	c.stoppedAt = time.Now()
	c.final = machine.JobAborted
	c.notifyProgress()
}

// StartJob begins streaming lines under single-in-flight flow control.
// If an identification command is still awaiting its ack, the first line
// goes out when that ack lands.
func (c *Controller) StartJob(lines []string) error {
	if c.streaming {
		return ErrJobActive
	}
	if !c.t.Connected() {
		return machine.ErrNotConnected
	}
	if len(lines) == 0 {
		return errors.New("empty job")
	}
	c.pending = append([]string(nil), lines...)
	c.sent = 0
	c.total = len(lines)
	c.streaming = true
	c.paused = false
	c.startedAt = time.Now()
	c.stoppedAt = time.Time{}
	c.final = machine.JobIdle
	c.notifyProgress()
	if !c.waiting {
		c.advance()
	}
	return nil
}

// PauseJob issues a feed hold. The firmware decelerates and holds; the
// queue and any in-flight command are left untouched.
func (c *Controller) PauseJob() error {
	if err := c.SendRealtime(FeedHold); err != nil {
		return err
	}
	c.paused = true
	c.notifyProgress()
	return nil
}

// ResumeJob releases a feed hold. If the stream had stalled with nothing
// in flight, the next line goes out proactively; this is the manual
// recovery path for an acknowledgement lost to a flaky link.
func (c *Controller) ResumeJob() error {
	if err := c.SendRealtime(CycleResume); err != nil {
		return err
	}
	c.paused = false
	if c.streaming && !c.waiting && len(c.pending) > 0 {
		c.advance()
	}
	c.notifyProgress()
	return nil
}

// StopJob soft-resets the firmware and clears the whole session: queue,
// hold flag, flow control, timestamps. Valid from any state and
// idempotent. Local state clears even if the reset byte cannot be
// written, so a dead link never leaves a phantom job behind; the write
// error is still returned.
func (c *Controller) StopJob() error {
	err := c.SendRealtime(SoftReset)
	c.pending = nil
	c.sent = 0
	c.total = 0
	c.streaming = false
	c.paused = false
	c.waiting = false
	c.initPending = nil
	c.startedAt = time.Time{}
	c.stoppedAt = time.Time{}
	c.final = machine.JobIdle
	c.notifyProgress()
	return err
}

// SendCommand queues one manual console line. Refused while a job is
// streaming or another command is awaiting its acknowledgement.
func (c *Controller) SendCommand(line string) error {
	if c.streaming {
		return ErrJobActive
	}
	if c.waiting {
		return ErrBusy
	}
	if !c.t.Connected() {
		return machine.ErrNotConnected
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return errors.New("empty command")
	}
	return c.sendLine(line)
}

// SendRealtime writes a single realtime byte, bypassing the queue.
func (c *Controller) SendRealtime(b byte) error {
	if !c.t.Connected() {
		return machine.ErrNotConnected
	}
	return c.t.Send([]byte{b})
}

func (c *Controller) State() machine.State { return c.lastState }

// Progress reports the streaming session. The remaining estimate is a
// linear extrapolation: pending lines times the average time per sent
// line so far.
func (c *Controller) Progress() machine.Progress {
	p := machine.Progress{State: c.final, Sent: c.sent, Total: c.total}
	if c.streaming {
		p.State = machine.JobStreaming
		if c.paused {
			p.State = machine.JobPaused
		}
		p.Elapsed = time.Since(c.startedAt)
	} else if !c.stoppedAt.IsZero() {
		p.Elapsed = c.stoppedAt.Sub(c.startedAt)
	}
	if c.streaming && p.Sent > 0 {
		p.Remaining = time.Duration(len(c.pending)) * (p.Elapsed / time.Duration(p.Sent))
	}
	return p
}

// Settings returns a copy of the `$N=V` values captured this session.
func (c *Controller) Settings() map[int]float64 {
	m := make(map[int]float64, len(c.settings))
	for k, v := range c.settings {
		m[k] = v
	}
	return m
}

func (c *Controller) Firmware() machine.Firmware {
	if c.fw.Type == "" {
		return machine.Firmware{Type: machine.FirmwareUnknown}
	}
	return c.fw
}

func (c *Controller) DecodeError(code int) string { return c.errors.Decode(code) }
func (c *Controller) DecodeAlarm(code int) string { return c.alarms.Decode(code) }

func (c *Controller) notifyProgress() {
	if c.h.Progress != nil {
		c.h.Progress(c.Progress())
	}
}
