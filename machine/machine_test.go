package machine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeController struct {
	h     Handlers
	calls []string

	lines   []string
	command string
	rt      byte

	connected    bool
	disconnected chan struct{}
}

func newFakeController() *fakeController {
	return &fakeController{disconnected: make(chan struct{})}
}

func (f *fakeController) SetHandlers(h Handlers) { f.h = h }
func (f *fakeController) Connect() error {
	f.calls = append(f.calls, "connect")
	f.connected = true
	return nil
}
func (f *fakeController) Disconnect() error {
	f.calls = append(f.calls, "disconnect")
	f.connected = false
	select {
	case <-f.disconnected:
	default:
		close(f.disconnected)
	}
	return nil
}
func (f *fakeController) Connected() bool    { return f.connected }
func (f *fakeController) Poll() error        { f.calls = append(f.calls, "poll"); return nil }
func (f *fakeController) QueryStatus() error { f.calls = append(f.calls, "status"); return nil }
func (f *fakeController) StartJob(lines []string) error {
	f.calls = append(f.calls, "start")
	f.lines = lines
	return nil
}
func (f *fakeController) PauseJob() error  { f.calls = append(f.calls, "pause"); return nil }
func (f *fakeController) ResumeJob() error { f.calls = append(f.calls, "resume"); return nil }
func (f *fakeController) StopJob() error   { f.calls = append(f.calls, "stop"); return nil }
func (f *fakeController) SendCommand(line string) error {
	f.calls = append(f.calls, "command")
	f.command = line
	return nil
}
func (f *fakeController) SendRealtime(b byte) error {
	f.calls = append(f.calls, "realtime")
	f.rt = b
	return nil
}
func (f *fakeController) State() State {
	return State{Status: StatusIdle, StatusText: "Idle"}
}
func (f *fakeController) Progress() Progress {
	return Progress{State: JobStreaming, Sent: 2, Total: 4}
}
func (f *fakeController) Settings() map[int]float64   { return map[int]float64{110: 1000} }
func (f *fakeController) Firmware() Firmware          { return Firmware{Type: FirmwareGrbl, Version: "1.1h"} }
func (f *fakeController) DecodeError(code int) string { return "error text" }
func (f *fakeController) DecodeAlarm(code int) string { return "alarm text" }

// quiet keeps the tickers from firing during a test.
func quiet() Config { return Config{PollInterval: time.Hour, StatusInterval: time.Hour} }

func TestMachine_Proxies(t *testing.T) {
	c := newFakeController()
	m := New(c, quiet())
	defer m.Close()

	assert.NoError(t, m.StartJob([]string{"G0 X1"}))
	assert.Equal(t, []string{"G0 X1"}, c.lines)
	assert.NoError(t, m.PauseJob())
	assert.NoError(t, m.ResumeJob())
	assert.NoError(t, m.StopJob())
	assert.NoError(t, m.SendCommand("$X"))
	assert.Equal(t, "$X", c.command)
	assert.NoError(t, m.Realtime('?'))
	assert.Equal(t, byte('?'), c.rt)

	assert.Equal(t, StatusIdle, m.State().Status)
	assert.Equal(t, 2, m.Progress().Sent)
	assert.Equal(t, map[int]float64{110: 1000}, m.Settings())
	assert.Equal(t, FirmwareGrbl, m.Firmware().Type)
	assert.Equal(t, "error text", m.DecodeError(1))
	assert.Equal(t, "alarm text", m.DecodeAlarm(1))
	assert.False(t, m.Connected())

	assert.Equal(t, []string{"start", "pause", "resume", "stop", "command", "realtime"}, c.calls)
}

func TestMachine_LatestState(t *testing.T) {
	c := newFakeController()
	m := New(c, quiet())
	defer m.Close()

	assert.NotNil(t, c.h.State)

	// two updates before anyone reads: only the newest survives
	c.h.State(State{Status: StatusRun, StatusText: "Run"})
	c.h.State(State{Status: StatusIdle, StatusText: "Idle"})

	select {
	case s := <-m.StateChanges():
		assert.Equal(t, StatusIdle, s.Status)
	default:
		t.Fatal("expected a state on the channel")
	}
	select {
	case <-m.StateChanges():
		t.Fatal("expected a single buffered state")
	default:
	}
}

func TestMachine_LatestProgress(t *testing.T) {
	c := newFakeController()
	m := New(c, quiet())
	defer m.Close()

	c.h.Progress(Progress{State: JobStreaming, Sent: 1, Total: 3})
	c.h.Progress(Progress{State: JobStreaming, Sent: 2, Total: 3})

	select {
	case p := <-m.ProgressChanges():
		assert.Equal(t, 2, p.Sent)
		assert.Equal(t, 3, p.Total)
	default:
		t.Fatal("expected progress on the channel")
	}
}

func TestMachine_Events(t *testing.T) {
	c := newFakeController()
	m := New(c, quiet())
	defer m.Close()

	c.h.Event("hello")
	select {
	case ev := <-m.Events():
		assert.Equal(t, "hello", ev)
	default:
		t.Fatal("expected an event")
	}
}

func TestMachine_Close(t *testing.T) {
	c := newFakeController()
	c.connected = true
	m := New(c, quiet())

	assert.NoError(t, m.Close())
	select {
	case <-c.disconnected:
	case <-time.After(time.Second):
		t.Fatal("controller was not disconnected on close")
	}

	// calls after close return without blocking
	assert.NoError(t, m.StopJob())
	assert.NoError(t, m.Close())
}
