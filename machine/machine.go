package machine

import (
	"log"
	"sync"
	"time"
)

// Machine owns a Controller and drives it from a single goroutine: poll
// and status-query ticks, reconnect attempts, and every external call all
// execute on that goroutine. Results fan out over channels.
type Machine struct {
	c Controller

	pollInterval   time.Duration
	statusInterval time.Duration

	do       chan func()
	events   chan interface{}
	state    chan State
	progress chan Progress

	closeOnce sync.Once
	closeCh   chan struct{}
}

type Config struct {
	PollInterval   time.Duration // default 50ms
	StatusInterval time.Duration // default 200ms
}

func New(c Controller, cfg Config) *Machine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 200 * time.Millisecond
	}
	m := &Machine{
		c:              c,
		pollInterval:   cfg.PollInterval,
		statusInterval: cfg.StatusInterval,
		do:             make(chan func()),
		events:         make(chan interface{}, 128),
		state:          make(chan State, 1),
		progress:       make(chan Progress, 1),
		closeCh:        make(chan struct{}),
	}
	c.SetHandlers(Handlers{
		Event:    m.pushEvent,
		State:    m.pushState,
		Progress: m.pushProgress,
	})
	go m.loop()

	return m
}

// Events delivers every classified line. Slow consumers miss entries.
func (m *Machine) Events() <-chan interface{} { return m.events }

// StateChanges always holds the most recent resolved state.
func (m *Machine) StateChanges() <-chan State { return m.state }

// ProgressChanges always holds the most recent job progress.
func (m *Machine) ProgressChanges() <-chan Progress { return m.progress }

func (m *Machine) pushEvent(ev interface{}) {
	select {
	case m.events <- ev:
	default:
	}
}

func (m *Machine) pushState(s State) {
	select {
	case <-m.state:
	default:
	}
	select {
	case m.state <- s:
	default:
	}
}

func (m *Machine) pushProgress(p Progress) {
	select {
	case <-m.progress:
	default:
	}
	select {
	case m.progress <- p:
	default:
	}
}

func (m *Machine) loop() {
	poll := time.NewTicker(m.pollInterval)
	defer poll.Stop()
	status := time.NewTicker(m.statusInterval)
	defer status.Stop()

	var lastConnect time.Time
	for {
		select {
		case <-m.closeCh:
			m.c.Disconnect()
			return
		case f := <-m.do:
			f()
		case <-poll.C:
			if !m.c.Connected() {
				if time.Since(lastConnect) < 3*time.Second {
					continue
				}
				lastConnect = time.Now()
				if err := m.c.Connect(); err != nil {
					log.Println("ERROR: connect:", err)
				}
				continue
			}
			if err := m.c.Poll(); err != nil {
				log.Println("ERROR: poll:", err)
				m.c.Disconnect()
			}
		case <-status.C:
			if !m.c.Connected() {
				continue
			}
			if err := m.c.QueryStatus(); err != nil {
				log.Println("ERROR: status query:", err)
			}
		}
	}
}

// run executes f on the polling goroutine and waits for it.
func (m *Machine) run(f func()) {
	done := make(chan struct{})
	select {
	case m.do <- func() { f(); close(done) }:
		<-done
	case <-m.closeCh:
	}
}

func (m *Machine) Close() error {
	m.closeOnce.Do(func() { close(m.closeCh) })
	return nil
}

func (m *Machine) Connected() bool {
	var ok bool
	m.run(func() { ok = m.c.Connected() })
	return ok
}

func (m *Machine) State() State {
	var s State
	m.run(func() { s = m.c.State() })
	return s
}

func (m *Machine) Progress() Progress {
	var p Progress
	m.run(func() { p = m.c.Progress() })
	return p
}

func (m *Machine) Settings() map[int]float64 {
	var s map[int]float64
	m.run(func() { s = m.c.Settings() })
	return s
}

func (m *Machine) Firmware() Firmware {
	var fw Firmware
	m.run(func() { fw = m.c.Firmware() })
	return fw
}

func (m *Machine) StartJob(lines []string) error {
	var err error
	m.run(func() { err = m.c.StartJob(lines) })
	return err
}

func (m *Machine) PauseJob() error {
	var err error
	m.run(func() { err = m.c.PauseJob() })
	return err
}

func (m *Machine) ResumeJob() error {
	var err error
	m.run(func() { err = m.c.ResumeJob() })
	return err
}

func (m *Machine) StopJob() error {
	var err error
	m.run(func() { err = m.c.StopJob() })
	return err
}

func (m *Machine) SendCommand(line string) error {
	var err error
	m.run(func() { err = m.c.SendCommand(line) })
	return err
}

func (m *Machine) Realtime(b byte) error {
	var err error
	m.run(func() { err = m.c.SendRealtime(b) })
	return err
}

func (m *Machine) DecodeError(code int) string {
	var s string
	m.run(func() { s = m.c.DecodeError(code) })
	return s
}

func (m *Machine) DecodeAlarm(code int) string {
	var s string
	m.run(func() { s = m.c.DecodeAlarm(code) })
	return s
}
