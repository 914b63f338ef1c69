package machine

// Handlers receive controller callbacks. Callbacks fire on whichever
// goroutine drives Poll; handlers must not block.
type Handlers struct {
	// Event fires once per classified protocol line.
	Event func(ev interface{})
	// State fires when the resolved machine state changes.
	State func(s State)
	// Progress fires when streaming job progress changes.
	Progress func(p Progress)
}

// A Controller drives CNC firmware over a Transport. Implementations hold
// no goroutines of their own: the host calls Poll and QueryStatus on a
// fixed cadence and must not call any method concurrently.
type Controller interface {
	SetHandlers(Handlers)

	Connect() error
	Disconnect() error
	Connected() bool

	// Poll drains the transport and applies every complete line.
	Poll() error
	// QueryStatus requests a status report out-of-band.
	QueryStatus() error

	StartJob(lines []string) error
	PauseJob() error
	ResumeJob() error
	StopJob() error

	// SendCommand sends one line while no job is streaming.
	SendCommand(line string) error
	// SendRealtime writes a single realtime byte, bypassing the queue.
	SendRealtime(b byte) error

	State() State
	Progress() Progress
	Settings() map[int]float64
	Firmware() Firmware

	DecodeError(code int) string
	DecodeAlarm(code int) string
}
