package grbl

import (
	"errors"
	"log"
	"strconv"

	"github.com/mastercactapus/grblstream/machine"
	"github.com/mastercactapus/grblstream/spjs"
)

// SPJSTransport bridges the controller to a serial port hosted by a
// Serial Port JSON Server instance. The websocket client reconnects on
// its own; this layer tracks whether the remote port itself is open and
// turns relayed data frames back into bytes.
type SPJSTransport struct {
	sp   *spjs.Client
	port string
	baud int

	open bool
}

var _ machine.Transport = (*SPJSTransport)(nil)

// NewSPJSTransport targets the named port on sp. A baud of 0 selects
// 115200.
func NewSPJSTransport(sp *spjs.Client, port string, baud int) *SPJSTransport {
	if baud <= 0 {
		baud = 115200
	}
	return &SPJSTransport{sp: sp, port: port, baud: baud}
}

// Connect nudges the remote port toward open: it handles any queued
// port-list broadcasts, then asks for a fresh list. The open command
// itself goes out when a list shows the port closed, so it usually takes
// a couple of attempts before Connected flips.
func (t *SPJSTransport) Connect() error {
	if !t.sp.Connected() {
		return errors.New("spjs not connected")
	}
	t.drain()
	if !t.open {
		t.sp.WriteString("list")
		return errors.New("port not open: " + t.port)
	}
	return nil
}

// Close asks the server to close the port. The websocket stays up for
// the next session.
func (t *SPJSTransport) Close() error {
	if t.open {
		t.sp.WriteString("close " + t.port)
		t.open = false
	}
	return nil
}

func (t *SPJSTransport) Connected() bool {
	return t.sp.Connected() && t.open
}

// Send relays bytes to the port. Whole lines ride the server's queued
// `send`; a bare realtime byte uses `sendnobuf` so it skips the server
// buffer the same way it skips the firmware's.
func (t *SPJSTransport) Send(p []byte) error {
	if !t.Connected() {
		return machine.ErrNotConnected
	}
	if len(p) == 1 && p[0] != '\n' {
		t.sp.WriteString("sendnobuf " + t.port + " " + string(p))
		return nil
	}
	t.sp.WriteString("send " + t.port + " " + string(p))
	return nil
}

// Recv returns the next relayed data frame as bytes, nil when no frame
// is waiting. Frame boundaries are line boundaries on the server side,
// so a missing terminator is restored.
func (t *SPJSTransport) Recv() ([]byte, error) {
	for {
		select {
		case msg := <-t.sp.Messages():
			switch m := msg.(type) {
			case *spjs.DataFrame:
				if m.Port != t.port {
					continue
				}
				data := []byte(m.Data)
				if len(data) == 0 || data[len(data)-1] != '\n' {
					data = append(data, '\n')
				}
				return data, nil
			case *spjs.SerialPortList:
				t.handlePortList(m)
			case *spjs.ErrorMessage:
				log.Println("ERROR: spjs:", m.Error)
			}
		default:
			return nil, nil
		}
	}
}

// drain consumes any queued server messages while the port is down so
// port-list updates are not stuck behind stale frames.
func (t *SPJSTransport) drain() {
	for {
		select {
		case msg := <-t.sp.Messages():
			if l, ok := msg.(*spjs.SerialPortList); ok {
				t.handlePortList(l)
			}
		default:
			return
		}
	}
}

func (t *SPJSTransport) handlePortList(l *spjs.SerialPortList) {
	for _, p := range l.SerialPorts {
		if p.Name != t.port {
			continue
		}
		t.open = p.IsOpen
		if !p.IsOpen {
			t.sp.WriteString("open " + t.port + " grbl " + strconv.Itoa(t.baud))
		}
	}
}
