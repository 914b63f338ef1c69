package grbl

import (
	"io"
	"time"

	"github.com/tarm/serial"

	"github.com/mastercactapus/grblstream/machine"
)

// SerialTransport drives a GRBL controller over a local serial port. The
// port opens with a near-zero read timeout so Recv never blocks the poll
// loop.
type SerialTransport struct {
	name string
	baud int

	port *serial.Port
	buf  []byte
}

var _ machine.Transport = (*SerialTransport)(nil)

// NewSerialTransport prepares a transport for the named port. A baud of
// 0 selects 115200, the GRBL default.
func NewSerialTransport(name string, baud int) *SerialTransport {
	if baud <= 0 {
		baud = 115200
	}
	return &SerialTransport{name: name, baud: baud, buf: make([]byte, 4096)}
}

func (s *SerialTransport) Connect() error {
	if s.port != nil {
		return nil
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        s.name,
		Baud:        s.baud,
		ReadTimeout: time.Millisecond,
	})
	if err != nil {
		return err
	}
	s.port = port
	return nil
}

func (s *SerialTransport) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *SerialTransport) Connected() bool { return s.port != nil }

func (s *SerialTransport) Send(p []byte) error {
	if s.port == nil {
		return machine.ErrNotConnected
	}
	_, err := s.port.Write(p)
	return err
}

// Recv returns whatever bytes are sitting in the OS buffer, or nil when
// there are none.
func (s *SerialTransport) Recv() ([]byte, error) {
	if s.port == nil {
		return nil, machine.ErrNotConnected
	}
	n, err := s.port.Read(s.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, s.buf[:n])
		return out, nil
	}
	if err == io.EOF {
		// a timed-out read with no data reports EOF on some platforms
		return nil, nil
	}
	return nil, err
}
