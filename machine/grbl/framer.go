package grbl

import "bytes"

// Framer splits a raw byte stream into protocol lines. GRBL terminates
// lines with \r\n but bare \n and bare \r both occur in the wild, so any
// run of \r and \n characters ends a line. Bytes after the last
// terminator are held until more input arrives.
type Framer struct {
	buf []byte
}

// Push appends p to the pending buffer and returns all complete lines,
// terminators stripped and empty lines dropped.
func (f *Framer) Push(p []byte) []string {
	f.buf = append(f.buf, p...)

	var lines []string
	for {
		i := bytes.IndexAny(f.buf, "\r\n")
		if i == -1 {
			break
		}
		if i > 0 {
			lines = append(lines, string(f.buf[:i]))
		}
		f.buf = f.buf[i+1:]
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return lines
}

// Pending returns the bytes held back waiting for a terminator.
func (f *Framer) Pending() []byte { return f.buf }

// Reset drops any partial line, for use after a reconnect where the
// stream may resume mid-line.
func (f *Framer) Reset() { f.buf = nil }
