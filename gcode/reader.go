package gcode

import (
	"bufio"
	"io"
	"strings"
)

// Reader yields cleaned command lines, one per call, io.EOF at the end.
type Reader interface {
	Read() (string, error)
}

type LineReader struct{ br *bufio.Reader }

func NewReader(r io.Reader) *LineReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &LineReader{br: br}
	}

	return &LineReader{br: bufio.NewReader(r)}
}

// Clean strips `;` and parenthesis comments and surrounding whitespace.
func Clean(s string) string {
	s = strings.SplitN(s, ";", 2)[0]
	for {
		i := strings.IndexByte(s, '(')
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i:], ')')
		if j < 0 {
			s = s[:i]
			break
		}
		s = s[:i] + s[i+j+1:]
	}
	return strings.TrimSpace(s)
}

func (p *LineReader) Read() (string, error) {
	for {
		s, err := p.br.ReadString('\n')
		if err == io.EOF && s != "" {
			err = nil
		}
		if err != nil {
			return "", err
		}

		s = Clean(s)
		if s == "" {
			continue
		}

		return s, nil
	}
}

// ReadAll collects every remaining line from r.
func ReadAll(r io.Reader) ([]string, error) {
	lr := NewReader(r)
	var lines []string
	for {
		s, err := lr.Read()
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, s)
	}
}
