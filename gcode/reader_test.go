package gcode

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineReader_Read(t *testing.T) {
	lr := NewReader(strings.NewReader("G0 X1 ; rapid\r\n\n(setup) G21\nG1 X2"))

	s, err := lr.Read()
	assert.NoError(t, err)
	assert.Equal(t, "G0 X1", s)

	s, err = lr.Read()
	assert.NoError(t, err)
	assert.Equal(t, "G21", s)

	s, err = lr.Read()
	assert.NoError(t, err)
	assert.Equal(t, "G1 X2", s)

	_, err = lr.Read()
	assert.Equal(t, io.EOF, err)
}

func TestClean(t *testing.T) {
	check := func(in, exp string) {
		assert.Equal(t, exp, Clean(in), "Clean(%q)", in)
	}
	check("G0 X1", "G0 X1")
	check("  G0 X1  \r", "G0 X1")
	check("G0 X1 ; comment", "G0 X1")
	check("; whole line", "")
	check("(a) G1 (b) X2", "G1  X2")
	check("G1 (unterminated", "G1")
	check("", "")
}

func TestReadAll(t *testing.T) {
	lines, err := ReadAll(strings.NewReader("G90\n\n; nope\nG0 X5\n"))
	assert.NoError(t, err)
	assert.Equal(t, []string{"G90", "G0 X5"}, lines)
}
