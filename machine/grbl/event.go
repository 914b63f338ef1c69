package grbl

import (
	"strconv"
	"strings"

	"github.com/mastercactapus/grblstream/machine"
)

// Ack is a bare `ok` acknowledgement.
type Ack struct{}

// FirmwareError is an `error:N` reply. It counts the same as an Ack for
// flow control; Code feeds the error decoder for display.
type FirmwareError struct {
	Code int
	Raw  string
}

// Banner is a firmware greeting or `$I` version reply. Greeting marks
// the unprompted startup form, which GRBL prints after every reset; one
// arriving mid-session means the controller restarted.
type Banner struct {
	Type     machine.FirmwareType
	Version  string
	Raw      string
	Greeting bool
}

// Setting is one `$N=V` settings dump line.
type Setting struct {
	Number int
	Value  float64
	Raw    string
}

// Message is any line with no recognized shape: feedback messages, alarm
// text, echoed input.
type Message string

// Classify decodes one framed line into an event value. A line whose
// shape is recognized but whose payload fails to parse comes back as a
// Message, so one garbled report never stalls the pipeline.
func Classify(line string) interface{} {
	line = strings.TrimSpace(line)

	if line == "ok" {
		return Ack{}
	}
	if strings.HasPrefix(line, "<") {
		r, err := ParseStatus(line)
		if err != nil {
			return Message(line)
		}
		return r
	}
	if len(line) > 6 && strings.EqualFold(line[:6], "error:") {
		code, err := strconv.Atoi(line[6:])
		if err != nil || code < 0 {
			return Message(line)
		}
		return FirmwareError{Code: code, Raw: line}
	}
	if strings.HasPrefix(line, "$") {
		if i := strings.IndexByte(line, '='); i > 1 {
			num, numErr := strconv.Atoi(line[1:i])
			val, valErr := strconv.ParseFloat(line[i+1:], 64)
			if numErr == nil && valErr == nil {
				return Setting{Number: num, Value: val, Raw: line}
			}
		}
		return Message(line)
	}
	if b, ok := parseBanner(line); ok {
		return b
	}
	return Message(line)
}

// parseBanner recognizes reset greetings such as
//
//	Grbl 1.1h ['$' for help]
//	GrblHAL 1.1f ['$' or '$HELP' for help]
//	Grbl 3.7 [FluidNC v3.7.1 ...]
//
// and `$I` version replies like `[VER:1.1h.20190825:]`.
func parseBanner(line string) (Banner, bool) {
	if strings.HasPrefix(line, "[VER:") {
		v := strings.TrimPrefix(line, "[VER:")
		v = strings.TrimSuffix(v, "]")
		if i := strings.IndexByte(v, ':'); i != -1 {
			v = v[:i]
		}
		return Banner{Type: bannerType(line), Version: v, Raw: line}, true
	}
	fields := strings.Fields(line)
	if len(fields) >= 2 &&
		(strings.EqualFold(fields[0], "Grbl") || strings.EqualFold(fields[0], "GrblHAL")) {
		return Banner{Type: bannerType(line), Version: fields[1], Raw: line, Greeting: true}, true
	}
	return Banner{}, false
}

func bannerType(line string) machine.FirmwareType {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "grblhal"):
		return machine.FirmwareGrblHAL
	case strings.Contains(lower, "fluidnc"):
		return machine.FirmwareFluidNC
	}
	return machine.FirmwareGrbl
}
