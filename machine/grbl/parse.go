package grbl

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mastercactapus/grblstream/coord"
	"github.com/mastercactapus/grblstream/machine"
)

// StatusReport is one decoded `<...>` report. Pointer fields are nil when
// the firmware omitted the field.
type StatusReport struct {
	Raw string

	State     machine.Status
	StateText string

	MPos *coord.Point
	WPos *coord.Point
	WCO  *coord.Point

	Buffer    *machine.Buffer
	Overrides *machine.Overrides

	FeedRate     *float64
	SpindleSpeed *float64
}

var statusNames = []machine.Status{
	machine.StatusIdle, machine.StatusRun, machine.StatusHold,
	machine.StatusJog, machine.StatusHome, machine.StatusAlarm,
	machine.StatusDoor, machine.StatusCheck, machine.StatusSleep,
}

// parseMachineState maps the first report field to a Status by
// case-insensitive prefix, so sub-states like "Hold:0" still match.
func parseMachineState(s string) machine.Status {
	for _, name := range statusNames {
		if len(s) >= len(name) && strings.EqualFold(s[:len(name)], string(name)) {
			return name
		}
	}
	return machine.StatusUnknown
}

// parseCoords accepts 3 to 6 comma-separated axis values. Rotary axes
// beyond XYZ are validated but not modeled.
func parseCoords(data string) (*coord.Point, error) {
	parts := strings.Split(data, ",")
	if len(parts) < 3 || len(parts) > 6 {
		return nil, errors.New("invalid number of axes")
	}
	vals := make([]float64, len(parts))
	var err error
	for i, s := range parts {
		vals[i], err = strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
	}
	return &coord.Point{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func parseBuffer(data string) (*machine.Buffer, error) {
	parts := strings.Split(data, ",")
	if len(parts) != 2 {
		return nil, errors.New("invalid buffer field")
	}
	plan, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, err
	}
	rx, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, err
	}
	return &machine.Buffer{PlannerFree: plan, RxFree: rx}, nil
}

func parseOverrides(data string) (*machine.Overrides, error) {
	parts := strings.Split(data, ",")
	if len(parts) != 3 {
		return nil, errors.New("invalid override field")
	}
	var o machine.Overrides
	var err error
	o.Feed, err = strconv.Atoi(parts[0])
	if err != nil {
		return nil, err
	}
	o.Rapid, err = strconv.Atoi(parts[1])
	if err != nil {
		return nil, err
	}
	o.Spindle, err = strconv.Atoi(parts[2])
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func parseFeedSpeed(data string) (*float64, *float64, error) {
	parts := strings.Split(data, ",")
	if len(parts) != 2 {
		return nil, nil, errors.New("invalid feed/speed field")
	}
	f, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, nil, err
	}
	s, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, nil, err
	}
	return &f, &s, nil
}

func parseFloat(data string) (*float64, error) {
	v, err := strconv.ParseFloat(data, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseStatus decodes one `<...>` report. Unknown fields are skipped so
// reports from newer firmware builds still parse; a known field that is
// present but malformed fails the whole report.
func ParseStatus(line string) (*StatusReport, error) {
	data := strings.TrimSpace(line)
	if len(data) < 3 || data[0] != '<' || data[len(data)-1] != '>' {
		return nil, errors.New("not a status report: " + line)
	}
	parts := strings.Split(data[1:len(data)-1], "|")
	if parts[0] == "" {
		return nil, errors.New("missing machine state: " + line)
	}
	r := &StatusReport{
		Raw:       line,
		State:     parseMachineState(parts[0]),
		StateText: parts[0],
	}
	var err error
	for _, s := range parts[1:] {
		sParts := strings.SplitN(s, ":", 2)
		if len(sParts) != 2 {
			// bare tokens carry nothing we track
			continue
		}
		switch sParts[0] {
		case "MPos":
			r.MPos, err = parseCoords(sParts[1])
		case "WPos":
			r.WPos, err = parseCoords(sParts[1])
		case "WCO":
			r.WCO, err = parseCoords(sParts[1])
		case "Bf":
			r.Buffer, err = parseBuffer(sParts[1])
		case "Ov":
			r.Overrides, err = parseOverrides(sParts[1])
		case "FS":
			r.FeedRate, r.SpindleSpeed, err = parseFeedSpeed(sParts[1])
		case "F":
			r.FeedRate, err = parseFloat(sParts[1])
		case "S":
			r.SpindleSpeed, err = parseFloat(sParts[1])
		}
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}
