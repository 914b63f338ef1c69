package grbl

import "strconv"

// System commands. Each is queued like G-code and answered with ok/error.
const (
	CmdIdentify    = "$I"
	CmdSettings    = "$$"
	CmdParserState = "$G"
	CmdHome        = "$H"
	CmdUnlock      = "$X"
	CmdGotoZero    = "G00X0Y0Z0"
)

// JogCommand builds an incremental relative jog in `$J=` syntax.
// distance carries its own sign; feed is in mm/min.
func JogCommand(axis string, distance, feed float64) string {
	return "$J=G91 G0 " + axis + strconv.FormatFloat(distance, 'f', 3, 64) +
		" F" + strconv.FormatFloat(feed, 'f', 0, 64)
}

// ZeroWorkCommand builds a G92 command zeroing the named axes at the
// current position, or all of XYZ when axes is empty. Returns "" if no
// valid axis letter remains.
func ZeroWorkCommand(axes string) string {
	if axes == "" {
		axes = "XYZ"
	}
	cmd := "G92"
	for _, r := range axes {
		switch r {
		case 'X', 'Y', 'Z', 'A', 'B', 'C':
			cmd += string(r) + "0"
		}
	}
	if cmd == "G92" {
		return ""
	}
	return cmd
}
