package grbl

import (
	"strings"

	serialenum "go.bug.st/serial.v1"
)

// usbPortMarkers select ports that look like USB controllers out of the
// full system list, which on Linux includes a pile of bare ttyS stubs.
var usbPortMarkers = []string{
	"ttyUSB", "ttyACM", "cu.usbserial", "cu.usbmodem", "cu.wchusbserial", "COM",
}

// ListPorts enumerates serial ports likely to be a CNC controller.
func ListPorts() ([]string, error) {
	all, err := serialenum.GetPortsList()
	if err != nil {
		return nil, err
	}
	var ports []string
	for _, name := range all {
		if matchesPortName(name) {
			ports = append(ports, name)
		}
	}
	return ports, nil
}

func matchesPortName(name string) bool {
	for _, m := range usbPortMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
