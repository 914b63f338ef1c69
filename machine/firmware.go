package machine

type FirmwareType string

const (
	FirmwareGrbl    FirmwareType = "grbl"
	FirmwareGrblHAL FirmwareType = "grblHAL"
	FirmwareFluidNC FirmwareType = "FluidNC"
	FirmwareUnknown FirmwareType = "unknown"
)

// Firmware identifies the controller firmware, parsed once per session
// from a greeting banner or a `$I` reply.
type Firmware struct {
	Type    FirmwareType
	Version string
}
