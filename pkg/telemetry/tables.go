package telemetry

import "fmt"

// flightModes maps ArduCopter custom_mode values to their names. Empty
// slots are codes the firmware never assigned.
var flightModes = [28]string{
	0:  "STABILIZE",
	1:  "ACRO",
	2:  "ALT_HOLD",
	3:  "AUTO",
	4:  "GUIDED",
	5:  "LOITER",
	6:  "RTL",
	7:  "CIRCLE",
	9:  "LAND",
	11: "DRIFT",
	13: "SPORT",
	14: "FLIP",
	15: "AUTOTUNE",
	16: "POSHOLD",
	17: "BRAKE",
	18: "THROW",
	19: "AVOID_ADSB",
	20: "GUIDED_NOGPS",
	21: "SMART_RTL",
	22: "FLOWHOLD",
	23: "FOLLOW",
	24: "ZIGZAG",
	25: "SYSTEMID",
	26: "AUTOROTATE",
	27: "AUTO_RTL",
}

var fixTypes = [7]string{
	"NO_GPS",
	"NO_FIX",
	"2D_FIX",
	"3D_FIX",
	"DGPS",
	"RTK_FLOAT",
	"RTK_FIXED",
}

// ModeName returns the flight mode label for a custom_mode value. Unknown
// codes yield MODE_<n>.
func ModeName(customMode uint32) string {
	if customMode < uint32(len(flightModes)) && flightModes[customMode] != "" {
		return flightModes[customMode]
	}
	return fmt.Sprintf("MODE_%d", customMode)
}

// ModeCode is the inverse of ModeName for known labels.
func ModeCode(name string) (uint32, bool) {
	for code, n := range flightModes {
		if n != "" && n == name {
			return uint32(code), true
		}
	}
	var code uint32
	if _, err := fmt.Sscanf(name, "MODE_%d", &code); err == nil {
		return code, true
	}
	return 0, false
}

// FixTypeName returns the GPS fix label. Unknown codes yield FIX_<n>.
func FixTypeName(fixType uint8) string {
	if int(fixType) < len(fixTypes) {
		return fixTypes[fixType]
	}
	return fmt.Sprintf("FIX_%d", fixType)
}
