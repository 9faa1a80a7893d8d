// Package device holds the in-memory and on-wire representation of a
// mobile device's power/network/user state (spec.md §3, C1).
package device

// BatteryState mirrors the enumeration a client reports for its battery.
type BatteryState int

const (
	BatteryUnknown BatteryState = iota
	BatteryDischarging
	BatteryCharging
	BatteryFull
	BatteryOverheated
)

// MaxDeviceNameBytes bounds device_name the way the original C struct's
// fixed char[256] buffer did (255 octets + NUL).
const MaxDeviceNameBytes = 255

// Status is the device power/network/user snapshot a client attaches to
// every scheduler request.
type Status struct {
	OnACPower                 bool
	OnUSBPower                bool
	BatteryChargePct          float64
	BatteryState              BatteryState
	BatteryTemperatureCelsius float64
	WifiOnline                bool
	UserActive                bool
	DeviceName                string
}

// New returns a zero-valued Status, matching the original DEVICE_STATUS
// default constructor (all booleans false, all reals zero).
func New() Status {
	return Status{BatteryState: BatteryUnknown}
}

// Clamp enforces the §3 invariant: percentages clamp to [0, 100]; a device
// name longer than the wire limit is truncated rather than rejected.
func (s *Status) Clamp() {
	if s.BatteryChargePct < 0 {
		s.BatteryChargePct = 0
	}
	if s.BatteryChargePct > 100 {
		s.BatteryChargePct = 100
	}
	if len(s.DeviceName) > MaxDeviceNameBytes {
		s.DeviceName = s.DeviceName[:MaxDeviceNameBytes]
	}
}
