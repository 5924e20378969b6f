package mission

import "fmt"

// FlightMode is the active phase of the mission. Exactly one is active at a time.
type FlightMode int

const (
	Manual FlightMode = iota
	Arming
	Takeoff
	Waypoint
	Landing
	Disarming
)

// Modes lists every flight mode in declaration order.
var Modes = []FlightMode{Manual, Arming, Takeoff, Waypoint, Landing, Disarming}

func (m FlightMode) String() string {
	switch m {
	case Manual:
		return "manual"
	case Arming:
		return "arming"
	case Takeoff:
		return "takeoff"
	case Waypoint:
		return "waypoint"
	case Landing:
		return "landing"
	case Disarming:
		return "disarming"
	default:
		return fmt.Sprintf("FlightMode(%d)", int(m))
	}
}

func (m FlightMode) Valid() bool {
	return m >= Manual && m <= Disarming
}

func unknownMode(m FlightMode) string {
	return fmt.Sprintf("mission: unhandled flight mode %v", m)
}
