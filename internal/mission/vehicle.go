package mission

import (
	"context"

	"github.com/tiiuae/backyardflyer/internal/types"
)

// Vehicle is the telemetry and command surface of the aircraft.
// Commands are fire-and-forget.
type Vehicle interface {
	Armed() bool
	LocalPosition() types.Vec3
	GlobalPosition() types.Vec3
	LocalVelocity() types.Vec3

	TakeControl()
	ReleaseControl()
	Arm()
	Disarm()
	SetHomePosition(lat, lon, alt float64)
	Takeoff(altitude float64)
	Land()
	// CmdPosition flies to a local NED position given as north, east and
	// altitude (positive up) with a heading in radians.
	CmdPosition(north, east, altitude, heading float64)
	Stop()
}

type EventKind int

const (
	PositionEvent EventKind = iota
	VelocityEvent
	ArmedStatusEvent
)

func (k EventKind) String() string {
	switch k {
	case PositionEvent:
		return "position"
	case VelocityEvent:
		return "velocity"
	case ArmedStatusEvent:
		return "armed-status"
	default:
		return "unknown"
	}
}

// Link owns the connection to the vehicle and its dispatch loop.
// Callbacks are invoked one at a time from the goroutine running Start,
// and must not be invoked concurrently.
type Link interface {
	Vehicle
	RegisterCallback(kind EventKind, fn func())
	StartLog(dir, name string) error
	StopLog() error
	// Start blocks until the session ends.
	Start(ctx context.Context) error
}
