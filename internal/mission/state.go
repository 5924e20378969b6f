package mission

import "github.com/tiiuae/backyardflyer/internal/types"

// State is the single mutable mission record. Only transition functions
// write to it.
type State struct {
	Mode FlightMode
	// TargetPosition is the takeoff altitude while climbing and the
	// current corner while flying the square.
	TargetPosition   types.Vec3
	PendingWaypoints []types.Vec3
	MissionActive    bool
	// Armed mirrors the last armed status seen in telemetry.
	Armed bool
}

func NewState() *State {
	return &State{
		Mode:             Manual,
		PendingWaypoints: make([]types.Vec3, 0),
		MissionActive:    true,
	}
}

func (s *State) popWaypoint() (types.Vec3, bool) {
	if len(s.PendingWaypoints) == 0 {
		return types.Vec3{}, false
	}
	wp := s.PendingWaypoints[0]
	s.PendingWaypoints = s.PendingWaypoints[1:]
	return wp, true
}

func (s *State) clone() State {
	c := *s
	c.PendingWaypoints = append([]types.Vec3(nil), s.PendingWaypoints...)
	return c
}
