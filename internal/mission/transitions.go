package mission

import (
	"log"

	"github.com/tiiuae/backyardflyer/internal/types"
)

// TakeoffAltitude is the hold altitude in metres.
const TakeoffAltitude = 0.5

func arm(s *State, v Vehicle) []types.Message {
	v.TakeControl()
	v.Arm()
	home := v.GlobalPosition()
	v.SetHomePosition(home.X, home.Y, home.Z)
	return enter(s, Arming)
}

func takeoff(s *State, v Vehicle) []types.Message {
	s.TargetPosition.Z = TakeoffAltitude
	v.Takeoff(TakeoffAltitude)
	return enter(s, Takeoff)
}

func advanceWaypoint(s *State, v Vehicle) []types.Message {
	wp, ok := s.popWaypoint()
	if !ok {
		return land(s, v)
	}

	s.TargetPosition = wp
	v.CmdPosition(wp.X, wp.Y, wp.Z, 0)
	log.Printf("Mission: waypoint %v, %d remaining", wp, len(s.PendingWaypoints))

	result := enter(s, Waypoint)
	result = append(result, createLocalMessage("waypoint-targeted", types.WaypointTargeted{
		Target:    wp,
		Remaining: len(s.PendingWaypoints),
	}))
	return result
}

func land(s *State, v Vehicle) []types.Message {
	v.Land()
	return enter(s, Landing)
}

// disarm is not reached from any event handler: landing returns straight
// to manual once vertical speed settles.
func disarm(s *State, v Vehicle) []types.Message {
	v.Disarm()
	return enter(s, Disarming)
}

func returnToManual(s *State, v Vehicle) []types.Message {
	v.ReleaseControl()
	v.Stop()
	s.MissionActive = false
	result := enter(s, Manual)
	return append(result, createLocalMessage("mission-completed", types.MissionCompleted{}))
}

func enter(s *State, mode FlightMode) []types.Message {
	from := s.Mode
	s.Mode = mode
	if from == mode {
		return []types.Message{}
	}

	log.Printf("Mission: %s transition", mode)
	return []types.Message{createLocalMessage("mode-changed", types.ModeChanged{From: from.String(), To: mode.String()})}
}

func createLocalMessage(messageType string, msg interface{}) types.Message {
	return types.CreateMessage(messageType, "self", "self", msg)
}
