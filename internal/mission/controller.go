package mission

import (
	"math"
	"time"

	"github.com/tiiuae/backyardflyer/internal/types"
)

const (
	altitudeReachedRatio = 0.95
	waypointTolerance    = 0.2
	landedVerticalSpeed  = 0.01

	DefaultSettleDelay = time.Second
)

// Controller runs the flight-mode state machine. Its handlers are not
// reentrant: the dispatcher must deliver one event at a time.
type Controller struct {
	vehicle     Vehicle
	state       *State
	post        types.PostFn
	settleDelay time.Duration
}

type Option func(*Controller)

// WithSettleDelay sets the pause taken after reaching hold altitude.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.settleDelay = d
	}
}

// WithPost sets where mission events are sent.
func WithPost(post types.PostFn) Option {
	return func(c *Controller) {
		c.post = post
	}
}

func NewController(vehicle Vehicle, opts ...Option) *Controller {
	c := &Controller{
		vehicle:     vehicle,
		state:       NewState(),
		settleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the mission record.
func (c *Controller) State() State {
	return c.state.clone()
}

// Restart installs a fresh mission record.
func (c *Controller) Restart() {
	c.state = NewState()
}

func (c *Controller) OnPositionUpdate(pos types.Vec3) {
	s := c.state
	if !s.MissionActive {
		return
	}

	result := make([]types.Message, 0)
	if s.Mode == Manual {
		// first position fix starts the climb without an explicit arm step
		result = append(result, takeoff(s, c.vehicle)...)
	}

	switch s.Mode {
	case Takeoff:
		altitude := -pos.Z
		if altitude > altitudeReachedRatio*s.TargetPosition.Z {
			time.Sleep(c.settleDelay)
			s.PendingWaypoints = GenerateWaypoints(pos)
			result = append(result, advanceWaypoint(s, c.vehicle)...)
		}
	case Manual, Arming, Waypoint, Landing, Disarming:
	default:
		panic(unknownMode(s.Mode))
	}

	if s.Mode == Waypoint && reached(pos, s.TargetPosition) {
		result = append(result, advanceWaypoint(s, c.vehicle)...)
	}

	c.publish(result)
}

func (c *Controller) OnVelocityUpdate(vel types.Vec3) {
	s := c.state
	if !s.MissionActive {
		return
	}

	result := make([]types.Message, 0)
	switch s.Mode {
	case Landing:
		if math.Abs(vel.Z) < landedVerticalSpeed {
			result = append(result, returnToManual(s, c.vehicle)...)
		}
	case Manual, Arming, Takeoff, Waypoint, Disarming:
	default:
		panic(unknownMode(s.Mode))
	}

	c.publish(result)
}

func (c *Controller) OnArmedStatusUpdate(armed bool) {
	s := c.state
	if !s.MissionActive {
		return
	}
	s.Armed = armed

	result := make([]types.Message, 0)
	switch s.Mode {
	case Manual:
		result = append(result, arm(s, c.vehicle)...)
	case Arming:
		if armed {
			result = append(result, takeoff(s, c.vehicle)...)
		}
	case Disarming:
		if !armed {
			result = append(result, returnToManual(s, c.vehicle)...)
		}
	case Takeoff, Waypoint, Landing:
	default:
		panic(unknownMode(s.Mode))
	}

	c.publish(result)
}

func (c *Controller) publish(messages []types.Message) {
	if c.post == nil {
		return
	}
	for _, msg := range messages {
		c.post(msg)
	}
}

// reached checks each horizontal axis on its own.
func reached(pos, target types.Vec3) bool {
	return math.Abs(pos.X-target.X) < waypointTolerance && math.Abs(pos.Y-target.Y) < waypointTolerance
}
