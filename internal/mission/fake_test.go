package mission

import (
	"context"
	"errors"

	"github.com/tiiuae/backyardflyer/internal/types"
)

type fakeVehicle struct {
	armed    bool
	local    types.Vec3
	global   types.Vec3
	velocity types.Vec3

	commands []string
	targets  []types.Vec3
	headings []float64
	home     types.Vec3
	altitude float64
}

func (v *fakeVehicle) Armed() bool                { return v.armed }
func (v *fakeVehicle) LocalPosition() types.Vec3  { return v.local }
func (v *fakeVehicle) GlobalPosition() types.Vec3 { return v.global }
func (v *fakeVehicle) LocalVelocity() types.Vec3  { return v.velocity }

func (v *fakeVehicle) TakeControl()    { v.commands = append(v.commands, "take_control") }
func (v *fakeVehicle) ReleaseControl() { v.commands = append(v.commands, "release_control") }
func (v *fakeVehicle) Arm()            { v.commands = append(v.commands, "arm") }
func (v *fakeVehicle) Disarm()         { v.commands = append(v.commands, "disarm") }
func (v *fakeVehicle) Land()           { v.commands = append(v.commands, "land") }
func (v *fakeVehicle) Stop()           { v.commands = append(v.commands, "stop") }

func (v *fakeVehicle) SetHomePosition(lat, lon, alt float64) {
	v.commands = append(v.commands, "set_home_position")
	v.home = types.Vec3{X: lat, Y: lon, Z: alt}
}

func (v *fakeVehicle) Takeoff(altitude float64) {
	v.commands = append(v.commands, "takeoff")
	v.altitude = altitude
}

func (v *fakeVehicle) CmdPosition(north, east, altitude, heading float64) {
	v.commands = append(v.commands, "cmd_position")
	v.targets = append(v.targets, types.Vec3{X: north, Y: east, Z: altitude})
	v.headings = append(v.headings, heading)
}

// telemetryEvent sets one telemetry field and fires the matching callback.
type telemetryEvent struct {
	kind     EventKind
	position types.Vec3
	velocity types.Vec3
	armed    bool
}

type fakeLink struct {
	fakeVehicle
	callbacks map[EventKind]func()
	script    []telemetryEvent
	calls     []string
	startErr  error
	stopErr   error
	panicMsg  string
	stopped   bool
}

func newFakeLink(script ...telemetryEvent) *fakeLink {
	return &fakeLink{callbacks: make(map[EventKind]func()), script: script}
}

func (l *fakeLink) RegisterCallback(kind EventKind, fn func()) {
	l.callbacks[kind] = fn
}

func (l *fakeLink) StartLog(dir, name string) error {
	l.calls = append(l.calls, "start_log:"+dir+"/"+name)
	return nil
}

func (l *fakeLink) StopLog() error {
	l.calls = append(l.calls, "stop_log")
	return l.stopErr
}

func (l *fakeLink) Stop() {
	l.fakeVehicle.Stop()
	l.stopped = true
}

func (l *fakeLink) Start(ctx context.Context) error {
	l.calls = append(l.calls, "start")
	if l.panicMsg != "" {
		panic(l.panicMsg)
	}
	if l.startErr != nil {
		return l.startErr
	}
	for _, e := range l.script {
		if l.stopped {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch e.kind {
		case PositionEvent:
			l.local = e.position
		case VelocityEvent:
			l.velocity = e.velocity
		case ArmedStatusEvent:
			l.armed = e.armed
		}
		fn, ok := l.callbacks[e.kind]
		if !ok {
			return errors.New("no callback for " + e.kind.String())
		}
		fn()
	}
	return nil
}

func positionEvent(x, y, z float64) telemetryEvent {
	return telemetryEvent{kind: PositionEvent, position: types.Vec3{X: x, Y: y, Z: z}}
}

func velocityEvent(x, y, z float64) telemetryEvent {
	return telemetryEvent{kind: VelocityEvent, velocity: types.Vec3{X: x, Y: y, Z: z}}
}

func armedEvent(armed bool) telemetryEvent {
	return telemetryEvent{kind: ArmedStatusEvent, armed: armed}
}
