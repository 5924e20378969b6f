package mavlink

import (
	"log"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/tiiuae/backyardflyer/internal/mission"
	"github.com/tiiuae/backyardflyer/internal/navlog"
	"github.com/tiiuae/backyardflyer/internal/types"
)

type telemetry struct {
	locked      bool
	armedKnown  bool
	armed       bool
	globalKnown bool
	local       types.Vec3
	velocity    types.Vec3
	global      types.Vec3
}

func (l *Link) Armed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.telemetry.armed
}

func (l *Link) LocalPosition() types.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.telemetry.local
}

func (l *Link) GlobalPosition() types.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.telemetry.global
}

func (l *Link) LocalVelocity() types.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.telemetry.velocity
}

func (l *Link) handleMessage(systemID uint8, componentID uint8, msg message.Message) {
	now := time.Now()
	switch m := msg.(type) {
	case *common.MessageHeartbeat:
		// ground stations, companion computers and cameras report no autopilot
		if m.Type == common.MAV_TYPE_GCS || m.Autopilot == common.MAV_AUTOPILOT_INVALID {
			return
		}
		armed := m.BaseMode&common.MAV_MODE_FLAG_SAFETY_ARMED != 0
		accepted, changed := l.updateState(target{systemID, componentID}, armed)
		if !accepted {
			return
		}
		if changed {
			l.record(navlog.State, now, boolToFloat(armed))
			l.publish("vehicle-status", types.VehicleState{Armed: armed})
		}
		l.dispatch(mission.ArmedStatusEvent)
	case *common.MessageLocalPositionNed:
		pos := types.Vec3{X: float64(m.X), Y: float64(m.Y), Z: float64(m.Z)}
		vel := types.Vec3{X: float64(m.Vx), Y: float64(m.Vy), Z: float64(m.Vz)}
		l.mu.Lock()
		l.telemetry.local = pos
		l.telemetry.velocity = vel
		l.mu.Unlock()
		l.record(navlog.LocalPosition, now, pos.X, pos.Y, pos.Z)
		l.record(navlog.LocalVelocity, now, vel.X, vel.Y, vel.Z)
		l.publish("local-position", types.LocalPosition{Position: pos, Velocity: vel})
		l.dispatch(mission.PositionEvent)
		l.dispatch(mission.VelocityEvent)
	case *common.MessageGlobalPositionInt:
		global := types.Vec3{
			X: float64(m.Lat) / 1e7,
			Y: float64(m.Lon) / 1e7,
			Z: float64(m.Alt) / 1000,
		}
		l.mu.Lock()
		l.telemetry.global = global
		l.telemetry.globalKnown = true
		l.mu.Unlock()
		l.record(navlog.GlobalPosition, now, global.X, global.Y, global.Z)
		l.publish("global-position", types.GlobalPosition{Lat: global.X, Lon: global.Y, Alt: global.Z})
	}
}

// updateState locks on to the first autopilot heard and ignores heartbeats
// from any other system or component. changed reports whether the armed
// status differs from the last accepted heartbeat; the first one always does.
func (l *Link) updateState(t target, armed bool) (accepted bool, changed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.telemetry.locked && l.target != t {
		return false, false
	}
	if !l.telemetry.locked {
		log.Printf("MAVLink: autopilot %d/%d", t.systemID, t.componentID)
		l.telemetry.locked = true
		l.target = t
	}
	changed = !l.telemetry.armedKnown || l.telemetry.armed != armed
	l.telemetry.armedKnown = true
	l.telemetry.armed = armed
	return true, changed
}

func (l *Link) hasGlobalFix() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.telemetry.globalKnown
}

func (l *Link) record(kind string, t time.Time, values ...float64) {
	err := l.navlog.Record(kind, t, values...)
	if err != nil {
		log.Printf("MAVLink: %v", err)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
