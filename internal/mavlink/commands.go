package mavlink

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// PX4 custom main modes used with MAV_CMD_DO_SET_MODE
const (
	px4ModeManual   = 1
	px4ModeOffboard = 6
)

const positionOnlyMask = common.POSITION_TARGET_TYPEMASK_VX_IGNORE |
	common.POSITION_TARGET_TYPEMASK_VY_IGNORE |
	common.POSITION_TARGET_TYPEMASK_VZ_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AX_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AY_IGNORE |
	common.POSITION_TARGET_TYPEMASK_AZ_IGNORE |
	common.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE

// PX4 drops out of offboard when setpoints stop for about 0.5s.
const setpointInterval = 100 * time.Millisecond

// TakeControl starts streaming a hold at the current position before
// requesting offboard, which PX4 refuses without a live setpoint stream.
func (l *Link) TakeControl() {
	log.Printf("MAVLink: TAKE_CONTROL")
	pos := l.LocalPosition()
	l.holdSetpoint(positionTarget(l.currentTarget(), pos.X, pos.Y, -pos.Z, 0))
	l.send(setModeCommand(l.currentTarget(), px4ModeOffboard))
}

func (l *Link) ReleaseControl() {
	log.Printf("MAVLink: RELEASE_CONTROL")
	l.clearSetpoint()
	l.send(setModeCommand(l.currentTarget(), px4ModeManual))
}

func (l *Link) Arm() {
	log.Printf("MAVLink: ARM")
	l.send(armCommand(l.currentTarget(), true))
}

func (l *Link) Disarm() {
	log.Printf("MAVLink: DISARM")
	l.send(armCommand(l.currentTarget(), false))
}

// SetHomePosition is skipped until a global position has been received,
// leaving the autopilot's own home in place.
func (l *Link) SetHomePosition(lat, lon, alt float64) {
	if !l.hasGlobalFix() {
		log.Printf("MAVLink: WARNING: no global position yet, SET_HOME skipped")
		return
	}
	log.Printf("MAVLink: SET_HOME %f, %f, %f", lat, lon, alt)
	l.send(setHomeCommand(l.currentTarget(), lat, lon, alt))
}

// Takeoff climbs over the current local position.
func (l *Link) Takeoff(altitude float64) {
	log.Printf("MAVLink: TAKEOFF %f", altitude)
	pos := l.LocalPosition()
	l.holdSetpoint(positionTarget(l.currentTarget(), pos.X, pos.Y, altitude, 0))
}

func (l *Link) Land() {
	log.Printf("MAVLink: LAND")
	l.clearSetpoint()
	l.send(landCommand(l.currentTarget()))
}

func (l *Link) CmdPosition(north, east, altitude, heading float64) {
	log.Printf("MAVLink: POSITION %f, %f, %f heading %f", north, east, altitude, heading)
	l.holdSetpoint(positionTarget(l.currentTarget(), north, east, altitude, heading))
}

// holdSetpoint sends sp now and keeps repeating it from streamSetpoints.
// sp must not be modified afterwards.
func (l *Link) holdSetpoint(sp *common.MessageSetPositionTargetLocalNed) {
	l.mu.Lock()
	l.setpoint = sp
	l.mu.Unlock()
	l.send(sp)
}

func (l *Link) clearSetpoint() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setpoint = nil
}

func (l *Link) currentSetpoint() *common.MessageSetPositionTargetLocalNed {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setpoint
}

func (l *Link) streamSetpoints(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-ticker.C:
			if sp := l.currentSetpoint(); sp != nil {
				l.send(sp)
			}
		}
	}
}

func (l *Link) currentTarget() target {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

func (l *Link) send(msg message.Message) {
	l.mu.Lock()
	out := l.out
	l.mu.Unlock()

	if out == nil {
		log.Printf("MAVLink: not connected, dropping %T", msg)
		return
	}
	err := out.WriteMessageAll(msg)
	if err != nil {
		log.Printf("MAVLink: write failed: %v", err)
	}
}

func commandLong(t target, cmd common.MAV_CMD, params [7]float32) *common.MessageCommandLong {
	return &common.MessageCommandLong{
		TargetSystem:    t.systemID,
		TargetComponent: t.componentID,
		Command:         cmd,
		Param1:          params[0],
		Param2:          params[1],
		Param3:          params[2],
		Param4:          params[3],
		Param5:          params[4],
		Param6:          params[5],
		Param7:          params[6],
	}
}

func setModeCommand(t target, customMode float32) *common.MessageCommandLong {
	return commandLong(t, common.MAV_CMD_DO_SET_MODE, [7]float32{
		float32(common.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED), customMode,
	})
}

func armCommand(t target, arm bool) *common.MessageCommandLong {
	var p1 float32
	if arm {
		p1 = 1
	}
	return commandLong(t, common.MAV_CMD_COMPONENT_ARM_DISARM, [7]float32{p1})
}

// setHomeCommand uses COMMAND_INT so latitude and longitude keep 1e-7 degree precision.
func setHomeCommand(t target, lat, lon, alt float64) *common.MessageCommandInt {
	return &common.MessageCommandInt{
		TargetSystem:    t.systemID,
		TargetComponent: t.componentID,
		Frame:           common.MAV_FRAME_GLOBAL,
		Command:         common.MAV_CMD_DO_SET_HOME,
		X:               int32(math.Round(lat * 1e7)),
		Y:               int32(math.Round(lon * 1e7)),
		Z:               float32(alt),
	}
}

// landCommand lands at the current position.
func landCommand(t target) *common.MessageCommandLong {
	nan := float32(math.NaN())
	return commandLong(t, common.MAV_CMD_NAV_LAND, [7]float32{0, 0, 0, nan, nan, nan, nan})
}

// positionTarget converts altitude to NED down.
func positionTarget(t target, north, east, altitude, heading float64) *common.MessageSetPositionTargetLocalNed {
	return &common.MessageSetPositionTargetLocalNed{
		TargetSystem:    t.systemID,
		TargetComponent: t.componentID,
		CoordinateFrame: common.MAV_FRAME_LOCAL_NED,
		TypeMask:        positionOnlyMask,
		X:               float32(north),
		Y:               float32(east),
		Z:               float32(-altitude),
		Yaw:             float32(heading),
	}
}
