package mavlink

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/tiiuae/backyardflyer/internal/mission"
	"github.com/tiiuae/backyardflyer/internal/types"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []message.Message
}

func (w *fakeWriter) WriteMessageAll(m message.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, m)
	return nil
}

func (w *fakeWriter) all() []message.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]message.Message(nil), w.messages...)
}

func heartbeat(armed bool) *common.MessageHeartbeat {
	hb := &common.MessageHeartbeat{
		Type:      common.MAV_TYPE_QUADROTOR,
		Autopilot: common.MAV_AUTOPILOT_PX4,
	}
	if armed {
		hb.BaseMode = common.MAV_MODE_FLAG_SAFETY_ARMED
	}
	return hb
}

func TestNewAddress(t *testing.T) {
	if a := New("127.0.0.1", 5760).Address(); a != "127.0.0.1:5760" {
		t.Errorf("unexpected address %s", a)
	}
}

func TestHeartbeatDispatchesEveryMessage(t *testing.T) {
	statuses := 0
	l := New("127.0.0.1", 5760, WithPost(func(msg types.Message) {
		if msg.MessageType == "vehicle-status" {
			statuses++
		}
	}))
	calls := 0
	l.RegisterCallback(mission.ArmedStatusEvent, func() { calls++ })

	l.handleMessage(1, 1, heartbeat(false))
	l.handleMessage(1, 1, heartbeat(false))
	l.handleMessage(1, 1, heartbeat(true))
	l.handleMessage(1, 1, heartbeat(true))

	if calls != 4 {
		t.Errorf("expected 4 armed status callbacks, got %d", calls)
	}
	// status changes only
	if statuses != 2 {
		t.Errorf("expected 2 vehicle-status messages, got %d", statuses)
	}
	if !l.Armed() {
		t.Errorf("expected armed")
	}

	// other ground stations are ignored
	gcs := heartbeat(false)
	gcs.Type = common.MAV_TYPE_GCS
	l.handleMessage(255, 190, gcs)
	if !l.Armed() || calls != 4 {
		t.Errorf("GCS heartbeat changed state")
	}
}

func TestRepeatedArmedHeartbeatsStartTakeoff(t *testing.T) {
	l := New("127.0.0.1", 5760)
	l.setWriter(&fakeWriter{})
	c := mission.NewController(l, mission.WithSettleDelay(0))
	l.RegisterCallback(mission.ArmedStatusEvent, func() { c.OnArmedStatusUpdate(l.Armed()) })

	// vehicle already armed when the link comes up
	for i := 0; i < 5; i++ {
		l.handleMessage(1, 1, heartbeat(true))
	}

	if mode := c.State().Mode; mode != mission.Takeoff {
		t.Errorf("expected takeoff after repeated armed heartbeats, got %v", mode)
	}
}

func TestNonAutopilotHeartbeatsIgnored(t *testing.T) {
	l := New("127.0.0.1", 5760)
	w := &fakeWriter{}
	l.setWriter(w)
	calls := 0
	l.RegisterCallback(mission.ArmedStatusEvent, func() { calls++ })

	l.handleMessage(1, 1, heartbeat(true))

	companion := heartbeat(false)
	companion.Type = common.MAV_TYPE_ONBOARD_CONTROLLER
	companion.Autopilot = common.MAV_AUTOPILOT_INVALID
	l.handleMessage(1, 191, companion)

	camera := heartbeat(false)
	camera.Type = common.MAV_TYPE_CAMERA
	camera.Autopilot = common.MAV_AUTOPILOT_INVALID
	l.handleMessage(1, 100, camera)

	// a second autopilot on the network is not followed
	l.handleMessage(2, 1, heartbeat(false))

	if !l.Armed() || calls != 1 {
		t.Errorf("foreign heartbeat changed state: armed=%v calls=%d", l.Armed(), calls)
	}

	l.Land()
	cmd := w.all()[0].(*common.MessageCommandLong)
	if cmd.TargetSystem != 1 || cmd.TargetComponent != 1 {
		t.Errorf("unexpected target %d/%d", cmd.TargetSystem, cmd.TargetComponent)
	}
}

func TestHeartbeatSetsTarget(t *testing.T) {
	l := New("127.0.0.1", 5760)
	w := &fakeWriter{}
	l.setWriter(w)

	l.handleMessage(3, 7, heartbeat(false))
	l.Arm()

	cmd := w.messages[0].(*common.MessageCommandLong)
	if cmd.TargetSystem != 3 || cmd.TargetComponent != 7 {
		t.Errorf("unexpected target %d/%d", cmd.TargetSystem, cmd.TargetComponent)
	}
}

func TestLocalPositionDispatchOrder(t *testing.T) {
	l := New("127.0.0.1", 5760)
	order := make([]string, 0)
	l.RegisterCallback(mission.PositionEvent, func() { order = append(order, "position") })
	l.RegisterCallback(mission.VelocityEvent, func() { order = append(order, "velocity") })

	l.handleMessage(1, 1, &common.MessageLocalPositionNed{X: 1, Y: 2, Z: -0.5, Vx: 0.1, Vy: 0, Vz: 0.25})

	if !reflect.DeepEqual(order, []string{"position", "velocity"}) {
		t.Errorf("unexpected dispatch order %v", order)
	}
	if p := l.LocalPosition(); p != (types.Vec3{X: 1, Y: 2, Z: -0.5}) {
		t.Errorf("unexpected position %v", p)
	}
	if v := l.LocalVelocity(); v.Z != 0.25 {
		t.Errorf("unexpected velocity %v", v)
	}
}

func TestGlobalPositionConversion(t *testing.T) {
	posted := make([]types.Message, 0)
	l := New("127.0.0.1", 5760, WithDeviceID("drone-1"), WithPost(func(msg types.Message) { posted = append(posted, msg) }))

	l.handleMessage(1, 1, &common.MessageGlobalPositionInt{Lat: 601699000, Lon: 249384000, Alt: 12500})

	g := l.GlobalPosition()
	if math.Abs(g.X-60.1699) > 1e-9 || math.Abs(g.Y-24.9384) > 1e-9 || g.Z != 12.5 {
		t.Errorf("unexpected global position %v", g)
	}
	if len(posted) != 1 || posted[0].MessageType != "global-position" || posted[0].From != "drone-1" {
		t.Errorf("unexpected posted messages %+v", posted)
	}
}

func TestStopEndsDispatch(t *testing.T) {
	l := New("127.0.0.1", 5760)
	velocityCalls := 0
	l.RegisterCallback(mission.PositionEvent, func() { l.Stop() })
	l.RegisterCallback(mission.VelocityEvent, func() { velocityCalls++ })

	l.handleMessage(1, 1, &common.MessageLocalPositionNed{})

	if velocityCalls != 0 {
		t.Errorf("callback dispatched after stop")
	}
	l.Stop()

	err := l.runEventLoop(context.Background(), make(chan gomavlib.Event))
	if err != nil {
		t.Errorf("expected clean exit after stop, got %v", err)
	}
}

func TestRunEventLoopEndsWithContext(t *testing.T) {
	l := New("127.0.0.1", 5760)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.runEventLoop(ctx, make(chan gomavlib.Event)); err != nil {
		t.Errorf("expected clean exit, got %v", err)
	}

	events := make(chan gomavlib.Event)
	close(events)
	if err := l.runEventLoop(context.Background(), events); err == nil {
		t.Errorf("expected error on closed event channel")
	}
}

func TestTelemetryIsLogged(t *testing.T) {
	dir := t.TempDir()
	l := New("127.0.0.1", 5760)
	if err := l.StartLog(dir, "NavLog.txt"); err != nil {
		t.Fatalf("start log failed: %v", err)
	}

	l.handleMessage(1, 1, heartbeat(true))
	l.handleMessage(1, 1, &common.MessageLocalPositionNed{X: 1, Y: 2, Z: -3})

	if err := l.StopLog(); err != nil {
		t.Fatalf("stop log failed: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "NavLog.txt"))
	if err != nil {
		t.Fatalf("could not read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 records, got %q", lines)
	}
	for i, prefix := range []string{"MsgID.STATE,", "MsgID.LOCAL_POSITION,", "MsgID.LOCAL_VELOCITY,"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("record %d: expected prefix %s, got %s", i, prefix, lines[i])
		}
	}
	if !strings.HasSuffix(lines[1], ",1,2,-3") {
		t.Errorf("unexpected position record %s", lines[1])
	}
}
