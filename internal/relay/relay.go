package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tiiuae/backyardflyer/internal/types"
)

const (
	qos    = 1 // QoS 2 isn't supported in GCP
	retain = false

	telemetryInterval = 100 * time.Millisecond
)

// Publisher is the part of mqtt.Client the relay uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type telemetry struct {
	Timestamp int64
	MessageID string

	LocationUpdated  bool
	Lat              float64
	Lon              float64
	AltitudeFromHome float64
	DistanceFromHome float64

	StateUpdated bool
	Armed        bool
	Mode         string
}

type relay struct {
	client   Publisher
	deviceID string
	inbox    chan types.Message

	mu      sync.Mutex
	sent    bool
	home    *types.GlobalPosition
	current telemetry
}

// New forwards mission events to /devices/<id>/events/<type> and publishes
// a telemetry summary at most 10 times per second.
func New(client Publisher, deviceID string) types.MessageHandler {
	return newRelay(client, deviceID)
}

func newRelay(client Publisher, deviceID string) *relay {
	return &relay{
		client:   client,
		deviceID: deviceID,
		inbox:    make(chan types.Message, 20),
		sent:     true,
		current:  telemetry{Mode: "manual"},
	}
}

func (r *relay) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	ticker := time.NewTicker(telemetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Relay shutting down")
			return
		case msg := <-r.inbox:
			r.publishEvent(msg)
		case <-ticker.C:
			r.publishTelemetry()
		}
	}
}

func (r *relay) Receive(message types.Message) {
	switch m := message.Message.(type) {
	case types.GlobalPosition:
		r.updateGlobal(m)
	case types.LocalPosition:
		r.updateLocal(m)
	case types.VehicleState:
		r.updateState(func(t *telemetry) { t.Armed = m.Armed })
		r.inbox <- message
	case types.ModeChanged:
		r.updateState(func(t *telemetry) { t.Mode = m.To })
		r.inbox <- message
	case types.WaypointTargeted, types.MissionCompleted, types.StallDetected:
		r.inbox <- message
	}
}

func (r *relay) updateGlobal(m types.GlobalPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.home == nil {
		home := m
		r.home = &home
	}
	r.current.Lat = m.Lat
	r.current.Lon = m.Lon
	r.current.DistanceFromHome = groundDistance(*r.home, m)
	r.current.LocationUpdated = true
	r.sent = false
}

func (r *relay) updateLocal(m types.LocalPosition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current.AltitudeFromHome = -m.Position.Z
	r.sent = false
}

func (r *relay) updateState(update func(t *telemetry)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	update(&r.current)
	r.current.StateUpdated = true
	r.sent = false
}

func (r *relay) publishEvent(msg types.Message) {
	out, err := msg.ToJsonMessage()
	if err != nil {
		log.Printf("Relay: could not marshal %s: %v", msg.MessageType, err)
		return
	}
	b, err := json.Marshal(out)
	if err != nil {
		log.Printf("Relay: could not marshal %s: %v", msg.MessageType, err)
		return
	}
	r.client.Publish(r.topic(msg.MessageType), qos, retain, string(b))
}

// publishTelemetry skips the round when nothing changed since the last one.
func (r *relay) publishTelemetry() {
	r.mu.Lock()
	if r.sent {
		r.mu.Unlock()
		return
	}
	r.current.Timestamp = time.Now().UnixNano() / 1000
	r.current.MessageID = uuid.New().String()
	b, _ := json.Marshal(r.current)
	r.sent = true
	r.current.LocationUpdated = false
	r.current.StateUpdated = false
	r.mu.Unlock()

	r.client.Publish(r.topic("telemetry"), qos, retain, string(b))
}

func (r *relay) topic(eventType string) string {
	return fmt.Sprintf("/devices/%s/events/%s", r.deviceID, eventType)
}
