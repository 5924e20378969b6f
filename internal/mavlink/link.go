package mavlink

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/pkg/errors"

	"github.com/tiiuae/backyardflyer/internal/mission"
	"github.com/tiiuae/backyardflyer/internal/navlog"
	"github.com/tiiuae/backyardflyer/internal/types"
)

const gcsSystemID = 255

type writer interface {
	WriteMessageAll(m message.Message) error
}

// Link is a MAVLink connection to one vehicle. Telemetry callbacks run on
// the goroutine that called Start, one at a time.
type Link struct {
	address  string
	deviceID string
	post     types.PostFn
	navlog   *navlog.Log

	mu        sync.Mutex
	out       writer
	target    target
	telemetry telemetry
	setpoint  *common.MessageSetPositionTargetLocalNed
	callbacks map[mission.EventKind][]func()

	stop     chan struct{}
	stopOnce sync.Once
}

type target struct {
	systemID    uint8
	componentID uint8
}

type Option func(*Link)

// WithPost sets where decoded telemetry is published.
func WithPost(post types.PostFn) Option {
	return func(l *Link) {
		l.post = post
	}
}

func WithDeviceID(deviceID string) Option {
	return func(l *Link) {
		l.deviceID = deviceID
	}
}

func New(host string, port int, opts ...Option) *Link {
	l := &Link{
		address:   fmt.Sprintf("%s:%d", host, port),
		deviceID:  "self",
		navlog:    navlog.New(),
		target:    target{1, 1},
		callbacks: make(map[mission.EventKind][]func()),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Link) Address() string {
	return l.address
}

func (l *Link) RegisterCallback(kind mission.EventKind, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks[kind] = append(l.callbacks[kind], fn)
}

func (l *Link) StartLog(dir, name string) error {
	return l.navlog.Start(dir, name)
}

func (l *Link) StopLog() error {
	return l.navlog.Stop()
}

func (l *Link) Start(ctx context.Context) error {
	log.Printf("MAVLink: connecting to %s", l.address)
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints: []gomavlib.EndpointConf{
			gomavlib.EndpointTCPClient{Address: l.address},
		},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: gcsSystemID,
	})
	if err != nil {
		return errors.WithMessagef(err, "Could not create MAVLink node for %s", l.address)
	}
	defer node.Close()

	l.setWriter(node)
	defer l.setWriter(nil)

	streamCtx, cancelStream := context.WithCancel(ctx)
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		l.streamSetpoints(streamCtx, setpointInterval)
	}()
	defer func() {
		cancelStream()
		<-streamDone
	}()

	return l.runEventLoop(ctx, node.Events())
}

// Stop ends the run loop. Safe to call from a callback.
func (l *Link) Stop() {
	l.stopOnce.Do(func() {
		log.Printf("MAVLink: stopping")
		close(l.stop)
	})
}

func (l *Link) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

func (l *Link) runEventLoop(ctx context.Context, events <-chan gomavlib.Event) error {
	for {
		select {
		case <-ctx.Done():
			log.Println("MAVLink shutting down")
			return nil
		case <-l.stop:
			return nil
		case e, ok := <-events:
			if !ok {
				return errors.New("MAVLink event channel closed")
			}
			switch ev := e.(type) {
			case *gomavlib.EventFrame:
				l.handleMessage(ev.SystemID(), ev.ComponentID(), ev.Message())
			case *gomavlib.EventChannelOpen:
				log.Printf("MAVLink: channel open: %v", ev.Channel)
			case *gomavlib.EventChannelClose:
				log.Printf("MAVLink: channel closed: %v", ev.Channel)
			case *gomavlib.EventParseError:
				log.Printf("MAVLink: parse error: %v", ev.Error)
			}
		}
	}
}

func (l *Link) dispatch(kind mission.EventKind) {
	l.mu.Lock()
	callbacks := l.callbacks[kind]
	l.mu.Unlock()

	for _, fn := range callbacks {
		if l.stopped() {
			return
		}
		fn()
	}
}

func (l *Link) setWriter(w writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

func (l *Link) publish(messageType string, msg interface{}) {
	if l.post == nil {
		return
	}
	l.post(types.CreateMessage(messageType, l.deviceID, l.deviceID, msg))
}
