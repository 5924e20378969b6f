package watchdog

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tiiuae/backyardflyer/internal/types"
)

// watchdog reports a flight mode that has lasted longer than timeout. It
// only observes: the mission keeps waiting.
type watchdog struct {
	timeout  time.Duration
	inbox    chan types.Message
	mode     string
	since    time.Time
	active   bool
	reported bool
}

func New(timeout time.Duration) types.MessageHandler {
	return newWatchdog(timeout, time.Now())
}

func newWatchdog(timeout time.Duration, start time.Time) *watchdog {
	return &watchdog{
		timeout: timeout,
		inbox:   make(chan types.Message, 10),
		mode:    "manual",
		since:   start,
		active:  true,
	}
}

func (w *watchdog) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	ticker := time.NewTicker(checkInterval(w.timeout))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Watchdog shutting down")
			return
		case msg := <-w.inbox:
			w.handleMessage(msg, time.Now())
		case now := <-ticker.C:
			if stall, ok := w.check(now); ok {
				post(types.CreateMessage("stall-detected", "self", "self", stall))
			}
		}
	}
}

func (w *watchdog) Receive(message types.Message) {
	switch message.Message.(type) {
	case types.ModeChanged, types.MissionCompleted:
		w.inbox <- message
	}
}

func (w *watchdog) handleMessage(msg types.Message, now time.Time) {
	switch m := msg.Message.(type) {
	case types.ModeChanged:
		w.mode = m.To
		w.since = now
		w.reported = false
	case types.MissionCompleted:
		w.active = false
	}
}

// check reports a stall once per mode entry.
func (w *watchdog) check(now time.Time) (types.StallDetected, bool) {
	if !w.active || w.reported {
		return types.StallDetected{}, false
	}
	after := now.Sub(w.since)
	if after < w.timeout {
		return types.StallDetected{}, false
	}

	w.reported = true
	log.Printf("WARNING: mission stalled in %s mode for %v", w.mode, after.Round(time.Second))
	return types.StallDetected{Mode: w.mode, Since: w.since, After: after}, true
}

func checkInterval(timeout time.Duration) time.Duration {
	interval := timeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > time.Second {
		interval = time.Second
	}
	return interval
}
