package types

import (
	"context"
	"log"
	"sync"
)

type PostFn = func(msg Message)

// MessageHandler is a bus receiver. Run is started on its own goroutine
// and must return once ctx is done. Receive is called from the bus
// goroutine for every message and must not block for long.
type MessageHandler interface {
	Run(ctx context.Context, wg *sync.WaitGroup, post PostFn)
	Receive(message Message)
}

type MessageBus struct {
	bus       chan Message
	receivers []MessageHandler
}

func NewMessageBus(bus chan Message, receivers ...MessageHandler) *MessageBus {
	return &MessageBus{bus, receivers}
}

// Post queues msg for every receiver. Safe to call from any goroutine.
func (mb *MessageBus) Post(msg Message) {
	busLen := len(mb.bus)
	busCapacity := cap(mb.bus)
	if busLen > busCapacity/2 {
		log.Printf("WARNING: Bus capacity over 50%% [ %d / %d ]", busLen, busCapacity)
	}
	mb.bus <- msg
}

// Run dispatches until ctx is done. Receivers are tracked by wg.
func (mb *MessageBus) Run(ctx context.Context, wg *sync.WaitGroup) {
	for _, x := range mb.receivers {
		wg.Add(1)
		go func(x MessageHandler) {
			defer wg.Done()
			x.Run(ctx, wg, mb.Post)
		}(x)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-mb.bus:
			for _, x := range mb.receivers {
				x.Receive(msg)
			}
		}
	}
}
