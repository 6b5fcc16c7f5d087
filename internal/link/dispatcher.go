package link

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/omochice/handstream/internal/observability"
	"github.com/omochice/handstream/pkg/wire"
)

// Handler receives one inbound message. Handlers run on the dispatcher
// goroutine, so a slow handler delays later subscribers but never the
// receive loop itself.
type Handler func(wire.Message)

type subscription struct {
	id string
	fn Handler
}

// Dispatcher fans inbound messages out to subscribers in registration
// order. The receive loop hands messages off through a bounded queue;
// when the queue is full the oldest pending message is dropped so the
// receive path is never starved.
type Dispatcher struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	subs []subscription

	queue chan wire.Message
	done  chan struct{}
	wg    sync.WaitGroup
}

const dispatchQueueSize = 64

// NewDispatcher creates a dispatcher and starts its delivery goroutine.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		logger: logger.With().Str("component", "dispatcher").Logger(),
		queue:  make(chan wire.Message, dispatchQueueSize),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Subscribe registers a handler and returns its subscription ID.
// Handlers are notified in registration order.
func (d *Dispatcher) Subscribe(fn Handler) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	d.subs = append(d.subs, subscription{id: id, fn: fn})
	return id
}

// Unsubscribe removes the handler with the given subscription ID.
// Unknown IDs are ignored.
func (d *Dispatcher) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, sub := range d.subs {
		if sub.id == id {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return
		}
	}
}

// SubscriberCount returns the number of registered handlers.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Dispatch queues a message for delivery. It never blocks; if the queue
// is full the oldest pending message is discarded.
func (d *Dispatcher) Dispatch(msg wire.Message) {
	select {
	case <-d.done:
		return
	default:
	}

	select {
	case d.queue <- msg:
	default:
		select {
		case <-d.queue:
			d.logger.Warn().Msg("dispatch queue full, dropping oldest message")
		default:
		}
		select {
		case d.queue <- msg:
		case <-d.done:
		}
	}
}

// Close stops the delivery goroutine after draining queued messages.
// Idempotent calls after the first are not supported; the dispatcher is
// closed exactly once by the owning manager.
func (d *Dispatcher) Close() {
	close(d.done)
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.queue:
			d.deliver(msg)
		case <-d.done:
			// Drain anything queued before shutdown.
			for {
				select {
				case msg := <-d.queue:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg wire.Message) {
	d.mu.RLock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	for _, sub := range subs {
		d.notify(sub, msg)
	}
}

// notify isolates subscriber panics so one failing subscriber cannot
// prevent delivery to the rest.
func (d *Dispatcher) notify(sub subscription, msg wire.Message) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordSubscriberPanic()
			d.logger.Error().
				Str("subscription", sub.id).
				Interface("panic", r).
				Msg("subscriber panicked, continuing with remaining subscribers")
		}
	}()
	sub.fn(msg)
}
