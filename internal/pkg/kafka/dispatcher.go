package kafka

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// publisher is satisfied by Producer; split out so the dispatcher can be
// tested without a broker.
type publisher interface {
	Publish(ctx context.Context, topic, eventType, key string, data any) error
}

type envelope struct {
	topic     string
	eventType string
	key       string
	data      any
}

// Dispatcher decouples request handling from broker round-trips: producers
// enqueue onto a bounded queue and a background goroutine drains it to the
// Producer. Enqueue never blocks the caller. A publish failure is logged
// with enough context for manual reconciliation and never rolls back the
// state change that triggered it.
type Dispatcher struct {
	queue      chan envelope
	out        publisher
	logger     *zap.Logger
	wg         sync.WaitGroup
	closeOnce  sync.Once
	publishTTL time.Duration

	// mu orders Enqueue against Close so a late producer, such as a consumer
	// finishing during shutdown, drops its event instead of sending on a
	// closed channel.
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a Dispatcher with the given queue capacity.
func NewDispatcher(out publisher, queueSize int, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:      make(chan envelope, queueSize),
		out:        out,
		logger:     logger,
		publishTTL: 10 * time.Second,
	}
}

// Start launches the background drain loop. It returns immediately.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for env := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.publishTTL)
		err := d.out.Publish(ctx, env.topic, env.eventType, env.key, env.data)
		cancel()
		if err != nil {
			d.logger.Error("event publish failed; state change stands, reconcile manually",
				zap.String("topic", env.topic),
				zap.String("type", env.eventType),
				zap.String("key", env.key),
				zap.Error(err),
			)
		}
	}
}

// Enqueue hands an event to the dispatcher, fire-and-forget. When the queue
// is full, or the dispatcher is already closed, the event is dropped and
// logged rather than blocking or panicking the caller.
func (d *Dispatcher) Enqueue(topic, eventType, key string, data any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Error("dispatcher closed, dropping event",
			zap.String("topic", topic),
			zap.String("type", eventType),
			zap.String("key", key),
		)
		return
	}
	select {
	case d.queue <- envelope{topic: topic, eventType: eventType, key: key, data: data}:
	default:
		d.logger.Error("outbound event queue full, dropping event",
			zap.String("topic", topic),
			zap.String("type", eventType),
			zap.String("key", key),
		)
	}
}

// Close stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.queue)
	})
	d.wg.Wait()
}
