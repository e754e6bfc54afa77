package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
)

const defaultQueueSize = 64

// Notifier delivers one event.
type Notifier interface {
	Notify(ctx context.Context, event events.Event) error
}

// NotificationWorker hands lifecycle events to a Notifier on its own
// goroutine so slow deliveries never hold up interaction handling.
type NotificationWorker struct {
	notifier Notifier
	logger   *zap.Logger
	queue    chan events.Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewNotificationWorker creates a worker with room for queueSize pending
// events. Events published while the queue is full are dropped.
func NewNotificationWorker(notifier Notifier, queueSize int, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan events.Event, queueSize),
		done:     make(chan struct{}),
	}
}

// Register subscribes the worker to every lifecycle event on dispatcher.
func (w *NotificationWorker) Register(dispatcher events.Dispatcher) {
	for _, et := range events.LifecycleEvents() {
		dispatcher.Subscribe(et, w.enqueue)
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Debug("notification worker stopped; dropping event", zap.String("event_type", string(event.Type)))
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("channel_id", event.ChannelID))
	}
	return nil
}

// Start consumes the queue until Stop is called or ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.queue:
				if !ok {
					return
				}
				if err := w.notifier.Notify(ctx, event); err != nil {
					w.logger.Warn("notification failed",
						zap.String("event_type", string(event.Type)),
						zap.Error(err))
				}
			}
		}
	}()
}

// Stop closes the queue and waits for queued events to be delivered. Events
// published afterwards are dropped. It must be called after Start.
func (w *NotificationWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}

// StartNotificationWorker wires notifier to dispatcher and starts delivery.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger) *NotificationWorker {
	w := NewNotificationWorker(notifier, defaultQueueSize, logger)
	w.Register(dispatcher)
	w.Start(ctx)
	return w
}
