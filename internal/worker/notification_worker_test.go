package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/events"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingNotifier) received() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func TestWorkerDeliversInOrder(t *testing.T) {
	notifier := &recordingNotifier{}
	dispatcher := events.NewInMemoryDispatcher()
	w := StartNotificationWorker(context.Background(), dispatcher, notifier, nil)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "1", Type: events.EventTicketCreated}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "2", Type: events.EventTicketClosed}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "3", Type: events.EventTicketArchived}))
	w.Stop()

	got := notifier.received()
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, "3", got[2].ID)
}

func TestWorkerDropsWhenFull(t *testing.T) {
	notifier := &recordingNotifier{}
	dispatcher := events.NewInMemoryDispatcher()
	w := NewNotificationWorker(notifier, 1, nil)
	w.Register(dispatcher)

	// Not started yet, so the second event finds the queue full.
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "1", Type: events.EventTicketCreated}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "2", Type: events.EventTicketCreated}))

	w.Start(context.Background())
	w.Stop()

	got := notifier.received()
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestWorkerSurvivesNotifierErrors(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	dispatcher := events.NewInMemoryDispatcher()
	w := StartNotificationWorker(context.Background(), dispatcher, notifier, nil)

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketReopened}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketReopened}))
	w.Stop()

	assert.Len(t, notifier.received(), 2)
}

func TestWorkerDropsAfterStop(t *testing.T) {
	notifier := &recordingNotifier{}
	dispatcher := events.NewInMemoryDispatcher()
	w := StartNotificationWorker(context.Background(), dispatcher, notifier, nil)
	w.Stop()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketClosed}))
	assert.Empty(t, notifier.received())
}
