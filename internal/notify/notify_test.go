package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant-ops/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func TestNewEvent(t *testing.T) {
	rid := uuid.New()
	e, err := notify.NewEvent(rid, notify.EntityTable, notify.OpUpdate, map[string]any{"id": 3, "status": "FREE"})
	require.NoError(t, err)

	assert.Equal(t, rid, e.RestaurantID)
	assert.Equal(t, "table.update", e.RoutingKey())
	assert.JSONEq(t, `{"id":3,"status":"FREE"}`, string(e.Payload))
	assert.False(t, e.At.IsZero())
}

func TestNewEventRejectsUnmarshalablePayload(t *testing.T) {
	_, err := notify.NewEvent(uuid.New(), notify.EntityOrder, notify.OpInsert, make(chan int))
	assert.Error(t, err)
}

func TestFanoutDeliversToEveryPublisher(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	e := notify.Event{Entity: notify.EntityOrder, Op: notify.OpInsert, RestaurantID: uuid.New()}

	require.NoError(t, notify.Fanout{a, b}.Publish(context.Background(), e))
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestFanoutReturnsFailure(t *testing.T) {
	boom := errors.New("broker down")
	ok, failing := &recorder{}, &recorder{err: boom}

	err := notify.Fanout{ok, failing}.Publish(context.Background(), notify.Event{})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, failing.events, 1)
}

func TestNopAndEmptyFanout(t *testing.T) {
	assert.NoError(t, notify.Nop{}.Publish(context.Background(), notify.Event{}))
	assert.NoError(t, notify.Fanout{}.Publish(context.Background(), notify.Event{}))
}
