package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain"
)

func delivery(t *testing.T, change domain.OrderChange) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(change)
	require.NoError(t, err)
	return amqp.Delivery{Body: body}
}

func recvChange(t *testing.T, sub *Subscription) domain.OrderChange {
	t.Helper()
	select {
	case c := <-sub.Events():
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return domain.OrderChange{}
	}
}

func TestBroadcaster_DispatchesPerAccount(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	deliveries := make(chan amqp.Delivery, 4)
	go b.Run(deliveries)

	mine := b.Subscribe(7, "")
	other := b.Subscribe(8, "")
	defer mine.Close()
	defer other.Close()

	deliveries <- delivery(t, domain.OrderChange{Kind: domain.ChangeCreated, AccountID: 7, OrderID: 1, Status: domain.StatusPending})

	got := recvChange(t, mine)
	assert.Equal(t, domain.ChangeCreated, got.Kind)
	assert.Equal(t, uint64(1), got.OrderID)

	select {
	case c := <-other.Events():
		t.Fatalf("account 8 received account 7 change: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_StatusFilter(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	deliveries := make(chan amqp.Delivery, 4)
	go b.Run(deliveries)

	sub := b.Subscribe(7, domain.StatusReady)
	defer sub.Close()

	deliveries <- delivery(t, domain.OrderChange{Kind: domain.ChangeUpdated, AccountID: 7, OrderID: 1, Status: domain.StatusApproved})
	deliveries <- delivery(t, domain.OrderChange{Kind: domain.ChangeUpdated, AccountID: 7, OrderID: 2, Status: domain.StatusReady})

	got := recvChange(t, sub)
	assert.Equal(t, uint64(2), got.OrderID, "filtered subscription only sees matching statuses")
}

func TestBroadcaster_CloseReleasesSubscription(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	sub := b.Subscribe(7, "")
	sub.Close()
	sub.Close() // safe to call twice

	b.mu.RLock()
	defer b.mu.RUnlock()
	assert.Empty(t, b.subs, "closed subscription must not leak")
}

func TestBroadcaster_UpstreamFailureSignals(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	deliveries := make(chan amqp.Delivery)
	go b.Run(deliveries)

	close(deliveries)

	select {
	case <-b.Failed():
	case <-time.After(time.Second):
		t.Fatal("Failed() not closed after upstream termination")
	}
}

func TestBroadcaster_DiscardsMalformedRecords(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	deliveries := make(chan amqp.Delivery, 2)
	go b.Run(deliveries)

	sub := b.Subscribe(7, "")
	defer sub.Close()

	deliveries <- amqp.Delivery{Body: []byte("not json")}
	deliveries <- delivery(t, domain.OrderChange{Kind: domain.ChangeCreated, AccountID: 7, OrderID: 5})

	got := recvChange(t, sub)
	assert.Equal(t, uint64(5), got.OrderID, "stream survives a malformed record")
}
