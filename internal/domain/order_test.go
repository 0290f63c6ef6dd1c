package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusSetContains(t *testing.T) {
	s := StatusSet{"new", "approved"}
	assert.True(t, s.Contains("new"))
	assert.True(t, s.Contains("approved"))
	assert.False(t, s.Contains("ready"))
	assert.False(t, StatusSet(nil).Contains("new"))
}

func TestOrderActive(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusApproved, StatusReady} {
		assert.True(t, (&Order{Status: status}).Active(), string(status))
	}
	for _, status := range []Status{StatusServed, StatusCancelled} {
		assert.False(t, (&Order{Status: status}).Active(), string(status))
	}
}

func TestOrderItemSubtotal(t *testing.T) {
	it := OrderItem{UnitPrice: 500, Quantity: 2}
	assert.Equal(t, int64(1000), it.Subtotal())
}

func TestDayKey(t *testing.T) {
	// 02:30 March 1 in UTC+5 is still February 29 in UTC; the key is
	// always UTC-based regardless of the instant's zone.
	loc := time.FixedZone("UTC+5", 5*3600)
	at := time.Date(2024, 3, 1, 2, 30, 0, 0, loc)
	assert.Equal(t, "2024-02-29", DayKey(at))
	assert.Equal(t, "2024-03-01", DayKey(time.Date(2024, 3, 1, 0, 0, 1, 0, time.UTC)))
}

func TestEventKindFor(t *testing.T) {
	assert.Equal(t, EventApproved, EventKindFor(StatusApproved))
	assert.Equal(t, EventReady, EventKindFor(StatusReady))
	assert.Equal(t, EventServed, EventKindFor(StatusServed))
	assert.Equal(t, EventCancelled, EventKindFor(StatusCancelled))
	assert.Equal(t, EventNew, EventKindFor(StatusPending))
}
