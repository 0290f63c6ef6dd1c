package domain

import "time"

// EventKind names an order lifecycle event for push fan-out.
type EventKind string

const (
	EventNew       EventKind = "new"
	EventApproved  EventKind = "approved"
	EventReady     EventKind = "ready"
	EventServed    EventKind = "served"
	EventCancelled EventKind = "cancelled"
)

// EventKindFor maps a newly reached status to its push event kind.
func EventKindFor(s Status) EventKind {
	switch s {
	case StatusApproved:
		return EventApproved
	case StatusReady:
		return EventReady
	case StatusServed:
		return EventServed
	case StatusCancelled:
		return EventCancelled
	}
	return EventNew
}

// ChangeKind names a changefeed record emitted by the primary store.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// OrderChange is the changefeed record fanned out to dashboard streams.
// It carries a minimal projection of the order, not the item snapshot.
type OrderChange struct {
	Kind         ChangeKind `json:"kind"`
	AccountID    uint64     `json:"accountId"`
	OrderID      uint64     `json:"orderId"`
	TableID      uint64     `json:"tableId"`
	Status       Status     `json:"status"`
	DailyNumber  uint64     `json:"dailyNumber"`
	Total        int64      `json:"total"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastStatusAt time.Time  `json:"lastStatusAt"`
}

// ChangeFor builds the changefeed record for an order mutation.
func ChangeFor(kind ChangeKind, o *Order) OrderChange {
	return OrderChange{
		Kind:         kind,
		AccountID:    o.AccountID,
		OrderID:      o.ID,
		TableID:      o.TableID,
		Status:       o.Status,
		DailyNumber:  o.DailyNumber,
		Total:        o.Total,
		UpdatedAt:    o.UpdatedAt,
		LastStatusAt: o.LastStatusAt,
	}
}
