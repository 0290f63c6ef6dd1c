package domain

import "time"

// ArchiveReason records why an order left the live collection.
type ArchiveReason string

const (
	ArchiveReasonServed    ArchiveReason = "served"
	ArchiveReasonCancelled ArchiveReason = "cancelled"
)

const (
	// MaxOrderLines bounds the distinct product lines per order after
	// quantity aggregation by product id.
	MaxOrderLines = 40
	// MaxLineQuantity bounds the quantity of a single aggregated line.
	MaxLineQuantity = 50
	// MaxOrderTotal bounds the server-computed order value.
	MaxOrderTotal = 1_000_000
	// MaxNoteLength bounds the optional free-text note.
	MaxNoteLength = 300
)

type Order struct {
	ID             uint64    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	AccountID      uint64    `json:"accountId" gorm:"not null;index:idx_orders_account"`
	TableID        uint64    `json:"tableId" gorm:"not null;index:idx_orders_table"`
	Status         Status    `json:"status" gorm:"type:varchar(16);not null;index"`
	Total          int64     `json:"total" gorm:"not null"`
	DailyNumber    uint64    `json:"dailyNumber" gorm:"not null"`
	Note           string    `json:"note,omitempty" gorm:"size:300"`
	PushedStatuses StatusSet `json:"pushedStatuses" gorm:"type:json;serializer:json"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	LastStatusAt   time.Time `json:"lastStatusAt"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
}

// OrderItem snapshots a product at order time. The snapshot is immutable:
// catalog changes after creation never alter stored names or prices.
type OrderItem struct {
	ID        uint64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID   uint64 `json:"orderId" gorm:"not null;index"`
	ProductID uint64 `json:"productId" gorm:"not null"`
	Name      string `json:"name" gorm:"size:255;not null"`
	UnitPrice int64  `json:"unitPrice" gorm:"not null"`
	Quantity  int    `json:"quantity" gorm:"not null"`
}

func (i OrderItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// StatusSet is the set of status names already pushed for an order. It is
// the idempotency guard: a lifecycle event is notified and archived at most
// once per status, even under retried requests.
type StatusSet []string

func (s StatusSet) Contains(name string) bool {
	for _, v := range s {
		if v == name {
			return true
		}
	}
	return false
}

// Active reports whether an order still occupies its table. At most one
// active order may exist per table.
func (o *Order) Active() bool {
	switch o.Status {
	case StatusPending, StatusApproved, StatusReady:
		return true
	}
	return false
}

// ArchivedOrder is a write-once copy of a terminal order.
type ArchivedOrder struct {
	ID          uint64        `json:"id" gorm:"primaryKey;autoIncrement:false"`
	AccountID   uint64        `json:"accountId" gorm:"not null;index"`
	TableID     uint64        `json:"tableId" gorm:"not null"`
	Status      Status        `json:"status" gorm:"type:varchar(16);not null"`
	Total       int64         `json:"total" gorm:"not null"`
	DailyNumber uint64        `json:"dailyNumber" gorm:"not null"`
	Note        string        `json:"note,omitempty" gorm:"size:300"`
	Reason      ArchiveReason `json:"reason" gorm:"type:varchar(16);not null"`
	CreatedAt   time.Time     `json:"createdAt"`
	ArchivedAt  time.Time     `json:"archivedAt"`

	Items []ArchivedOrderItem `json:"items" gorm:"foreignKey:OrderID"`
}

type ArchivedOrderItem struct {
	ID        uint64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID   uint64 `json:"orderId" gorm:"not null;index"`
	ProductID uint64 `json:"productId" gorm:"not null"`
	Name      string `json:"name" gorm:"size:255;not null"`
	UnitPrice int64  `json:"unitPrice" gorm:"not null"`
	Quantity  int    `json:"quantity" gorm:"not null"`
}
