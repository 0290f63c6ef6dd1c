package domain

import "time"

// SequenceCounter stores the last issued value of a named monotonic
// sequence ("orders", "order_items", ...). Mutated only inside an atomic
// increment-and-read; concurrent callers never observe the same value.
type SequenceCounter struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	Value     uint64    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }

// DailySequenceCounter is the per-account, per-UTC-day order numbering.
// A new day key starts the sequence over at 1 without any active reset.
type DailySequenceCounter struct {
	AccountID uint64    `gorm:"primaryKey" json:"accountId"`
	Day       string    `gorm:"primaryKey;size:10" json:"day"`
	Value     uint64    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (DailySequenceCounter) TableName() string { return "daily_sequence_counters" }

// DayKey formats t as the UTC day key used by daily sequences.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
