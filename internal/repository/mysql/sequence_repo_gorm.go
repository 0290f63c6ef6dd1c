package mysql

import (
	"context"

	"gorm.io/gorm"

	"orderflow/internal/repository"
)

type sequenceRepo struct {
	db *gorm.DB
}

// NewSequenceAllocator returns the MySQL-backed allocator. Each call is a
// single-row upsert-increment plus read-back in its own transaction, so two
// concurrent callers on the same key always observe distinct values.
func NewSequenceAllocator(db *gorm.DB) repository.SequenceAllocator {
	return &sequenceRepo{db: db}
}

func (r *sequenceRepo) Next(ctx context.Context, name string) (uint64, error) {
	var value uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec(
			"INSERT INTO sequence_counters (name, value, updated_at) VALUES (?, 1, NOW()) "+
				"ON DUPLICATE KEY UPDATE value = value + 1, updated_at = NOW()", name,
		).Error
		if err != nil {
			return err
		}
		return tx.Raw("SELECT value FROM sequence_counters WHERE name = ?", name).Scan(&value).Error
	}, serializable)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (r *sequenceRepo) NextDaily(ctx context.Context, accountID uint64, day string) (uint64, error) {
	var value uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec(
			"INSERT INTO daily_sequence_counters (account_id, day, value, updated_at) VALUES (?, ?, 1, NOW()) "+
				"ON DUPLICATE KEY UPDATE value = value + 1, updated_at = NOW()", accountID, day,
		).Error
		if err != nil {
			return err
		}
		return tx.Raw(
			"SELECT value FROM daily_sequence_counters WHERE account_id = ? AND day = ?",
			accountID, day,
		).Scan(&value).Error
	}, serializable)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (r *sequenceRepo) ResetDaily(ctx context.Context, accountID uint64, day string) error {
	return r.db.WithContext(ctx).Exec(
		"INSERT INTO daily_sequence_counters (account_id, day, value, updated_at) VALUES (?, ?, 0, NOW()) "+
			"ON DUPLICATE KEY UPDATE value = 0, updated_at = NOW()", accountID, day,
	).Error
}
