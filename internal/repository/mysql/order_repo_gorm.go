package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderflow/internal/domain"
	"orderflow/internal/repository"
)

var activeStatuses = []domain.Status{domain.StatusPending, domain.StatusApproved, domain.StatusReady}

// serializable is the transaction mode for every order mutation. Per-document
// serializability is the sole concurrency-control mechanism; there is no
// separate locking layer.
var serializable = &sql.TxOptions{Isolation: sql.LevelSerializable}

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Model(&domain.Order{}).
			Where("account_id = ? AND table_id = ? AND status IN ?", order.AccountID, order.TableID, activeStatuses).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrActiveOrderExists
		}
		if err := tx.Omit("Items").Create(order).Error; err != nil {
			return err
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}
		return tx.Create(&order.Items).Error
	}, serializable)
}

func (r *orderRepo) FindByID(ctx context.Context, accountID, id uint64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("id = ? AND account_id = ?", id, accountID).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByAccount(ctx context.Context, accountID uint64, status domain.Status) ([]domain.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items").Where("account_id = ?", accountID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.Order
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) HasActiveOrder(ctx context.Context, accountID, tableID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("account_id = ? AND table_id = ? AND status IN ?", accountID, tableID, activeStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *orderRepo) Mutate(ctx context.Context, accountID, id uint64, apply func(*domain.Order) error) (*domain.Order, error) {
	var out *domain.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o domain.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND account_id = ?", id, accountID).
			First(&o).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOrderNotFound
			}
			return err
		}
		if err := apply(&o); err != nil {
			return err
		}
		o.UpdatedAt = time.Now().UTC()
		if err := tx.Omit("Items").Save(&o).Error; err != nil {
			return err
		}
		out = &o
		return nil
	}, serializable)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", out.ID).Find(&out.Items).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) Archive(ctx context.Context, id uint64, reason domain.ArchiveReason) (bool, error) {
	archived := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o domain.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").Where("id = ?", id).First(&o).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Already archived by a concurrent trigger; no-op.
				return nil
			}
			return err
		}
		rec := domain.ArchivedOrder{
			ID:          o.ID,
			AccountID:   o.AccountID,
			TableID:     o.TableID,
			Status:      o.Status,
			Total:       o.Total,
			DailyNumber: o.DailyNumber,
			Note:        o.Note,
			Reason:      reason,
			CreatedAt:   o.CreatedAt,
			ArchivedAt:  time.Now().UTC(),
		}
		for _, it := range o.Items {
			rec.Items = append(rec.Items, domain.ArchivedOrderItem{
				ID:        it.ID,
				OrderID:   it.OrderID,
				ProductID: it.ProductID,
				Name:      it.Name,
				UnitPrice: it.UnitPrice,
				Quantity:  it.Quantity,
			})
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", o.ID).Delete(&domain.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&domain.Order{}, o.ID).Error; err != nil {
			return err
		}
		archived = true
		return nil
	}, serializable)
	if err != nil {
		return false, err
	}
	return archived, nil
}
