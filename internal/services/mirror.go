package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"orderflow/internal/domain"
)

// MirrorPublisher propagates a minimal order projection into redis for
// low-latency client subscriptions. Best effort only: the primary store is
// authoritative and every failure here is logged and swallowed by the
// caller's effect queue.
type MirrorPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
	ttl time.Duration
}

func NewMirrorPublisher(rdb *redis.Client, log zerolog.Logger) *MirrorPublisher {
	return &MirrorPublisher{rdb: rdb, log: log, ttl: 24 * time.Hour}
}

func activePointerKey(accountID, tableID uint64) string {
	return fmt.Sprintf("table:%d:%d:active", accountID, tableID)
}

func orderKey(id uint64) string {
	return fmt.Sprintf("order:%d", id)
}

func (m *MirrorPublisher) PublishCreate(ctx context.Context, o *domain.Order) error {
	if err := m.writeProjection(ctx, o); err != nil {
		return err
	}
	return m.rdb.Set(ctx, activePointerKey(o.AccountID, o.TableID), o.ID, m.ttl).Err()
}

func (m *MirrorPublisher) PublishUpdate(ctx context.Context, o *domain.Order) error {
	return m.writeProjection(ctx, o)
}

// ClearActivePointer tells subscribed clients no order is in flight for the
// table anymore (serve or cancel).
func (m *MirrorPublisher) ClearActivePointer(ctx context.Context, o *domain.Order) error {
	pipe := m.rdb.Pipeline()
	pipe.Del(ctx, activePointerKey(o.AccountID, o.TableID))
	pipe.Del(ctx, orderKey(o.ID))
	_, err := pipe.Exec(ctx)
	return err
}

func (m *MirrorPublisher) writeProjection(ctx context.Context, o *domain.Order) error {
	key := orderKey(o.ID)
	pipe := m.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"status":         string(o.Status),
		"table_id":       o.TableID,
		"updated_at":     o.UpdatedAt.UTC().Format(time.RFC3339),
		"last_status_at": o.LastStatusAt.UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, key, m.ttl)
	_, err := pipe.Exec(ctx)
	return err
}
