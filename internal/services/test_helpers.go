package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"orderflow/internal/domain"
	"orderflow/internal/mocks"
)

const (
	TestAccountID = uint64(7)
	TestTableID   = uint64(3)
	TestProductID = uint64(10)
	TestUnitPrice = int64(500)
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// recordingNotifier stands in for the push fan-out in lifecycle tests.
// It lives outside the mocks package because FanoutSummary is defined here.
type recordingNotifier struct {
	mu    sync.Mutex
	kinds []domain.EventKind
}

func (n *recordingNotifier) Notify(ctx context.Context, kind domain.EventKind, o *domain.Order) FanoutSummary {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return FanoutSummary{}
}

func (n *recordingNotifier) Kinds() []domain.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.EventKind(nil), n.kinds...)
}

type testRig struct {
	svc       *OrderService
	repo      *mocks.MockOrderRepository
	catalog   *mocks.MockCatalog
	mirror    *mocks.MockMirror
	publisher *mocks.MockPublisher
	notifier  *recordingNotifier
	alloc     *mocks.MemoryAllocator
	effects   *EffectQueue
}

func newTestRig() *testRig {
	rig := &testRig{
		repo:      new(mocks.MockOrderRepository),
		catalog:   new(mocks.MockCatalog),
		mirror:    new(mocks.MockMirror),
		publisher: new(mocks.MockPublisher),
		notifier:  &recordingNotifier{},
		alloc:     mocks.NewMemoryAllocator(),
	}
	rig.effects = NewEffectQueue(2, 16, zerolog.Nop())
	rig.svc = NewOrderService(
		rig.repo, rig.alloc, rig.catalog, rig.catalog,
		rig.mirror, rig.notifier, rig.publisher, rig.effects, zerolog.Nop(),
	)
	rig.svc.now = func() time.Time { return testNow }
	return rig
}

func testOrder(status domain.Status) *domain.Order {
	return &domain.Order{
		ID:             42,
		AccountID:      TestAccountID,
		TableID:        TestTableID,
		Status:         status,
		Total:          1000,
		DailyNumber:    1,
		PushedStatuses: domain.StatusSet{"new"},
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
		LastStatusAt:   testNow,
	}
}
