package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain"
	"orderflow/internal/infra"
	"orderflow/internal/mocks"
)

func wireHappyCatalog(rig *testRig) {
	rig.catalog.On("GetAccount", mock.Anything, TestAccountID).
		Return(&infra.AccountInfo{ID: TestAccountID, Active: true}, nil)
	rig.catalog.On("GetTable", mock.Anything, TestAccountID, TestTableID).
		Return(&infra.TableInfo{ID: TestTableID, AccountID: TestAccountID}, nil)
	rig.catalog.On("GetProduct", mock.Anything, TestAccountID, TestProductID).
		Return(&infra.ProductInfo{
			ID: TestProductID, AccountID: TestAccountID,
			Name: "Lamb Kebab", Price: TestUnitPrice, Available: true,
		}, nil)
}

func wireHappyEffects(rig *testRig) {
	rig.mirror.On("PublishCreate", mock.Anything, mock.Anything).Return(nil).Maybe()
	rig.mirror.On("PublishUpdate", mock.Anything, mock.Anything).Return(nil).Maybe()
	rig.mirror.On("ClearActivePointer", mock.Anything, mock.Anything).Return(nil).Maybe()
	rig.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	rig.repo.On("Archive", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Maybe()
}

func TestOrderService_CreateOrder(t *testing.T) {
	baseInput := CreateOrderInput{
		AccountID: TestAccountID,
		TableID:   TestTableID,
		Lines:     []OrderLine{{ProductID: TestProductID, Quantity: 2}},
	}

	tests := []struct {
		name       string
		input      CreateOrderInput
		setupMocks func(*testRig)
		wantErr    *domain.Error
	}{
		{
			name:  "first order of the day",
			input: baseInput,
			setupMocks: func(rig *testRig) {
				wireHappyCatalog(rig)
				rig.repo.On("HasActiveOrder", mock.Anything, TestAccountID, TestTableID).Return(false, nil)
				rig.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
			},
		},
		{
			name:  "rejects second order while table is occupied",
			input: baseInput,
			setupMocks: func(rig *testRig) {
				wireHappyCatalog(rig)
				rig.repo.On("HasActiveOrder", mock.Anything, TestAccountID, TestTableID).Return(true, nil)
			},
			wantErr: domain.ErrActiveOrderExists,
		},
		{
			name:  "inactive account",
			input: baseInput,
			setupMocks: func(rig *testRig) {
				rig.catalog.On("GetAccount", mock.Anything, TestAccountID).
					Return(&infra.AccountInfo{ID: TestAccountID, Active: false}, nil)
			},
			wantErr: domain.ErrSystemInactive,
		},
		{
			name:  "unknown account",
			input: baseInput,
			setupMocks: func(rig *testRig) {
				rig.catalog.On("GetAccount", mock.Anything, TestAccountID).Return(nil, nil)
			},
			wantErr: domain.ErrSystemInactive,
		},
		{
			name:  "table belongs to another account",
			input: baseInput,
			setupMocks: func(rig *testRig) {
				rig.catalog.On("GetAccount", mock.Anything, TestAccountID).
					Return(&infra.AccountInfo{ID: TestAccountID, Active: true}, nil)
				rig.catalog.On("GetTable", mock.Anything, TestAccountID, TestTableID).
					Return(&infra.TableInfo{ID: TestTableID, AccountID: 99}, nil)
			},
			wantErr: domain.ErrTableNotFound,
		},
		{
			name:  "product missing",
			input: baseInput,
			setupMocks: func(rig *testRig) {
				rig.catalog.On("GetAccount", mock.Anything, TestAccountID).
					Return(&infra.AccountInfo{ID: TestAccountID, Active: true}, nil)
				rig.catalog.On("GetTable", mock.Anything, TestAccountID, TestTableID).
					Return(&infra.TableInfo{ID: TestTableID, AccountID: TestAccountID}, nil)
				rig.repo.On("HasActiveOrder", mock.Anything, TestAccountID, TestTableID).Return(false, nil)
				rig.catalog.On("GetProduct", mock.Anything, TestAccountID, TestProductID).Return(nil, nil)
			},
			wantErr: domain.ErrProductNotFound,
		},
		{
			name:  "product unavailable",
			input: baseInput,
			setupMocks: func(rig *testRig) {
				rig.catalog.On("GetAccount", mock.Anything, TestAccountID).
					Return(&infra.AccountInfo{ID: TestAccountID, Active: true}, nil)
				rig.catalog.On("GetTable", mock.Anything, TestAccountID, TestTableID).
					Return(&infra.TableInfo{ID: TestTableID, AccountID: TestAccountID}, nil)
				rig.repo.On("HasActiveOrder", mock.Anything, TestAccountID, TestTableID).Return(false, nil)
				rig.catalog.On("GetProduct", mock.Anything, TestAccountID, TestProductID).
					Return(&infra.ProductInfo{
						ID: TestProductID, AccountID: TestAccountID,
						Name: "Lamb Kebab", Price: TestUnitPrice, Available: false,
					}, nil)
			},
			wantErr: domain.ErrProductNotFound,
		},
		{
			name: "total above cap",
			input: CreateOrderInput{
				AccountID: TestAccountID,
				TableID:   TestTableID,
				Lines:     []OrderLine{{ProductID: TestProductID, Quantity: 3}},
			},
			setupMocks: func(rig *testRig) {
				rig.catalog.On("GetAccount", mock.Anything, TestAccountID).
					Return(&infra.AccountInfo{ID: TestAccountID, Active: true}, nil)
				rig.catalog.On("GetTable", mock.Anything, TestAccountID, TestTableID).
					Return(&infra.TableInfo{ID: TestTableID, AccountID: TestAccountID}, nil)
				rig.repo.On("HasActiveOrder", mock.Anything, TestAccountID, TestTableID).Return(false, nil)
				rig.catalog.On("GetProduct", mock.Anything, TestAccountID, TestProductID).
					Return(&infra.ProductInfo{
						ID: TestProductID, AccountID: TestAccountID,
						Name: "Truffle", Price: 400_000, Available: true,
					}, nil)
			},
			wantErr: domain.ErrTotalLimit,
		},
		{
			name: "empty items",
			input: CreateOrderInput{
				AccountID: TestAccountID,
				TableID:   TestTableID,
			},
			setupMocks: func(rig *testRig) {},
			wantErr:    domain.ErrInvalidItems,
		},
		{
			name: "line quantity above cap after aggregation",
			input: CreateOrderInput{
				AccountID: TestAccountID,
				TableID:   TestTableID,
				Lines: []OrderLine{
					{ProductID: TestProductID, Quantity: 30},
					{ProductID: TestProductID, Quantity: 30},
				},
			},
			setupMocks: func(rig *testRig) {},
			wantErr:    domain.ErrInvalidItems,
		},
		{
			name: "note too long",
			input: CreateOrderInput{
				AccountID: TestAccountID,
				TableID:   TestTableID,
				Note:      strings.Repeat("x", domain.MaxNoteLength+1),
				Lines:     []OrderLine{{ProductID: TestProductID, Quantity: 1}},
			},
			setupMocks: func(rig *testRig) {},
			wantErr:    domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig()
			tt.setupMocks(rig)
			wireHappyEffects(rig)

			order, err := rig.svc.CreateOrder(context.Background(), tt.input)
			rig.effects.Drain()

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, order)
				assert.Empty(t, rig.notifier.Kinds(), "failed creation must not notify")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, order)
			assert.Equal(t, domain.StatusPending, order.Status)
			assert.Equal(t, int64(1000), order.Total, "total is 2 * unit price, server-side")
			assert.Equal(t, uint64(1), order.DailyNumber, "first order of the UTC day")
			assert.Equal(t, domain.StatusSet{"new"}, order.PushedStatuses)
			require.Len(t, order.Items, 1)
			assert.Equal(t, "Lamb Kebab", order.Items[0].Name)
			assert.Equal(t, TestUnitPrice, order.Items[0].UnitPrice)
			assert.Equal(t, 2, order.Items[0].Quantity)
			assert.Equal(t, []domain.EventKind{domain.EventNew}, rig.notifier.Kinds())

			rig.repo.AssertExpectations(t)
			rig.catalog.AssertExpectations(t)
		})
	}
}

// The total never trusts client input: it is the sum of current catalog
// prices times aggregated quantities.
func TestOrderService_CreateOrder_AggregatesAndPrices(t *testing.T) {
	rig := newTestRig()
	rig.catalog.On("GetAccount", mock.Anything, TestAccountID).
		Return(&infra.AccountInfo{ID: TestAccountID, Active: true}, nil)
	rig.catalog.On("GetTable", mock.Anything, TestAccountID, TestTableID).
		Return(&infra.TableInfo{ID: TestTableID, AccountID: TestAccountID}, nil)
	rig.repo.On("HasActiveOrder", mock.Anything, TestAccountID, TestTableID).Return(false, nil)
	rig.catalog.On("GetProduct", mock.Anything, TestAccountID, uint64(10)).
		Return(&infra.ProductInfo{ID: 10, AccountID: TestAccountID, Name: "A", Price: 500, Available: true}, nil)
	rig.catalog.On("GetProduct", mock.Anything, TestAccountID, uint64(11)).
		Return(&infra.ProductInfo{ID: 11, AccountID: TestAccountID, Name: "B", Price: 300, Available: true}, nil)
	rig.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
	wireHappyEffects(rig)

	order, err := rig.svc.CreateOrder(context.Background(), CreateOrderInput{
		AccountID: TestAccountID,
		TableID:   TestTableID,
		Lines: []OrderLine{
			{ProductID: 10, Quantity: 1},
			{ProductID: 11, Quantity: 1},
			{ProductID: 10, Quantity: 1},
		},
	})
	rig.effects.Drain()

	require.NoError(t, err)
	require.Len(t, order.Items, 2, "duplicate product lines aggregate")
	assert.Equal(t, int64(2*500+1*300), order.Total)
	assert.Equal(t, 2, order.Items[0].Quantity)
}

func TestOrderService_CreateOrder_PostCommitEffects(t *testing.T) {
	rig := newTestRig()
	wireHappyCatalog(rig)
	rig.repo.On("HasActiveOrder", mock.Anything, TestAccountID, TestTableID).Return(false, nil)
	rig.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
	rig.mirror.On("PublishCreate", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
	rig.publisher.On("Publish",
		mock.Anything,
		fmt.Sprintf("account.%d.order.created", TestAccountID),
		mock.AnythingOfType("domain.OrderChange"),
	).Return(nil)

	_, err := rig.svc.CreateOrder(context.Background(), CreateOrderInput{
		AccountID: TestAccountID,
		TableID:   TestTableID,
		Lines:     []OrderLine{{ProductID: TestProductID, Quantity: 2}},
	})
	require.NoError(t, err)
	rig.effects.Drain()

	rig.mirror.AssertExpectations(t)
	rig.publisher.AssertExpectations(t)
	assert.Equal(t, []domain.EventKind{domain.EventNew}, rig.notifier.Kinds())
}

func TestOrderService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		current domain.Status
		target  domain.Status
		role    domain.Role
		wantErr *domain.Error
	}{
		{name: "admin approves pending", current: domain.StatusPending, target: domain.StatusApproved, role: domain.RoleAdmin},
		{name: "kitchen readies approved", current: domain.StatusApproved, target: domain.StatusReady, role: domain.RoleKitchen},
		{name: "waiter serves ready", current: domain.StatusReady, target: domain.StatusServed, role: domain.RoleWaiter},
		{name: "kitchen skips straight to ready", current: domain.StatusPending, target: domain.StatusReady, role: domain.RoleKitchen, wantErr: domain.ErrInvalidTransition},
		{name: "waiter readies approved", current: domain.StatusApproved, target: domain.StatusReady, role: domain.RoleWaiter, wantErr: domain.ErrForbiddenTransition},
		{name: "unknown target status", current: domain.StatusPending, target: "burnt", role: domain.RoleAdmin, wantErr: domain.ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig()
			wireHappyEffects(rig)
			order := testOrder(tt.current)
			if tt.wantErr != domain.ErrInvalidStatus {
				rig.repo.On("Mutate", mock.Anything, TestAccountID, order.ID).Return(order, nil)
			}

			got, err := rig.svc.UpdateStatus(context.Background(), TestAccountID, order.ID, tt.role, tt.target)
			rig.effects.Drain()

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				assert.Empty(t, rig.notifier.Kinds())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.target, got.Status)
			assert.Equal(t, testNow, got.LastStatusAt)
			assert.True(t, got.PushedStatuses.Contains(string(tt.target)))
			assert.Equal(t, []domain.EventKind{domain.EventKindFor(tt.target)}, rig.notifier.Kinds())
		})
	}
}

func TestOrderService_UpdateStatus_NotFound(t *testing.T) {
	rig := newTestRig()
	rig.repo.On("Mutate", mock.Anything, TestAccountID, uint64(42)).Return(nil, domain.ErrOrderNotFound)

	_, err := rig.svc.UpdateStatus(context.Background(), TestAccountID, 42, domain.RoleAdmin, domain.StatusApproved)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

// A transition retried with the same target produces exactly one
// pushed_statuses entry and at most one push/archive side effect.
func TestOrderService_UpdateStatus_IdempotentRetry(t *testing.T) {
	rig := newTestRig()
	wireHappyEffects(rig)
	order := testOrder(domain.StatusReady)
	rig.repo.On("Mutate", mock.Anything, TestAccountID, order.ID).Return(order, nil)

	for i := 0; i < 2; i++ {
		got, err := rig.svc.UpdateStatus(context.Background(), TestAccountID, order.ID, domain.RoleWaiter, domain.StatusServed)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusServed, got.Status)
	}
	rig.effects.Drain()

	count := 0
	for _, s := range order.PushedStatuses {
		if s == string(domain.StatusServed) {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one pushed_statuses entry")
	assert.Equal(t, []domain.EventKind{domain.EventServed}, rig.notifier.Kinds())
	rig.repo.AssertNumberOfCalls(t, "Archive", 1)
}

func TestOrderService_UpdateStatus_ServedArchivesAndClearsPointer(t *testing.T) {
	rig := newTestRig()
	order := testOrder(domain.StatusReady)
	rig.repo.On("Mutate", mock.Anything, TestAccountID, order.ID).Return(order, nil)
	rig.repo.On("Archive", mock.Anything, order.ID, domain.ArchiveReasonServed).Return(true, nil)
	rig.mirror.On("ClearActivePointer", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
	rig.publisher.On("Publish",
		mock.Anything,
		fmt.Sprintf("account.%d.order.updated", TestAccountID),
		mock.Anything,
	).Return(nil)

	_, err := rig.svc.UpdateStatus(context.Background(), TestAccountID, order.ID, domain.RoleWaiter, domain.StatusServed)
	require.NoError(t, err)
	rig.effects.Drain()

	rig.repo.AssertExpectations(t)
	rig.mirror.AssertExpectations(t)
	rig.mirror.AssertNotCalled(t, "PublishUpdate", mock.Anything, mock.Anything)
}

// A status update targeting cancelled must run the full cancellation
// effect set — archive with reason cancelled, cleared mirror pointer,
// deleted changefeed record — not the plain transition effects.
func TestOrderService_UpdateStatus_CancelledTargetRunsCancellation(t *testing.T) {
	rig := newTestRig()
	order := testOrder(domain.StatusPending)
	rig.repo.On("Mutate", mock.Anything, TestAccountID, order.ID).Return(order, nil)
	rig.repo.On("Archive", mock.Anything, order.ID, domain.ArchiveReasonCancelled).Return(true, nil)
	rig.mirror.On("ClearActivePointer", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
	rig.publisher.On("Publish",
		mock.Anything,
		fmt.Sprintf("account.%d.order.deleted", TestAccountID),
		mock.Anything,
	).Return(nil)

	got, err := rig.svc.UpdateStatus(context.Background(), TestAccountID, order.ID, domain.RoleAdmin, domain.StatusCancelled)
	require.NoError(t, err)
	rig.effects.Drain()

	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, []domain.EventKind{domain.EventCancelled}, rig.notifier.Kinds())
	rig.repo.AssertExpectations(t)
	rig.mirror.AssertExpectations(t)
	rig.publisher.AssertExpectations(t)
	rig.mirror.AssertNotCalled(t, "PublishUpdate", mock.Anything, mock.Anything)
}

func TestOrderService_UpdateStatus_CancelledTargetGuards(t *testing.T) {
	t.Run("non-pending order", func(t *testing.T) {
		rig := newTestRig()
		wireHappyEffects(rig)
		order := testOrder(domain.StatusApproved)
		rig.repo.On("Mutate", mock.Anything, TestAccountID, order.ID).Return(order, nil)

		_, err := rig.svc.UpdateStatus(context.Background(), TestAccountID, order.ID, domain.RoleAdmin, domain.StatusCancelled)
		rig.effects.Drain()

		assert.ErrorIs(t, err, domain.ErrCannotArchiveStatus)
		assert.Empty(t, rig.notifier.Kinds())
		rig.repo.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unauthorized role", func(t *testing.T) {
		rig := newTestRig()
		wireHappyEffects(rig)
		order := testOrder(domain.StatusPending)
		rig.repo.On("Mutate", mock.Anything, TestAccountID, order.ID).Return(order, nil)

		_, err := rig.svc.UpdateStatus(context.Background(), TestAccountID, order.ID, domain.RoleKitchen, domain.StatusCancelled)
		rig.effects.Drain()

		assert.ErrorIs(t, err, domain.ErrForbiddenTransition)
		assert.Empty(t, rig.notifier.Kinds())
	})
}

func TestOrderService_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		current domain.Status
		role    domain.Role
		wantErr *domain.Error
	}{
		{name: "client cancels pending", current: domain.StatusPending, role: domain.RoleClient},
		{name: "admin cancels pending", current: domain.StatusPending, role: domain.RoleAdmin},
		{name: "approved cannot be cancelled", current: domain.StatusApproved, role: domain.RoleAdmin, wantErr: domain.ErrCannotArchiveStatus},
		{name: "served cannot be cancelled", current: domain.StatusServed, role: domain.RoleAdmin, wantErr: domain.ErrCannotArchiveStatus},
		{name: "kitchen may not cancel", current: domain.StatusPending, role: domain.RoleKitchen, wantErr: domain.ErrForbiddenTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig()
			wireHappyEffects(rig)
			order := testOrder(tt.current)
			rig.repo.On("Mutate", mock.Anything, TestAccountID, order.ID).Return(order, nil)

			got, err := rig.svc.Cancel(context.Background(), TestAccountID, order.ID, tt.role)
			rig.effects.Drain()

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				assert.Empty(t, rig.notifier.Kinds())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCancelled, got.Status)
			assert.Equal(t, []domain.EventKind{domain.EventCancelled}, rig.notifier.Kinds())
			rig.repo.AssertNumberOfCalls(t, "Archive", 1)
		})
	}
}

func TestOrderService_Cancel_IdempotentRetry(t *testing.T) {
	rig := newTestRig()
	wireHappyEffects(rig)
	order := testOrder(domain.StatusPending)
	rig.repo.On("Mutate", mock.Anything, TestAccountID, order.ID).Return(order, nil)

	for i := 0; i < 2; i++ {
		_, err := rig.svc.Cancel(context.Background(), TestAccountID, order.ID, domain.RoleClient)
		require.NoError(t, err)
	}
	rig.effects.Drain()

	assert.Equal(t, []domain.EventKind{domain.EventCancelled}, rig.notifier.Kinds())
	rig.repo.AssertNumberOfCalls(t, "Archive", 1)
}

// N concurrent allocations on one key yield N distinct values forming a
// contiguous run. The in-memory fake shares the atomic increment-and-read
// contract with the MySQL allocator.
func TestSequenceAllocator_ConcurrentContiguity(t *testing.T) {
	alloc := mocks.NewMemoryAllocator()
	const n = 200

	var (
		mu     sync.Mutex
		values []uint64
		wg     sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := alloc.Next(context.Background(), "orders")
			require.NoError(t, err)
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	require.Len(t, values, n)
	for i, v := range values {
		assert.Equal(t, uint64(i+1), v)
	}
}

func TestOrderService_ResetDailySequence(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	day := domain.DayKey(testNow)

	v, err := rig.alloc.NextDaily(ctx, TestAccountID, day)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	require.NoError(t, rig.svc.ResetDailySequence(ctx, TestAccountID))

	v, err = rig.alloc.NextDaily(ctx, TestAccountID, day)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v, "counter restarts at 1 after reset")
}
