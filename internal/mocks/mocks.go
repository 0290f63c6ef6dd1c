package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"orderflow/internal/domain"
	"orderflow/internal/infra"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, accountID, id uint64) (*domain.Order, error) {
	args := m.Called(ctx, accountID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByAccount(ctx context.Context, accountID uint64, status domain.Status) ([]domain.Order, error) {
	args := m.Called(ctx, accountID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) HasActiveOrder(ctx context.Context, accountID, tableID uint64) (bool, error) {
	args := m.Called(ctx, accountID, tableID)
	return args.Bool(0), args.Error(1)
}

// Mutate replays the closure against the stored order so service tests
// exercise the real transition logic, the way the gorm implementation
// re-reads and applies inside a transaction.
func (m *MockOrderRepository) Mutate(ctx context.Context, accountID, id uint64, apply func(*domain.Order) error) (*domain.Order, error) {
	args := m.Called(ctx, accountID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	o := args.Get(0).(*domain.Order)
	if err := apply(o); err != nil {
		return nil, err
	}
	return o, args.Error(1)
}

func (m *MockOrderRepository) Archive(ctx context.Context, id uint64, reason domain.ArchiveReason) (bool, error) {
	args := m.Called(ctx, id, reason)
	return args.Bool(0), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetProduct(ctx context.Context, accountID, productID uint64) (*infra.ProductInfo, error) {
	args := m.Called(ctx, accountID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.ProductInfo), args.Error(1)
}

func (m *MockCatalog) GetAccount(ctx context.Context, accountID uint64) (*infra.AccountInfo, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.AccountInfo), args.Error(1)
}

func (m *MockCatalog) GetTable(ctx context.Context, accountID, tableID uint64) (*infra.TableInfo, error) {
	args := m.Called(ctx, accountID, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.TableInfo), args.Error(1)
}

type MockTokenDirectory struct {
	mock.Mock
}

func (m *MockTokenDirectory) ListActive(ctx context.Context, roles []domain.Role) ([]domain.DeviceToken, error) {
	args := m.Called(ctx, roles)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DeviceToken), args.Error(1)
}

func (m *MockTokenDirectory) Deactivate(ctx context.Context, tokens []string) error {
	args := m.Called(ctx, tokens)
	return args.Error(0)
}

type MockPushProvider struct {
	mock.Mock
}

func (m *MockPushProvider) Send(ctx context.Context, batch infra.PushBatch) (*infra.PushResult, error) {
	args := m.Called(ctx, batch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.PushResult), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, data any) error {
	args := m.Called(ctx, routingKey, data)
	return args.Error(0)
}

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) PublishCreate(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockMirror) PublishUpdate(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockMirror) ClearActivePointer(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

// MemoryAllocator is a mutex-guarded in-memory allocator with the exact
// contract of the MySQL implementation: atomic increment-and-read, distinct
// values under concurrency.
type MemoryAllocator struct {
	mu      sync.Mutex
	seqs    map[string]uint64
	dailies map[string]uint64
}

func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{
		seqs:    make(map[string]uint64),
		dailies: make(map[string]uint64),
	}
}

func (a *MemoryAllocator) Next(ctx context.Context, name string) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seqs[name]++
	return a.seqs[name], nil
}

func (a *MemoryAllocator) NextDaily(ctx context.Context, accountID uint64, day string) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := dailyKey(accountID, day)
	a.dailies[key]++
	return a.dailies[key], nil
}

func (a *MemoryAllocator) ResetDaily(ctx context.Context, accountID uint64, day string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dailies[dailyKey(accountID, day)] = 0
	return nil
}

func dailyKey(accountID uint64, day string) string {
	return fmt.Sprintf("%s/%d", day, accountID)
}
