package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"orderflow/internal/domain"
	"orderflow/internal/infra"
	"orderflow/internal/infra/rabbitmq"
	"orderflow/internal/metrics"
	"orderflow/internal/repository"
)

// Mirror is the narrow best-effort interface to the realtime read store.
// The write path never depends on its availability.
type Mirror interface {
	PublishCreate(ctx context.Context, o *domain.Order) error
	PublishUpdate(ctx context.Context, o *domain.Order) error
	ClearActivePointer(ctx context.Context, o *domain.Order) error
}

// Notifier is the push fan-out boundary.
type Notifier interface {
	Notify(ctx context.Context, kind domain.EventKind, o *domain.Order) FanoutSummary
}

var _ Mirror = (*MirrorPublisher)(nil)
var _ Notifier = (*FanoutService)(nil)

type OrderLine struct {
	ProductID uint64
	Quantity  int
}

type CreateOrderInput struct {
	AccountID uint64
	TableID   uint64
	Note      string
	Lines     []OrderLine
}

// OrderService coordinates the order lifecycle: validated creation,
// role-gated status transitions and cancellation, each followed by detached
// post-commit effects (changefeed publish, mirror write, push fan-out,
// archival). The transaction commits first; no effect can fail the API call.
type OrderService struct {
	repo      repository.OrderRepository
	alloc     repository.SequenceAllocator
	catalog   infra.ProductCatalog
	directory infra.AccountDirectory
	mirror    Mirror
	notifier  Notifier
	feed      rabbitmq.PublisherInterface
	effects   *EffectQueue
	log       zerolog.Logger
	now       func() time.Time
}

func NewOrderService(
	repo repository.OrderRepository,
	alloc repository.SequenceAllocator,
	catalog infra.ProductCatalog,
	directory infra.AccountDirectory,
	mirror Mirror,
	notifier Notifier,
	feed rabbitmq.PublisherInterface,
	effects *EffectQueue,
	log zerolog.Logger,
) *OrderService {
	return &OrderService{
		repo:      repo,
		alloc:     alloc,
		catalog:   catalog,
		directory: directory,
		mirror:    mirror,
		notifier:  notifier,
		feed:      feed,
		effects:   effects,
		log:       log,
		now:       time.Now,
	}
}

func changeKey(accountID uint64, kind domain.ChangeKind) string {
	return fmt.Sprintf("account.%d.order.%s", accountID, kind)
}

// CreateOrder validates the request against the account directory and
// product catalog, computes the total server-side, allocates the global id
// and the daily number, and writes the order and its item snapshot in one
// transaction. Client-submitted prices are never trusted.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	lines, err := aggregateLines(in.Lines)
	if err != nil {
		return nil, err
	}
	if len(in.Note) > domain.MaxNoteLength {
		return nil, domain.ErrValidation
	}

	account, err := s.directory.GetAccount(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.Active {
		return nil, domain.ErrSystemInactive
	}
	table, err := s.directory.GetTable(ctx, in.AccountID, in.TableID)
	if err != nil {
		return nil, err
	}
	if table == nil || table.AccountID != in.AccountID {
		return nil, domain.ErrTableNotFound
	}

	// Fast-path rejection; Create re-checks under a locking read.
	active, err := s.repo.HasActiveOrder(ctx, in.AccountID, in.TableID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, domain.ErrActiveOrderExists
	}

	var (
		items []domain.OrderItem
		total int64
	)
	for _, line := range lines {
		product, err := s.catalog.GetProduct(ctx, in.AccountID, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil || product.AccountID != in.AccountID || !product.Available {
			return nil, domain.ErrProductNotFound
		}
		itemID, err := s.alloc.Next(ctx, "order_items")
		if err != nil {
			return nil, err
		}
		items = append(items, domain.OrderItem{
			ID:        itemID,
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
		})
		total += product.Price * int64(line.Quantity)
	}
	if total > domain.MaxOrderTotal {
		return nil, domain.ErrTotalLimit
	}

	id, err := s.alloc.Next(ctx, "orders")
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	daily, err := s.alloc.NextDaily(ctx, in.AccountID, domain.DayKey(now))
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:             id,
		AccountID:      in.AccountID,
		TableID:        in.TableID,
		Status:         domain.StatusPending,
		Total:          total,
		DailyNumber:    daily,
		Note:           in.Note,
		PushedStatuses: domain.StatusSet{"new"},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastStatusAt:   now,
		Items:          items,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	metrics.OrdersCreated.Inc()

	s.dispatchChange(domain.ChangeCreated, order)
	snapshot := *order
	s.effects.Enqueue(Effect{Name: "mirror.create", Run: func(ctx context.Context) error {
		return s.mirror.PublishCreate(ctx, &snapshot)
	}})
	s.effects.Enqueue(Effect{Name: "push.new", Run: func(ctx context.Context) error {
		s.notifier.Notify(ctx, domain.EventNew, &snapshot)
		return nil
	}})

	return order, nil
}

// UpdateStatus applies a role-gated transition inside a serializable
// transaction. Retrying an already applied transition is a no-op with no
// second side effect: pushed statuses gate every downstream effect.
func (s *OrderService) UpdateStatus(ctx context.Context, accountID, orderID uint64, role domain.Role, target domain.Status) (*domain.Order, error) {
	if !domain.ValidStatus(target) {
		return nil, domain.ErrInvalidStatus
	}
	if target == domain.StatusCancelled {
		// Cancellation is archival, not a plain transition: it must clear
		// the mirror pointer, emit a deleted change and archive the order.
		// Cancel owns that effect set, so the status route defers to it.
		return s.Cancel(ctx, accountID, orderID, role)
	}

	var firstPush bool
	order, err := s.repo.Mutate(ctx, accountID, orderID, func(o *domain.Order) error {
		firstPush = false
		if o.Status == target {
			// Retried request; already applied.
			return nil
		}
		if err := domain.CanTransition(role, o.Status, target); err != nil {
			return err
		}
		o.Status = target
		o.LastStatusAt = s.now().UTC()
		if !o.PushedStatuses.Contains(string(target)) {
			o.PushedStatuses = append(o.PushedStatuses, string(target))
			firstPush = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if firstPush {
		metrics.StatusTransitions.WithLabelValues(string(target)).Inc()
		s.dispatchChange(domain.ChangeUpdated, order)
		snapshot := *order
		s.effects.Enqueue(Effect{Name: "mirror.update", Run: func(ctx context.Context) error {
			if snapshot.Status == domain.StatusServed {
				return s.mirror.ClearActivePointer(ctx, &snapshot)
			}
			return s.mirror.PublishUpdate(ctx, &snapshot)
		}})
		kind := domain.EventKindFor(target)
		s.effects.Enqueue(Effect{Name: "push." + string(kind), Run: func(ctx context.Context) error {
			s.notifier.Notify(ctx, kind, &snapshot)
			return nil
		}})
		if target == domain.StatusServed {
			s.enqueueArchive(snapshot, domain.ArchiveReasonServed)
		}
	}
	return order, nil
}

// Cancel archives a pending order with reason "cancelled" and removes it
// from the live collection. Any other status is rejected with
// CANNOT_ARCHIVE_STATUS.
func (s *OrderService) Cancel(ctx context.Context, accountID, orderID uint64, role domain.Role) (*domain.Order, error) {
	var firstPush bool
	order, err := s.repo.Mutate(ctx, accountID, orderID, func(o *domain.Order) error {
		firstPush = false
		if o.Status == domain.StatusCancelled {
			return nil
		}
		if o.Status != domain.StatusPending {
			return domain.ErrCannotArchiveStatus
		}
		if err := domain.CanTransition(role, o.Status, domain.StatusCancelled); err != nil {
			return err
		}
		o.Status = domain.StatusCancelled
		o.LastStatusAt = s.now().UTC()
		if !o.PushedStatuses.Contains(string(domain.StatusCancelled)) {
			o.PushedStatuses = append(o.PushedStatuses, string(domain.StatusCancelled))
			firstPush = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if firstPush {
		metrics.StatusTransitions.WithLabelValues(string(domain.StatusCancelled)).Inc()
		s.dispatchChange(domain.ChangeDeleted, order)
		snapshot := *order
		s.effects.Enqueue(Effect{Name: "mirror.clear", Run: func(ctx context.Context) error {
			return s.mirror.ClearActivePointer(ctx, &snapshot)
		}})
		s.effects.Enqueue(Effect{Name: "push.cancelled", Run: func(ctx context.Context) error {
			s.notifier.Notify(ctx, domain.EventCancelled, &snapshot)
			return nil
		}})
		s.enqueueArchive(snapshot, domain.ArchiveReasonCancelled)
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, accountID, orderID uint64) (*domain.Order, error) {
	return s.repo.FindByID(ctx, accountID, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, accountID uint64, status domain.Status) ([]domain.Order, error) {
	if status != "" && !domain.ValidStatus(status) {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.ListByAccount(ctx, accountID, status)
}

// ResetDailySequence forces today's counter back to zero for administrative
// correction. Already issued numbers stay issued.
func (s *OrderService) ResetDailySequence(ctx context.Context, accountID uint64) error {
	return s.alloc.ResetDaily(ctx, accountID, domain.DayKey(s.now()))
}

func (s *OrderService) dispatchChange(kind domain.ChangeKind, o *domain.Order) {
	change := domain.ChangeFor(kind, o)
	key := changeKey(o.AccountID, kind)
	s.effects.Enqueue(Effect{Name: "changefeed." + string(kind), Run: func(ctx context.Context) error {
		return s.feed.Publish(ctx, key, change)
	}})
}

func (s *OrderService) enqueueArchive(snapshot domain.Order, reason domain.ArchiveReason) {
	s.effects.Enqueue(Effect{Name: "archive." + string(reason), Run: func(ctx context.Context) error {
		archived, err := s.repo.Archive(ctx, snapshot.ID, reason)
		if err != nil {
			return err
		}
		if !archived {
			s.log.Debug().Uint64("order_id", snapshot.ID).Msg("order already archived")
		}
		return nil
	}})
}

// aggregateLines merges duplicate product lines and enforces the item caps.
func aggregateLines(lines []OrderLine) ([]OrderLine, error) {
	if len(lines) == 0 {
		return nil, domain.ErrInvalidItems
	}
	index := make(map[uint64]int)
	var out []OrderLine
	for _, l := range lines {
		if l.ProductID == 0 || l.Quantity <= 0 {
			return nil, domain.ErrInvalidItems
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
		} else {
			index[l.ProductID] = len(out)
			out = append(out, l)
		}
	}
	if len(out) > domain.MaxOrderLines {
		return nil, domain.ErrInvalidItems
	}
	for _, l := range out {
		if l.Quantity > domain.MaxLineQuantity {
			return nil, domain.ErrInvalidItems
		}
	}
	return out, nil
}
