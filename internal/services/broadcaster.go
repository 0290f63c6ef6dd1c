package services

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"orderflow/internal/domain"
	"orderflow/internal/metrics"
)

// Broadcaster fans the primary store's changefeed out to per-account
// dashboard streams. It is read-only with respect to orders and fully
// decoupled from the write path: its only input is the changefeed consumer.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[uint64]map[*Subscription]struct{}
	failed   chan struct{}
	failOnce sync.Once
	log      zerolog.Logger
}

// Subscription is one connected dashboard. Events the subscriber cannot
// keep up with are dropped: the stream carries deltas only and clients must
// snapshot on (re)connect anyway.
type Subscription struct {
	accountID uint64
	filter    domain.Status
	events    chan domain.OrderChange
	b         *Broadcaster
	closeOnce sync.Once
}

func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[uint64]map[*Subscription]struct{}),
		failed: make(chan struct{}),
		log:    log,
	}
}

// Subscribe registers a stream for one account, optionally filtered to a
// single status ("" means all).
func (b *Broadcaster) Subscribe(accountID uint64, filter domain.Status) *Subscription {
	s := &Subscription{
		accountID: accountID,
		filter:    filter,
		events:    make(chan domain.OrderChange, 64),
		b:         b,
	}
	b.mu.Lock()
	if b.subs[accountID] == nil {
		b.subs[accountID] = make(map[*Subscription]struct{})
	}
	b.subs[accountID][s] = struct{}{}
	b.mu.Unlock()
	metrics.StreamClients.Inc()
	return s
}

func (s *Subscription) Events() <-chan domain.OrderChange { return s.events }

// Close releases the subscription. Safe to call more than once; the SSE
// handler calls it on client disconnect so nothing leaks.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		b := s.b
		b.mu.Lock()
		if set, ok := b.subs[s.accountID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.accountID)
			}
		}
		b.mu.Unlock()
		metrics.StreamClients.Dec()
	})
}

// Failed is closed when the upstream changefeed consumer dies. Handlers
// must emit an error event and terminate instead of silently hanging.
func (b *Broadcaster) Failed() <-chan struct{} { return b.failed }

// Run drains the changefeed until the delivery channel closes, which only
// happens on connection or channel failure.
func (b *Broadcaster) Run(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		var change domain.OrderChange
		if err := json.Unmarshal(d.Body, &change); err != nil {
			b.log.Warn().Err(err).Msg("discarding malformed changefeed record")
			continue
		}
		b.dispatch(change)
	}
	b.fail()
}

func (b *Broadcaster) dispatch(change domain.OrderChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[change.AccountID] {
		if s.filter != "" && change.Status != s.filter {
			continue
		}
		select {
		case s.events <- change:
		default:
			// Slow consumer; it will resync from a snapshot.
		}
	}
}

func (b *Broadcaster) fail() {
	b.failOnce.Do(func() {
		b.log.Error().Msg("changefeed consumer terminated")
		close(b.failed)
	})
}
