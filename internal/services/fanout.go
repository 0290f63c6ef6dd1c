package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"orderflow/internal/domain"
	"orderflow/internal/infra"
	"orderflow/internal/metrics"
)

// eventTargets maps a lifecycle event to the roles it notifies. Client
// tokens are additionally filtered to the order's account and table.
var eventTargets = map[domain.EventKind][]domain.Role{
	domain.EventNew:       {domain.RoleKitchen, domain.RoleAdmin, domain.RoleClient},
	domain.EventApproved:  {domain.RoleKitchen, domain.RoleAdmin, domain.RoleClient},
	domain.EventReady:     {domain.RoleWaiter, domain.RoleAdmin, domain.RoleClient},
	domain.EventServed:    {domain.RoleAdmin, domain.RoleClient},
	domain.EventCancelled: {domain.RoleKitchen, domain.RoleWaiter, domain.RoleAdmin, domain.RoleClient},
}

// FanoutSummary reports delivery totals for one event, for logs and
// observability counters.
type FanoutSummary struct {
	Batches int
	Tokens  int
	Success int
	Failure int
	Pruned  int
}

// FanoutService resolves recipients for an order lifecycle event, localizes
// message text per (language, role) group, dispatches provider batches and
// prunes tokens the provider reports as permanently dead. Fire-and-forget:
// it never lets an error or panic escape Notify.
type FanoutService struct {
	dir  infra.TokenDirectory
	push infra.PushProvider
	log  zerolog.Logger
}

func NewFanoutService(dir infra.TokenDirectory, push infra.PushProvider, log zerolog.Logger) *FanoutService {
	return &FanoutService{dir: dir, push: push, log: log}
}

type groupKey struct {
	lang string
	role domain.Role
}

func (f *FanoutService) Notify(ctx context.Context, kind domain.EventKind, o *domain.Order) FanoutSummary {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error().Interface("panic", r).Str("kind", string(kind)).Msg("push fan-out panicked")
		}
	}()

	var summary FanoutSummary
	roles, ok := eventTargets[kind]
	if !ok {
		return summary
	}

	tokens, err := f.dir.ListActive(ctx, roles)
	if err != nil {
		f.log.Error().Err(err).Str("kind", string(kind)).Msg("token directory lookup failed")
		return summary
	}

	groups := make(map[groupKey][]string)
	for _, t := range tokens {
		if !t.Active {
			continue
		}
		if t.Role == domain.RoleClient && (t.AccountID != o.AccountID || t.TableID != o.TableID) {
			continue
		}
		groups[groupKey{lang: t.Lang, role: t.Role}] = append(groups[groupKey{lang: t.Lang, role: t.Role}], t.Token)
	}

	var (
		mu   sync.Mutex
		dead []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for key, toks := range groups {
		msg := localize(key.lang, key.role, kind, o)
		for start := 0; start < len(toks); start += infra.MaxBatchTokens {
			end := start + infra.MaxBatchTokens
			if end > len(toks) {
				end = len(toks)
			}
			batch := infra.PushBatch{
				Tokens: toks[start:end],
				Title:  msg.title,
				Body:   msg.body,
				Data: map[string]string{
					"event":    string(kind),
					"order_id": fmt.Sprintf("%d", o.ID),
				},
			}
			if key.role == domain.RoleClient {
				// No internal identifiers leave the building for
				// anonymous clients.
				delete(batch.Data, "order_id")
			}
			role := key.role
			mu.Lock()
			summary.Batches++
			summary.Tokens += len(batch.Tokens)
			mu.Unlock()

			g.Go(func() error {
				res, err := f.push.Send(gctx, batch)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failure += len(batch.Tokens)
					metrics.PushTokens.WithLabelValues(string(role), "failure").Add(float64(len(batch.Tokens)))
					f.log.Warn().Err(err).Str("kind", string(kind)).Str("role", string(role)).Msg("push batch failed")
					return nil
				}
				for i, r := range res.Results {
					if r.Err == "" {
						summary.Success++
						metrics.PushTokens.WithLabelValues(string(role), "success").Inc()
						continue
					}
					summary.Failure++
					metrics.PushTokens.WithLabelValues(string(role), "failure").Inc()
					if r.Permanent() {
						token := r.Token
						if token == "" && i < len(batch.Tokens) {
							token = batch.Tokens[i]
						}
						dead = append(dead, token)
					}
				}
				return nil
			})
		}
	}
	g.Wait()

	if len(dead) > 0 {
		if err := f.dir.Deactivate(ctx, dead); err != nil {
			f.log.Error().Err(err).Int("tokens", len(dead)).Msg("token pruning failed")
		} else {
			summary.Pruned = len(dead)
			metrics.TokensPruned.Add(float64(len(dead)))
		}
	}

	metrics.PushMessages.WithLabelValues(string(kind)).Add(float64(summary.Batches))
	f.log.Info().
		Str("kind", string(kind)).
		Uint64("order_id", o.ID).
		Int("batches", summary.Batches).
		Int("tokens", summary.Tokens).
		Int("success", summary.Success).
		Int("failure", summary.Failure).
		Int("pruned", summary.Pruned).
		Msg("push fan-out complete")
	return summary
}
