package infra

import (
	"context"

	"orderflow/internal/domain"
)

// ProductCatalog resolves product snapshots at order time. External
// collaborator; the core never writes to it.
type ProductCatalog interface {
	GetProduct(ctx context.Context, accountID, productID uint64) (*ProductInfo, error)
}

// AccountDirectory resolves accounts and their tables. External collaborator.
type AccountDirectory interface {
	GetAccount(ctx context.Context, accountID uint64) (*AccountInfo, error)
	GetTable(ctx context.Context, accountID, tableID uint64) (*TableInfo, error)
}

// TokenDirectory lists push recipients and prunes dead tokens. Registration
// and unregistration live with the collaborator; the fan-out service only
// reads tokens and flags permanent delivery failures.
type TokenDirectory interface {
	ListActive(ctx context.Context, roles []domain.Role) ([]domain.DeviceToken, error)
	Deactivate(ctx context.Context, tokens []string) error
}

// PushProvider delivers one localized batch of at most MaxBatchTokens
// notifications and reports per-token results.
type PushProvider interface {
	Send(ctx context.Context, batch PushBatch) (*PushResult, error)
}

var _ ProductCatalog = (*CatalogClient)(nil)
var _ AccountDirectory = (*CatalogClient)(nil)
var _ TokenDirectory = (*TokenDirectoryClient)(nil)
var _ PushProvider = (*PushClient)(nil)
