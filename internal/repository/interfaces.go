package repository

import (
	"context"

	"account_ledger/internal/domain"
)

// AccountRepository is the in-memory account registry. Accounts handed out are
// copies; changes become visible only through Update.
type AccountRepository interface {
	Create(ctx context.Context, username, password string) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByCheckCode(ctx context.Context, code uint32) (*domain.Account, error)
	CheckCodeInUse(ctx context.Context, code uint32) bool
	// Update applies all accounts or none of them.
	Update(ctx context.Context, accounts ...*domain.Account) error
	All(ctx context.Context) []*domain.Account
	Count(ctx context.Context) int
	Full(ctx context.Context) bool
	Restore(ctx context.Context, accounts []*domain.Account) error
}

// SnapshotStore persists the full account set. Load returns an empty set, not an
// error, when no snapshot exists yet.
type SnapshotStore interface {
	Load(ctx context.Context) ([]*domain.Account, error)
	Save(ctx context.Context, accounts []*domain.Account) error
}

// AuditLog is append-only.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	QueryByUsername(ctx context.Context, username string) ([]string, error)
}
