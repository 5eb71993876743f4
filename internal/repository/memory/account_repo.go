package memory

import (
	"context"
	"fmt"
	"sync"

	"account_ledger/internal/domain"
)

type AccountRepository struct {
	mu       sync.RWMutex
	capacity int
	accounts map[string]*domain.Account
	order    []string
	checks   map[uint32]string
}

// NewAccountRepository creates a registry holding at most capacity accounts.
// A capacity below 1 means unbounded.
func NewAccountRepository(capacity int) *AccountRepository {
	return &AccountRepository{
		capacity: capacity,
		accounts: make(map[string]*domain.Account),
		checks:   make(map[uint32]string),
	}
}

func (r *AccountRepository) Create(ctx context.Context, username, password string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full() {
		return nil, fmt.Errorf("%w: %d accounts", domain.ErrCapacityExceeded, r.capacity)
	}
	if _, exists := r.accounts[username]; exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateUsername, username)
	}

	account := domain.NewAccount(username, password)
	r.accounts[username] = account
	r.order = append(r.order, username)

	return account.Clone(), nil
}

// Full reports whether Create would be refused for lack of room.
func (r *AccountRepository) Full(ctx context.Context) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.full()
}

func (r *AccountRepository) full() bool {
	return r.capacity > 0 && len(r.accounts) >= r.capacity
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[username]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, username)
	}
	return account.Clone(), nil
}

func (r *AccountRepository) FindByCheckCode(ctx context.Context, code uint32) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, exists := r.checks[code]
	if !exists || code == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidCheckCode, code)
	}
	return r.accounts[username].Clone(), nil
}

func (r *AccountRepository) CheckCodeInUse(ctx context.Context, code uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.checks[code]
	return exists
}

func (r *AccountRepository) Update(ctx context.Context, accounts ...*domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check every account before touching any, so a failure leaves the store as it was.
	claimed := make(map[uint32]string)
	for _, account := range accounts {
		if _, exists := r.accounts[account.Username]; !exists {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, account.Username)
		}
		if err := validateState(account); err != nil {
			return err
		}
		if !account.Check.Outstanding() {
			continue
		}
		code := account.Check.Code
		if owner, taken := claimed[code]; taken && owner != account.Username {
			return domain.NewValidationError("check_code", fmt.Sprintf("code %d claimed twice", code))
		}
		claimed[code] = account.Username
		if owner, taken := r.checks[code]; taken && owner != account.Username && !releasedBy(accounts, owner, code) {
			return domain.NewValidationError("check_code", fmt.Sprintf("code %d is outstanding for another account", code))
		}
	}

	for _, account := range accounts {
		current := r.accounts[account.Username]
		if current.Check.Outstanding() && r.checks[current.Check.Code] == current.Username {
			delete(r.checks, current.Check.Code)
		}
	}
	for _, account := range accounts {
		stored := account.Clone()
		r.accounts[account.Username] = stored
		if stored.Check.Outstanding() {
			r.checks[stored.Check.Code] = stored.Username
		}
	}

	return nil
}

func (r *AccountRepository) All(ctx context.Context) []*domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Account, 0, len(r.order))
	for _, username := range r.order {
		result = append(result, r.accounts[username].Clone())
	}
	return result
}

func (r *AccountRepository) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

// Restore replaces the whole registry, keeping the given order. Capacity is not
// enforced here; it only limits Create.
func (r *AccountRepository) Restore(ctx context.Context, accounts []*domain.Account) error {
	restored := make(map[string]*domain.Account, len(accounts))
	checks := make(map[uint32]string)
	order := make([]string, 0, len(accounts))

	for _, account := range accounts {
		if account.Username == "" {
			return domain.NewValidationError("username", "must not be empty")
		}
		if _, exists := restored[account.Username]; exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateUsername, account.Username)
		}
		if err := validateState(account); err != nil {
			return err
		}
		if account.Check.Outstanding() {
			if _, taken := checks[account.Check.Code]; taken {
				return domain.NewValidationError("check_code", fmt.Sprintf("code %d outstanding twice", account.Check.Code))
			}
			checks[account.Check.Code] = account.Username
		}
		restored[account.Username] = account.Clone()
		order = append(order, account.Username)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = restored
	r.checks = checks
	r.order = order
	return nil
}

func validateState(account *domain.Account) error {
	if account.Balance.IsNegative() {
		return domain.NewValidationError("balance", "must not be negative")
	}
	if !account.Check.Valid() {
		return domain.NewValidationError("check", "code and amount must both be set or both be zero")
	}
	return nil
}

// releasedBy reports whether the update batch also clears owner's claim on code.
func releasedBy(accounts []*domain.Account, owner string, code uint32) bool {
	for _, account := range accounts {
		if account.Username == owner {
			return account.Check.Code != code
		}
	}
	return false
}
