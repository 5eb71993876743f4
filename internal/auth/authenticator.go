// Package auth verifies credentials against the account store. A login session
// allows a bounded number of attempts; exhausting them ends the session only,
// the account itself is never locked.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account_ledger/internal/domain"
	"account_ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultMaxAttempts = 3

// LoginRecorder receives one outcome per attempt: "success", "failure" or "lockout".
type LoginRecorder interface {
	RecordLogin(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordLogin(string) {}

type Authenticator struct {
	accounts    repository.AccountRepository
	audit       repository.AuditLog
	maxAttempts int
	metrics     LoginRecorder
	now         func() time.Time
	logger      *slog.Logger
}

func NewAuthenticator(
	accounts repository.AccountRepository,
	audit repository.AuditLog,
	maxAttempts int,
	metrics LoginRecorder,
	logger *slog.Logger,
) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Authenticator{
		accounts:    accounts,
		audit:       audit,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		now:         time.Now,
		logger:      logger,
	}
}

// SetClock replaces the time source used for audit entries.
func (a *Authenticator) SetClock(now func() time.Time) {
	a.now = now
}

func (a *Authenticator) MaxAttempts() int {
	return a.maxAttempts
}

type Session struct {
	ID       uuid.UUID
	auth     *Authenticator
	attempts int
	account  *domain.Account
}

func (a *Authenticator) NewSession() *Session {
	return &Session{
		ID:   uuid.New(),
		auth: a,
	}
}

func (s *Session) Remaining() int {
	return s.auth.maxAttempts - s.attempts
}

func (s *Session) Account() *domain.Account {
	return s.account
}

// Attempt checks one username/password pair. A wrong pair returns
// domain.ErrWrongCredentials while attempts remain; the failure that uses up the
// last attempt, and every call after it, returns domain.ErrInvalidCredentials.
//
// A failed audit append is returned as a *domain.DurabilityError joined with the
// outcome; on success the account is still returned.
func (s *Session) Attempt(ctx context.Context, username, password string) (*domain.Account, error) {
	a := s.auth
	logger := a.logger.With(slog.String("session_id", s.ID.String()))

	if s.account != nil {
		return s.account, nil
	}
	if s.Remaining() <= 0 {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := a.accounts.FindByUsername(ctx, username)
	if err == nil && account.Password == password {
		s.account = account
		a.metrics.RecordLogin("success")
		logger.InfoContext(ctx, "Login succeeded", slog.String("username", username))
		return account, a.record(ctx, username, domain.ActionLoginSuccess, "")
	}
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	s.attempts++
	warn := a.record(ctx, username, domain.ActionLoginFailed, domain.NoteWrongCredentials)
	logger.WarnContext(ctx, "Login failed",
		slog.String("username", username),
		slog.Int("remaining", s.Remaining()))

	if s.Remaining() <= 0 {
		a.metrics.RecordLogin("lockout")
		logger.WarnContext(ctx, "Login attempts exhausted")
		return nil, errors.Join(domain.ErrInvalidCredentials, warn)
	}
	a.metrics.RecordLogin("failure")
	return nil, errors.Join(domain.ErrWrongCredentials, warn)
}

// Prompt supplies credentials for the given 1-based attempt number.
type Prompt func(attempt, remaining int) (username, password string, err error)

// Login runs a full session, asking prompt for credentials until one attempt
// succeeds or the attempts are exhausted. onFailure, if set, is told about each
// failed attempt that still leaves attempts remaining.
func (a *Authenticator) Login(ctx context.Context, prompt Prompt, onFailure func(remaining int)) (*domain.Account, error) {
	session := a.NewSession()
	for {
		username, password, err := prompt(session.attempts+1, session.Remaining())
		if err != nil {
			return nil, err
		}

		account, err := session.Attempt(ctx, username, password)
		if account != nil {
			return account, err
		}
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return nil, err
		}
		if !errors.Is(err, domain.ErrWrongCredentials) {
			return nil, err
		}
		if onFailure != nil {
			onFailure(session.Remaining())
		}
	}
}

func (a *Authenticator) record(ctx context.Context, username string, action domain.Action, note string) error {
	entry := domain.NewAuditEntry(a.now(), username, action, decimal.Zero, note)
	if err := a.audit.Append(ctx, entry); err != nil {
		a.logger.ErrorContext(ctx, "Audit append failed",
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
		return domain.NewDurabilityError("audit append", err)
	}
	return nil
}
