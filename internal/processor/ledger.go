package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account_ledger/internal/domain"
	"account_ledger/internal/repository"
	"account_ledger/pkg/validator"

	"github.com/shopspring/decimal"
)

const noteNoFreeCode = "NO FREE CODE"

type MetricsRecorder interface {
	RecordOperation(action string, success bool)
	UpdateLedgerState(accounts, outstandingChecks int, fundsHeld float64)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, bool)        {}
func (noopMetrics) UpdateLedgerState(int, int, float64) {}

// Ledger runs every balance-changing operation. Each operation writes exactly one
// audit entry for its outcome and, when it changed state, saves the full
// snapshot before returning.
//
// Failures to append the audit entry or save the snapshot do not undo the
// in-memory change. They come back as *domain.DurabilityError values, possibly
// joined with the operation's own error; domain.IsWarning tells the two apart.
type Ledger struct {
	accounts  repository.AccountRepository
	snapshots repository.SnapshotStore
	audit     repository.AuditLog
	validator *validator.AccountValidator
	codes     *CheckCodeGenerator
	metrics   MetricsRecorder
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Ledger)

func WithMetrics(m MetricsRecorder) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithCheckCodes(g *CheckCodeGenerator) Option {
	return func(l *Ledger) { l.codes = g }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(
	accounts repository.AccountRepository,
	snapshots repository.SnapshotStore,
	audit repository.AuditLog,
	logger *slog.Logger,
	opts ...Option,
) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{
		accounts:  accounts,
		snapshots: snapshots,
		audit:     audit,
		validator: validator.NewAccountValidator(),
		codes:     NewCheckCodeGenerator(nil),
		metrics:   noopMetrics{},
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore loads the persisted snapshot into the account store. A missing
// snapshot leaves the store empty.
func (l *Ledger) Restore(ctx context.Context) (int, error) {
	accounts, err := l.snapshots.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := l.accounts.Restore(ctx, accounts); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrSnapshotCorrupt, err)
	}
	l.refreshMetrics(ctx)
	return len(accounts), nil
}

func (l *Ledger) Save(ctx context.Context) error {
	return l.snapshots.Save(ctx, l.accounts.All(ctx))
}

// AccountsFull reports whether no further account can be opened.
func (l *Ledger) AccountsFull(ctx context.Context) bool {
	return l.accounts.Full(ctx)
}

func (l *Ledger) CreateAccount(ctx context.Context, username, password string) (*domain.Account, error) {
	if l.accounts.Full(ctx) {
		l.metrics.RecordOperation(string(domain.ActionAccountCreated), false)
		l.logger.WarnContext(ctx, "Account creation rejected, registry full")
		return nil, domain.ErrCapacityExceeded
	}
	if err := l.validator.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	account, err := l.accounts.Create(ctx, username, password)
	if err != nil {
		l.metrics.RecordOperation(string(domain.ActionAccountCreated), false)
		l.logger.WarnContext(ctx, "Account creation rejected",
			slog.String("username", username),
			slog.String("error", err.Error()))
		return nil, err
	}

	l.logger.InfoContext(ctx, "Account created", slog.String("username", username))
	return account, l.commit(ctx, l.entry(username, domain.ActionAccountCreated, decimal.Zero, ""))
}

func (l *Ledger) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	account, err := l.accounts.FindByUsername(ctx, username)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (l *Ledger) DepositCash(ctx context.Context, username string, amount decimal.Decimal) (*domain.Account, error) {
	if err := validator.ValidateAmount(amount); err != nil {
		return nil, err
	}
	account, err := l.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if !domain.FitsMinorUnits(account.Balance.Add(amount)) {
		return nil, fmt.Errorf("%w: balance of %s would exceed the storable maximum", domain.ErrInvalidAmount, username)
	}

	account.Balance = account.Balance.Add(amount)
	if err := l.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	l.logger.InfoContext(ctx, "Cash deposited",
		slog.String("username", username),
		slog.String("amount", amount.StringFixed(domain.MinorUnitExponent)))
	return account, l.commit(ctx, l.entry(username, domain.ActionCashDeposit, amount, ""))
}

// DepositCheck clears the outstanding check carrying code and credits its amount
// to username. Any account may present any code; a cleared code is gone, so a
// second presentation fails with domain.ErrInvalidCheckCode.
func (l *Ledger) DepositCheck(ctx context.Context, username string, code uint32) (*domain.Account, error) {
	depositor, err := l.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	issuer, err := l.accounts.FindByCheckCode(ctx, code)
	if err != nil {
		return nil, l.reject(ctx, l.entry(username, domain.ActionCheckDepositFailed, decimal.Zero, domain.NoteInvalidCode), err)
	}

	amount := issuer.Check.Amount
	if !domain.FitsMinorUnits(depositor.Balance.Add(amount)) {
		return nil, fmt.Errorf("%w: balance of %s would exceed the storable maximum", domain.ErrInvalidAmount, username)
	}
	if issuer.Username == depositor.Username {
		depositor.Balance = depositor.Balance.Add(amount)
		depositor.ClearCheck()
		err = l.accounts.Update(ctx, depositor)
	} else {
		depositor.Balance = depositor.Balance.Add(amount)
		issuer.ClearCheck()
		err = l.accounts.Update(ctx, depositor, issuer)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to clear check: %w", err)
	}

	l.logger.InfoContext(ctx, "Check cleared",
		slog.String("username", username),
		slog.String("issuer", issuer.Username),
		slog.String("amount", amount.StringFixed(domain.MinorUnitExponent)))
	return depositor, l.commit(ctx, l.entry(username, domain.ActionCheckDeposit, amount, "FROM "+issuer.Username))
}

func (l *Ledger) Withdraw(ctx context.Context, username string, amount decimal.Decimal) (*domain.Account, error) {
	if err := validator.ValidateAmount(amount); err != nil {
		return nil, err
	}
	account, err := l.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if amount.GreaterThan(account.Balance) {
		return nil, l.reject(ctx, l.entry(username, domain.ActionFailedWithdraw, amount, domain.NoteLowBalance), domain.ErrInsufficientFunds)
	}

	account.Balance = account.Balance.Sub(amount)
	if err := l.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	l.logger.InfoContext(ctx, "Cash withdrawn",
		slog.String("username", username),
		slog.String("amount", amount.StringFixed(domain.MinorUnitExponent)))
	return account, l.commit(ctx, l.entry(username, domain.ActionWithdraw, amount, ""))
}

// IssueCheck reserves amount from the account's balance under a fresh code. The
// code is returned to the issuer only; it never appears in the audit log.
func (l *Ledger) IssueCheck(ctx context.Context, username string, amount decimal.Decimal) (uint32, *domain.Account, error) {
	if err := validator.ValidateAmount(amount); err != nil {
		return 0, nil, err
	}
	account, err := l.accounts.FindByUsername(ctx, username)
	if err != nil {
		return 0, nil, err
	}

	if account.Check.Outstanding() {
		return 0, nil, l.reject(ctx, l.entry(username, domain.ActionCheckFailed, amount, domain.NoteCheckOutstanding), domain.ErrCheckOutstanding)
	}
	if amount.GreaterThan(account.Balance) {
		return 0, nil, l.reject(ctx, l.entry(username, domain.ActionCheckFailed, amount, domain.NoteLowBalance), domain.ErrInsufficientFunds)
	}

	code, err := l.codes.Next(func(c uint32) bool { return l.accounts.CheckCodeInUse(ctx, c) })
	if err != nil {
		return 0, nil, l.reject(ctx, l.entry(username, domain.ActionCheckFailed, amount, noteNoFreeCode), err)
	}

	account.Balance = account.Balance.Sub(amount)
	account.Check = domain.PendingCheck{Code: code, Amount: amount}
	if err := l.accounts.Update(ctx, account); err != nil {
		return 0, nil, fmt.Errorf("failed to update account: %w", err)
	}

	l.logger.InfoContext(ctx, "Check issued",
		slog.String("username", username),
		slog.String("amount", amount.StringFixed(domain.MinorUnitExponent)))
	return code, account, l.commit(ctx, l.entry(username, domain.ActionCheckIssued, amount, ""))
}

// Transfer moves amount from sender to receiver. Both balances change together
// or neither does.
func (l *Ledger) Transfer(ctx context.Context, sender, receiver string, amount decimal.Decimal) (*domain.Account, error) {
	if err := validator.ValidateAmount(amount); err != nil {
		return nil, err
	}
	from, err := l.accounts.FindByUsername(ctx, sender)
	if err != nil {
		return nil, err
	}

	if receiver == sender {
		return nil, l.reject(ctx, l.entry(sender, domain.ActionTransferFailed, amount, domain.NoteSelfTransfer), domain.ErrSelfTransfer)
	}
	to, err := l.accounts.FindByUsername(ctx, receiver)
	if err != nil {
		return nil, l.reject(ctx, l.entry(sender, domain.ActionTransferFailed, amount, domain.NoteUserNotFound), err)
	}
	if amount.GreaterThan(from.Balance) {
		return nil, l.reject(ctx, l.entry(sender, domain.ActionTransferFailed, amount, domain.NoteLowBalance), domain.ErrInsufficientFunds)
	}

	if !domain.FitsMinorUnits(to.Balance.Add(amount)) {
		return nil, fmt.Errorf("%w: balance of %s would exceed the storable maximum", domain.ErrInvalidAmount, receiver)
	}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	if err := l.accounts.Update(ctx, from, to); err != nil {
		return nil, fmt.Errorf("failed to apply transfer: %w", err)
	}

	l.logger.InfoContext(ctx, "Transfer completed",
		slog.String("from", sender),
		slog.String("to", receiver),
		slog.String("amount", amount.StringFixed(domain.MinorUnitExponent)))
	return from, l.commit(ctx, l.entry(sender, domain.ActionTransfer, amount, "TO "+receiver))
}

// History returns the audit lines mentioning username. Matching is by substring,
// so lines naming a counterparty, or another user whose name contains this one,
// are included.
func (l *Ledger) History(ctx context.Context, username string) ([]string, error) {
	return l.audit.QueryByUsername(ctx, username)
}

func (l *Ledger) entry(username string, action domain.Action, amount decimal.Decimal, note string) domain.AuditEntry {
	return domain.NewAuditEntry(l.now(), username, action, amount, note)
}

// commit records a successful mutation: audit entry first, then the snapshot.
func (l *Ledger) commit(ctx context.Context, entry domain.AuditEntry) error {
	l.metrics.RecordOperation(string(entry.Action), true)

	var warnings []error
	if err := l.audit.Append(ctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "Audit append failed",
			slog.String("action", string(entry.Action)),
			slog.String("error", err.Error()))
		warnings = append(warnings, domain.NewDurabilityError("audit append", err))
	}
	if err := l.Save(ctx); err != nil {
		l.logger.ErrorContext(ctx, "Snapshot save failed",
			slog.String("action", string(entry.Action)),
			slog.String("error", err.Error()))
		warnings = append(warnings, domain.NewDurabilityError("snapshot save", err))
	}

	l.refreshMetrics(ctx)
	return errors.Join(warnings...)
}

// reject records a failed operation and returns cause, joined with a warning if
// the audit entry could not be written.
func (l *Ledger) reject(ctx context.Context, entry domain.AuditEntry, cause error) error {
	l.metrics.RecordOperation(string(entry.Action), false)
	l.logger.WarnContext(ctx, "Operation rejected",
		slog.String("username", entry.Username),
		slog.String("action", string(entry.Action)),
		slog.String("error", cause.Error()))

	if err := l.audit.Append(ctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "Audit append failed",
			slog.String("action", string(entry.Action)),
			slog.String("error", err.Error()))
		return errors.Join(cause, domain.NewDurabilityError("audit append", err))
	}
	return cause
}

func (l *Ledger) refreshMetrics(ctx context.Context) {
	accounts := l.accounts.All(ctx)
	outstanding := 0
	held := decimal.Zero
	for _, a := range accounts {
		held = held.Add(a.Balance)
		if a.Check.Outstanding() {
			outstanding++
			held = held.Add(a.Check.Amount)
		}
	}
	l.metrics.UpdateLedgerState(len(accounts), outstanding, held.InexactFloat64())
}
