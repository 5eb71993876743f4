package auth

import (
	"context"
	"errors"
	"testing"

	"account_ledger/internal/domain"
	"account_ledger/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	outcomes []string
}

func (r *countingRecorder) RecordLogin(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func setup(t *testing.T) (*Authenticator, *memory.AuditLog, *countingRecorder) {
	t.Helper()
	accounts := memory.NewAccountRepository(0)
	_, err := accounts.Create(context.Background(), "alice", "pw1")
	require.NoError(t, err)
	audit := memory.NewAuditLog()
	rec := &countingRecorder{}
	return NewAuthenticator(accounts, audit, DefaultMaxAttempts, rec, nil), audit, rec
}

func TestSession_Success(t *testing.T) {
	a, audit, rec := setup(t)
	s := a.NewSession()

	account, err := s.Attempt(context.Background(), "alice", "pw1")

	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	lines := audit.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "alice | LOGIN SUCCESS | Rs 0.00 | -")
	assert.Equal(t, []string{"success"}, rec.outcomes)
}

func TestSession_CaseSensitive(t *testing.T) {
	a, _, _ := setup(t)

	_, err := a.NewSession().Attempt(context.Background(), "Alice", "pw1")

	assert.ErrorIs(t, err, domain.ErrWrongCredentials)
}

func TestSession_LockoutOnThirdFailure(t *testing.T) {
	ctx := context.Background()
	a, audit, rec := setup(t)
	s := a.NewSession()

	_, err := s.Attempt(ctx, "alice", "bad")
	assert.ErrorIs(t, err, domain.ErrWrongCredentials)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = s.Attempt(ctx, "nobody", "pw1")
	assert.ErrorIs(t, err, domain.ErrWrongCredentials)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = s.Attempt(ctx, "alice", "bad")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, 0, s.Remaining())

	// correct credentials no longer help in this session
	account, err := s.Attempt(ctx, "alice", "pw1")
	assert.Nil(t, account)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	lines := audit.Lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "nobody | LOGIN FAILED | Rs 0.00 | WRONG CREDENTIALS")
	assert.Equal(t, []string{"failure", "failure", "lockout"}, rec.outcomes)

	// a fresh session starts over
	account, err = a.NewSession().Attempt(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.NotNil(t, account)
}

func TestLogin_RetriesUntilSuccess(t *testing.T) {
	a, _, _ := setup(t)
	creds := [][2]string{{"alice", "x"}, {"alice", "pw1"}}
	var remainingSeen []int

	account, err := a.Login(context.Background(), func(attempt, remaining int) (string, string, error) {
		c := creds[attempt-1]
		return c[0], c[1], nil
	}, func(remaining int) { remainingSeen = append(remainingSeen, remaining) })

	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, []int{2}, remainingSeen)
}

func TestLogin_ExhaustsAfterMaxAttempts(t *testing.T) {
	a, _, _ := setup(t)
	calls := 0

	account, err := a.Login(context.Background(), func(attempt, remaining int) (string, string, error) {
		calls++
		return "alice", "wrong", nil
	}, nil)

	assert.Nil(t, account)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, DefaultMaxAttempts, calls)
}

func TestLogin_PromptError(t *testing.T) {
	a, _, _ := setup(t)
	stop := errors.New("input closed")

	_, err := a.Login(context.Background(), func(int, int) (string, string, error) {
		return "", "", stop
	}, nil)

	assert.ErrorIs(t, err, stop)
}
