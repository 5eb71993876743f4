package domain

import (
	"github.com/shopspring/decimal"
)

// PendingCheck is the single outstanding check an account may carry.
// The zero value means no check is outstanding.
type PendingCheck struct {
	Code   uint32          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

func (c PendingCheck) Outstanding() bool {
	return c.Code != 0 && c.Amount.IsPositive()
}

// Valid reports whether the check is either fully absent or fully present.
func (c PendingCheck) Valid() bool {
	if c.Code == 0 {
		return c.Amount.IsZero()
	}
	return c.Amount.IsPositive()
}

type Account struct {
	Username string          `json:"username"`
	Password string          `json:"-"`
	Balance  decimal.Decimal `json:"balance"`
	Check    PendingCheck    `json:"check"`
}

func NewAccount(username, password string) *Account {
	return &Account{
		Username: username,
		Password: password,
		Balance:  decimal.Zero,
	}
}

func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

func (a *Account) ClearCheck() {
	a.Check = PendingCheck{}
}
