package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionAccountCreated     Action = "ACCOUNT CREATED"
	ActionLoginSuccess       Action = "LOGIN SUCCESS"
	ActionLoginFailed        Action = "LOGIN FAILED"
	ActionCashDeposit        Action = "CASH DEPOSIT"
	ActionCheckDeposit       Action = "CHECK DEPOSIT"
	ActionCheckDepositFailed Action = "CHECK DEPOSIT FAILED"
	ActionWithdraw           Action = "WITHDRAW"
	ActionFailedWithdraw     Action = "FAILED WITHDRAW"
	ActionCheckIssued        Action = "CHECK ISSUED"
	ActionCheckFailed        Action = "CHECK FAILED"
	ActionTransfer           Action = "TRANSFER"
	ActionTransferFailed     Action = "TRANSFER FAILED"
)

// Notes written to the audit log on failure paths.
const (
	NoteWrongCredentials = "WRONG CREDENTIALS"
	NoteLowBalance       = "LOW BALANCE"
	NoteInvalidCode      = "INVALID CODE"
	NoteCheckOutstanding = "CHECK OUTSTANDING"
	NoteUserNotFound     = "USER NOT FOUND"
	NoteSelfTransfer     = "SAME ACCOUNT"
)

const auditTimeLayout = "02-01-2006 15:04:05"

type AuditEntry struct {
	Timestamp time.Time
	Username  string
	Action    Action
	Amount    decimal.Decimal
	Note      string
}

func NewAuditEntry(ts time.Time, username string, action Action, amount decimal.Decimal, note string) AuditEntry {
	return AuditEntry{
		Timestamp: ts,
		Username:  username,
		Action:    action,
		Amount:    amount,
		Note:      note,
	}
}

// Format renders the entry as a single audit log line without the trailing newline:
//
//	[DD-MM-YYYY HH:MM:SS] <username> | <ACTION> | Rs <amount> | <note or "-">
func (e AuditEntry) Format() string {
	note := e.Note
	if note == "" {
		note = "-"
	}
	return fmt.Sprintf("[%s] %s | %s | Rs %s | %s",
		e.Timestamp.Format(auditTimeLayout),
		e.Username,
		e.Action,
		e.Amount.StringFixed(MinorUnitExponent),
		note)
}
