// Package console is the operator-facing menu. It reads one answer per line and
// drives the ledger; it holds no business rules of its own.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"account_ledger/internal/auth"
	"account_ledger/internal/domain"
	"account_ledger/internal/processor"
	"account_ledger/pkg/validator"
)

type Console struct {
	ledger *processor.Ledger
	auth   *auth.Authenticator
	in     *bufio.Scanner
	out    io.Writer
	logger *slog.Logger
}

func New(ledger *processor.Ledger, authenticator *auth.Authenticator, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		ledger: ledger,
		auth:   authenticator,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: logger,
	}
}

// Run shows the main menu until the operator exits or input ends. Both paths
// save the snapshot one final time.
func (c *Console) Run(ctx context.Context) error {
	for {
		c.printf("\n--- BANK MANAGEMENT SYSTEM ---\n1. Create Account\n2. Login\n3. Exit\nEnter choice: ")
		choice, err := c.readLine()
		if err != nil {
			return c.exit(ctx, err)
		}

		switch strings.TrimSpace(choice) {
		case "1":
			err = c.createAccount(ctx)
		case "2":
			err = c.login(ctx)
		case "3":
			return c.exit(ctx, nil)
		default:
			c.printf("\nInvalid choice!\n")
		}
		if err != nil {
			return c.exit(ctx, err)
		}
	}
}

func (c *Console) exit(ctx context.Context, cause error) error {
	if cause != nil && !errors.Is(cause, io.EOF) {
		return cause
	}
	if err := c.ledger.Save(ctx); err != nil {
		c.printf("\nExiting... Data could not be saved: %v\n", err)
		return err
	}
	c.printf("\nExiting... Data saved.\n")
	return nil
}

func (c *Console) createAccount(ctx context.Context) error {
	if c.ledger.AccountsFull(ctx) {
		c.report(domain.ErrCapacityExceeded)
		return nil
	}
	for {
		c.printf("\nCreate Username: ")
		username, err := c.readLine()
		if err != nil {
			return err
		}
		c.printf("Create Password: ")
		password, err := c.readLine()
		if err != nil {
			return err
		}

		_, err = c.ledger.CreateAccount(ctx, username, password)
		if errors.Is(err, domain.ErrDuplicateUsername) {
			c.printf("Username already taken. Try another.\n")
			continue
		}
		if c.report(err) {
			c.printf("\nAccount created successfully!\n")
		}
		return nil
	}
}

func (c *Console) login(ctx context.Context) error {
	prompt := func(attempt, remaining int) (string, string, error) {
		c.printf("\nUsername: ")
		username, err := c.readLine()
		if err != nil {
			return "", "", err
		}
		c.printf("Password: ")
		password, err := c.readLine()
		return username, password, err
	}
	onFailure := func(remaining int) {
		c.printf("\nInvalid credentials. Attempts left: %d\n", remaining)
	}

	account, err := c.auth.Login(ctx, prompt, onFailure)
	if account == nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			c.printf("\nInvalid credentials. Attempts left: 0\nToo many failed attempts. Returning to main menu.\n")
			return nil
		}
		return err
	}

	c.printf("\nLogin successful.\n")
	c.report(err)
	return c.accountMenu(ctx, account.Username)
}

func (c *Console) accountMenu(ctx context.Context, username string) error {
	for {
		c.printf("\n--- ACCOUNT MENU ---\n1. Check Balance\n2. Deposit\n3. Withdraw\n4. Issue Check\n5. Transfer\n6. View My Transactions\n7. Logout\nSelect: ")
		choice, err := c.readLine()
		if err != nil {
			return err
		}

		switch strings.TrimSpace(choice) {
		case "1":
			err = c.balance(ctx, username)
		case "2":
			err = c.deposit(ctx, username)
		case "3":
			err = c.withdraw(ctx, username)
		case "4":
			err = c.issueCheck(ctx, username)
		case "5":
			err = c.transfer(ctx, username)
		case "6":
			err = c.history(ctx, username)
		case "7":
			return nil
		default:
			c.printf("\nInvalid option.\n")
		}
		if err != nil {
			return err
		}
	}
}

func (c *Console) balance(ctx context.Context, username string) error {
	balance, err := c.ledger.Balance(ctx, username)
	if c.report(err) {
		c.printf("\nCurrent Balance: Rs %s\n", balance.StringFixed(domain.MinorUnitExponent))
	}
	return nil
}

func (c *Console) deposit(ctx context.Context, username string) error {
	c.printf("\nDeposit Method\n1. Cash\n2. Check\nChoice: ")
	method, err := c.readLine()
	if err != nil {
		return err
	}

	switch strings.TrimSpace(method) {
	case "1":
		c.printf("Amount: ")
		line, err := c.readLine()
		if err != nil {
			return err
		}
		amount, err := validator.ParseAmount(line)
		if !c.report(err) {
			return nil
		}
		_, err = c.ledger.DepositCash(ctx, username, amount)
		if c.report(err) {
			c.printf("\nDeposit successful.\n")
		}
	case "2":
		c.printf("Check code: ")
		line, err := c.readLine()
		if err != nil {
			return err
		}
		code, err := strconv.ParseUint(strings.TrimSpace(line), 10, 32)
		if err != nil {
			code = 0
		}
		_, err = c.ledger.DepositCheck(ctx, username, uint32(code))
		if c.report(err) {
			c.printf("\nCheck cleared and amount added.\n")
		}
	default:
		c.printf("\nInvalid deposit type.\n")
	}
	return nil
}

func (c *Console) withdraw(ctx context.Context, username string) error {
	c.printf("Withdraw amount: ")
	line, err := c.readLine()
	if err != nil {
		return err
	}
	amount, err := validator.ParseAmount(line)
	if !c.report(err) {
		return nil
	}
	_, err = c.ledger.Withdraw(ctx, username, amount)
	if c.report(err) {
		c.printf("\nWithdrawal successful.\n")
	}
	return nil
}

func (c *Console) issueCheck(ctx context.Context, username string) error {
	c.printf("Enter check amount: ")
	line, err := c.readLine()
	if err != nil {
		return err
	}
	amount, err := validator.ParseAmount(line)
	if !c.report(err) {
		return nil
	}
	code, _, err := c.ledger.IssueCheck(ctx, username, amount)
	if c.report(err) {
		c.printf("\nCheck issued. Code: %d\n", code)
	}
	return nil
}

func (c *Console) transfer(ctx context.Context, username string) error {
	c.printf("Receiver username: ")
	receiver, err := c.readLine()
	if err != nil {
		return err
	}
	c.printf("Amount to transfer: ")
	line, err := c.readLine()
	if err != nil {
		return err
	}
	amount, err := validator.ParseAmount(line)
	if !c.report(err) {
		return nil
	}
	_, err = c.ledger.Transfer(ctx, username, receiver, amount)
	if c.report(err) {
		c.printf("\nTransfer completed.\n")
	}
	return nil
}

func (c *Console) history(ctx context.Context, username string) error {
	lines, err := c.ledger.History(ctx, username)
	if !c.report(err) {
		return nil
	}
	c.printf("\n--- TRANSACTION HISTORY for %s ---\n", username)
	if len(lines) == 0 {
		c.printf("No transactions for this account yet.\n")
		return nil
	}
	for _, line := range lines {
		c.printf("%s\n", line)
	}
	return nil
}

// report prints a message for err and reports whether the operation went
// through. Durability warnings are printed but count as success.
func (c *Console) report(err error) bool {
	if err == nil {
		return true
	}
	if domain.IsWarning(err) {
		c.printf("\nWarning: the change was applied but may not be saved (%v).\n", err)
		return true
	}

	c.logger.Debug("Operation failed", slog.String("error", err.Error()))
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		c.printf("\nInsufficient funds.\n")
	case errors.Is(err, domain.ErrInvalidCheckCode):
		c.printf("\nInvalid or already used check code.\n")
	case errors.Is(err, domain.ErrUserNotFound):
		c.printf("\nUser not found.\n")
	case errors.Is(err, domain.ErrCapacityExceeded):
		c.printf("\nUser limit reached.\n")
	case errors.Is(err, domain.ErrCheckOutstanding):
		c.printf("\nA check is already outstanding. It must be deposited before a new one is issued.\n")
	case errors.Is(err, domain.ErrSelfTransfer):
		c.printf("\nCannot transfer to your own account.\n")
	case errors.Is(err, domain.ErrInvalidAmount):
		c.printf("\nInvalid amount.\n")
	case domain.IsValidationError(err):
		var validationErr *domain.ValidationError
		errors.As(err, &validationErr)
		c.printf("\nInvalid %s: %s.\n", validationErr.Field, validationErr.Message)
	default:
		c.printf("\nOperation failed: %v\n", err)
	}
	return false
}

func (c *Console) readLine() (string, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(c.in.Text(), "\r"), nil
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
