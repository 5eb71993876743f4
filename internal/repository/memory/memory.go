package memory

import (
	"account_ledger/internal/repository"
)

var (
	_ repository.AccountRepository = (*AccountRepository)(nil)
	_ repository.AuditLog          = (*AuditLog)(nil)
)
