// Package file holds the flat-file storage used between runs: a binary account
// snapshot replaced atomically on every save, and an append-only text audit log.
package file

import (
	"account_ledger/internal/repository"
)

var (
	_ repository.SnapshotStore = (*SnapshotStore)(nil)
	_ repository.AuditLog      = (*AuditLog)(nil)
)
