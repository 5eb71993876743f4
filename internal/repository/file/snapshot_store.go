package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"account_ledger/internal/domain"
	"account_ledger/pkg/crypto"
)

const signatureSuffix = ".sig"

type SnapshotStore struct {
	path          string
	signer        *crypto.Signer
	allowUnsigned bool
	rename        func(oldpath, newpath string) error
	logger        *slog.Logger
}

type SnapshotOption func(*SnapshotStore)

// AllowUnsigned lets a signing store load a snapshot that has no signature
// file yet, for adopting a key on existing data. The next save signs it.
func AllowUnsigned() SnapshotOption {
	return func(s *SnapshotStore) { s.allowUnsigned = true }
}

// NewSnapshotStore stores accounts at path. With a non-nil signer an HMAC of the
// snapshot is kept next to it and checked on load.
func NewSnapshotStore(path string, signer *crypto.Signer, logger *slog.Logger, opts ...SnapshotOption) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SnapshotStore{
		path:   path,
		signer: signer,
		rename: os.Rename,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SnapshotStore) Path() string {
	return s.path
}

func (s *SnapshotStore) Load(ctx context.Context) ([]*domain.Account, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.InfoContext(ctx, "No snapshot found, starting empty", slog.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStorageUnavailable, s.path, err)
	}

	if s.signer != nil {
		if err := s.verify(ctx, data); err != nil {
			return nil, err
		}
	}

	accounts, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Snapshot loaded",
		slog.String("path", s.path),
		slog.Int("accounts", len(accounts)))
	return accounts, nil
}

// Save replaces the snapshot. When signing, the signature file is written
// first and lists the signatures of both the new and the current snapshot, so
// whichever of the two is on disk after an interrupted save still verifies.
// Once the snapshot is replaced the old signature is dropped.
func (s *SnapshotStore) Save(ctx context.Context, accounts []*domain.Account) error {
	data, err := EncodeSnapshot(accounts)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %w", domain.ErrStorageUnavailable, err)
	}

	if s.signer == nil {
		if err := s.writeFileAtomic(s.path, data); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		s.logSaved(ctx, len(accounts))
		return nil
	}

	sig := s.signer.Sign(data)
	pending := []string{sig}
	if current := s.currentSignature(); current != "" && current != sig {
		pending = append(pending, current)
	}

	if err := s.writeSignatures(pending); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if err := s.writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if len(pending) > 1 {
		if err := s.writeSignatures(pending[:1]); err != nil {
			// Both signatures stay listed; the new snapshot still verifies.
			s.logger.WarnContext(ctx, "Failed to drop previous snapshot signature",
				slog.String("path", s.path+signatureSuffix),
				slog.String("error", err.Error()))
		}
	}

	s.logSaved(ctx, len(accounts))
	return nil
}

func (s *SnapshotStore) logSaved(ctx context.Context, accounts int) {
	s.logger.DebugContext(ctx, "Snapshot saved",
		slog.String("path", s.path),
		slog.Int("accounts", accounts))
}

// currentSignature returns the listed signature that matches the snapshot now
// on disk, or "" when there is none. An unsigned snapshot that AllowUnsigned
// admits is signed as it stands.
func (s *SnapshotStore) currentSignature() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ""
	}
	sigs, err := s.readSignatures()
	if errors.Is(err, fs.ErrNotExist) && s.allowUnsigned {
		return s.signer.Sign(data)
	}
	if err != nil {
		return ""
	}
	for _, sig := range sigs {
		if s.signer.Verify(data, sig) == nil {
			return sig
		}
	}
	return ""
}

func (s *SnapshotStore) readSignatures() ([]string, error) {
	raw, err := os.ReadFile(s.path + signatureSuffix)
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(raw)), nil
}

func (s *SnapshotStore) writeSignatures(sigs []string) error {
	return s.writeFileAtomic(s.path+signatureSuffix, []byte(strings.Join(sigs, "\n")+"\n"))
}

func (s *SnapshotStore) verify(ctx context.Context, data []byte) error {
	sigs, err := s.readSignatures()
	if errors.Is(err, fs.ErrNotExist) {
		if s.allowUnsigned {
			s.logger.WarnContext(ctx, "Snapshot has no signature, accepting unsigned snapshot",
				slog.String("path", s.path))
			return nil
		}
		return fmt.Errorf("%w: %s has no signature", domain.ErrSnapshotCorrupt, s.path)
	}
	if err != nil {
		return fmt.Errorf("%w: read signature: %v", domain.ErrStorageUnavailable, err)
	}
	for _, sig := range sigs {
		if s.signer.Verify(data, sig) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrSnapshotCorrupt, crypto.ErrInvalidSignature)
}

// writeFileAtomic writes to a temporary file in the same directory and renames
// it over path once the data is synced.
func (s *SnapshotStore) writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := s.rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	tmpName = ""
	return nil
}
