package file

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"account_ledger/internal/domain"
	"account_ledger/pkg/crypto"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAccounts() []*domain.Account {
	return []*domain.Account{
		{Username: "alice", Password: "pw1", Balance: decimal.RequireFromString("30.25")},
		{
			Username: "bob",
			Password: "a much longer password 123",
			Balance:  decimal.NewFromInt(70),
			Check:    domain.PendingCheck{Code: 4821, Amount: decimal.RequireFromString("12.5")},
		},
	}
}

func assertSameAccounts(t *testing.T, want, got []*domain.Account) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Username, got[i].Username)
		assert.Equal(t, want[i].Password, got[i].Password)
		assert.True(t, want[i].Balance.Equal(got[i].Balance), "balance %s != %s", want[i].Balance, got[i].Balance)
		assert.Equal(t, want[i].Check.Code, got[i].Check.Code)
		assert.True(t, want[i].Check.Amount.Equal(got[i].Check.Amount))
	}
}

func TestSnapshotCodec_RoundTrip(t *testing.T) {
	orig := sampleAccounts()

	data, err := EncodeSnapshot(orig)
	require.NoError(t, err)
	assert.Len(t, data, headerSize+2*recordSize)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data))

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assertSameAccounts(t, orig, got)
}

func TestSnapshotCodec_EmptyStore(t *testing.T) {
	data, err := EncodeSnapshot(nil)
	require.NoError(t, err)
	assert.Len(t, data, headerSize)

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotCodec_IgnoresBytesAfterTerminator(t *testing.T) {
	data, err := EncodeSnapshot(sampleAccounts()[:1])
	require.NoError(t, err)
	// garbage after the NUL must not leak into the username
	copy(data[headerSize+len("alice")+1:], "junk")

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "alice", got[0].Username)
}

func TestSnapshotCodec_RejectsOversizedField(t *testing.T) {
	_, err := EncodeSnapshot([]*domain.Account{{Username: "abcdefghijklmnopqrstuvwxyz0123", Balance: decimal.Zero}})
	assert.True(t, domain.IsValidationError(err))
}

func TestSnapshotCodec_RejectsAmountsBeyondInt64(t *testing.T) {
	maxBalance := domain.FromMinorUnits(math.MaxInt64)

	tests := []struct {
		name    string
		account *domain.Account
		wantErr bool
	}{
		{
			name:    "largest storable balance",
			account: &domain.Account{Username: "a", Password: "p", Balance: maxBalance},
		},
		{
			name:    "balance one paisa over",
			account: &domain.Account{Username: "a", Password: "p", Balance: maxBalance.Add(decimal.RequireFromString("0.01"))},
			wantErr: true,
		},
		{
			name: "check amount over",
			account: &domain.Account{
				Username: "a",
				Password: "p",
				Balance:  decimal.Zero,
				Check:    domain.PendingCheck{Code: 1234, Amount: decimal.RequireFromString("100000000000000000")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeSnapshot([]*domain.Account{tt.account})
			if tt.wantErr {
				assert.True(t, domain.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			got, err := DecodeSnapshot(data)
			require.NoError(t, err)
			assert.True(t, tt.account.Balance.Equal(got[0].Balance))
		})
	}
}

func TestSnapshotCodec_DetectsCorruption(t *testing.T) {
	good, err := EncodeSnapshot(sampleAccounts())
	require.NoError(t, err)

	cases := map[string][]byte{
		"short header": good[:2],
		"truncated":    good[:len(good)-1],
		"bad count": func() []byte {
			b := append([]byte(nil), good...)
			binary.LittleEndian.PutUint32(b, 5)
			return b
		}(),
		"partial check": func() []byte {
			b := append([]byte(nil), good...)
			off := headerSize + recordSize + 2*fieldSize + 12
			binary.LittleEndian.PutUint64(b[off:], 0)
			return b
		}(),
		"empty username": func() []byte {
			b := append([]byte(nil), good...)
			b[headerSize] = 0
			return b
		}(),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot(data)
			assert.ErrorIs(t, err, domain.ErrSnapshotCorrupt)
		})
	}
}

func TestSnapshotStore_MissingFileIsEmpty(t *testing.T) {
	store := NewSnapshotStore(filepath.Join(t.TempDir(), "bank.dat"), nil, nil)

	accounts, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.dat")
	store := NewSnapshotStore(path, nil, nil)

	require.NoError(t, store.Save(ctx, sampleAccounts()))
	require.NoError(t, store.Save(ctx, sampleAccounts()[:1]))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assertSameAccounts(t, sampleAccounts()[:1], got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestSnapshotStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.dat")
	require.NoError(t, os.WriteFile(path, []byte{1, 0, 0, 0, 'x'}, 0o644))

	_, err := NewSnapshotStore(path, nil, nil).Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrSnapshotCorrupt)
}

func TestSnapshotStore_UnreadableLocation(t *testing.T) {
	// a directory cannot be read as a snapshot
	_, err := NewSnapshotStore(t.TempDir(), nil, nil).Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestSnapshotStore_Signature(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.dat")
	store := NewSnapshotStore(path, crypto.NewSigner("secret", nil), nil)
	require.NoError(t, store.Save(ctx, sampleAccounts()))

	_, err := store.Load(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(data[headerSize+2*fieldSize:], 999999)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrSnapshotCorrupt)
}

func TestSnapshotStore_UnsignedSnapshotRejected(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.dat")
	require.NoError(t, NewSnapshotStore(path, nil, nil).Save(ctx, sampleAccounts()))

	_, err := NewSnapshotStore(path, crypto.NewSigner("secret", nil), nil).Load(ctx)

	assert.ErrorIs(t, err, domain.ErrSnapshotCorrupt)
}

func TestSnapshotStore_AllowUnsignedAdoptsKey(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.dat")
	require.NoError(t, NewSnapshotStore(path, nil, nil).Save(ctx, sampleAccounts()))

	store := NewSnapshotStore(path, crypto.NewSigner("secret", nil), nil, AllowUnsigned())
	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, got))

	strict := NewSnapshotStore(path, crypto.NewSigner("secret", nil), nil)
	got, err = strict.Load(ctx)
	require.NoError(t, err)
	assertSameAccounts(t, sampleAccounts(), got)
}

func TestSnapshotStore_AdoptingKeyInterruptedBeforeSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.dat")
	signer := crypto.NewSigner("secret", nil)
	require.NoError(t, NewSnapshotStore(path, nil, nil).Save(ctx, sampleAccounts()[:1]))

	store := NewSnapshotStore(path, signer, nil, AllowUnsigned())
	failRename(store, path, 1)
	require.Error(t, store.Save(ctx, sampleAccounts()))

	got, err := NewSnapshotStore(path, signer, nil).Load(ctx)
	require.NoError(t, err)
	assertSameAccounts(t, sampleAccounts()[:1], got)
}

// failRename makes the nth rename onto target fail, counting from 1.
func failRename(store *SnapshotStore, target string, nth int) {
	seen := 0
	store.rename = func(oldpath, newpath string) error {
		if newpath == target {
			seen++
			if seen == nth {
				return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrExist}
			}
		}
		return os.Rename(oldpath, newpath)
	}
}

func readSignatureLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path + signatureSuffix)
	require.NoError(t, err)
	return strings.Fields(string(raw))
}

func TestSnapshotStore_SignedSaveInterruptedBeforeSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.dat")
	signer := crypto.NewSigner("secret", nil)
	older := sampleAccounts()[:1]
	newer := sampleAccounts()

	store := NewSnapshotStore(path, signer, nil)
	require.NoError(t, store.Save(ctx, older))

	failRename(store, path, 1)
	err := store.Save(ctx, newer)
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Len(t, readSignatureLines(t, path), 2)

	got, err := NewSnapshotStore(path, signer, nil).Load(ctx)
	require.NoError(t, err)
	assertSameAccounts(t, older, got)

	// the next save starts from the surviving snapshot
	store = NewSnapshotStore(path, signer, nil)
	require.NoError(t, store.Save(ctx, newer))
	assert.Len(t, readSignatureLines(t, path), 1)
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assertSameAccounts(t, newer, got)
}

func TestSnapshotStore_SignedSaveInterruptedAfterSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.dat")
	signer := crypto.NewSigner("secret", nil)

	store := NewSnapshotStore(path, signer, nil)
	require.NoError(t, store.Save(ctx, sampleAccounts()[:1]))

	// the first signature rename lists both generations, the second drops the old one
	failRename(store, path+signatureSuffix, 2)
	require.NoError(t, store.Save(ctx, sampleAccounts()))
	assert.Len(t, readSignatureLines(t, path), 2)

	got, err := NewSnapshotStore(path, signer, nil).Load(ctx)
	require.NoError(t, err)
	assertSameAccounts(t, sampleAccounts(), got)
}

func TestSnapshotStore_SignatureFileMissing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bank.dat")
	store := NewSnapshotStore(path, crypto.NewSigner("secret", nil), nil)
	require.NoError(t, store.Save(ctx, sampleAccounts()))
	require.NoError(t, os.Remove(path+signatureSuffix))

	_, err := store.Load(ctx)

	assert.ErrorIs(t, err, domain.ErrSnapshotCorrupt)
}

func TestSnapshotStore_SaveRejectsUnstorableBalance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.dat")
	accounts := []*domain.Account{{Username: "alice", Password: "pw", Balance: decimal.RequireFromString("100000000000000000")}}

	err := NewSnapshotStore(path, nil, nil).Save(context.Background(), accounts)

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.True(t, domain.IsValidationError(err))
	assert.NoFileExists(t, path)
}
