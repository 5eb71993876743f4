package file

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"account_ledger/internal/domain"
)

// Snapshot layout, little-endian, no padding:
//
//	uint32 count
//	count × record{
//	    [30]byte username (NUL-padded)
//	    [30]byte password (NUL-padded)
//	    int64    balance in paise
//	    uint32   check code, 0 when absent
//	    int64    check amount in paise, 0 when absent
//	}
const (
	fieldSize  = 30
	headerSize = 4
	recordSize = fieldSize + fieldSize + 8 + 4 + 8
)

var byteOrder = binary.LittleEndian

func EncodeSnapshot(accounts []*domain.Account) ([]byte, error) {
	buf := make([]byte, headerSize+recordSize*len(accounts))
	byteOrder.PutUint32(buf, uint32(len(accounts)))

	for i, account := range accounts {
		rec := buf[headerSize+i*recordSize : headerSize+(i+1)*recordSize]
		if err := putField(rec[0:fieldSize], "username", account.Username); err != nil {
			return nil, err
		}
		if err := putField(rec[fieldSize:2*fieldSize], "password", account.Password); err != nil {
			return nil, err
		}
		if account.Balance.IsNegative() || !domain.HasMinorUnitPrecision(account.Balance) || !domain.FitsMinorUnits(account.Balance) {
			return nil, domain.NewValidationError("balance", fmt.Sprintf("%s cannot be stored for %s", account.Balance, account.Username))
		}
		if !account.Check.Valid() || !domain.HasMinorUnitPrecision(account.Check.Amount) || !domain.FitsMinorUnits(account.Check.Amount) {
			return nil, domain.NewValidationError("check", fmt.Sprintf("inconsistent check for %s", account.Username))
		}

		off := 2 * fieldSize
		byteOrder.PutUint64(rec[off:], uint64(domain.ToMinorUnits(account.Balance)))
		byteOrder.PutUint32(rec[off+8:], account.Check.Code)
		byteOrder.PutUint64(rec[off+12:], uint64(domain.ToMinorUnits(account.Check.Amount)))
	}

	return buf, nil
}

func DecodeSnapshot(data []byte) ([]*domain.Account, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", domain.ErrSnapshotCorrupt, len(data), headerSize)
	}
	count := int(byteOrder.Uint32(data))
	if want := headerSize + count*recordSize; count < 0 || len(data) != want {
		return nil, fmt.Errorf("%w: %d accounts need %d bytes, file has %d", domain.ErrSnapshotCorrupt, count, headerSize+count*recordSize, len(data))
	}

	accounts := make([]*domain.Account, 0, count)
	seen := make(map[string]struct{}, count)
	codes := make(map[uint32]struct{})

	for i := 0; i < count; i++ {
		rec := data[headerSize+i*recordSize : headerSize+(i+1)*recordSize]
		off := 2 * fieldSize
		balance := int64(byteOrder.Uint64(rec[off:]))
		code := byteOrder.Uint32(rec[off+8:])
		checkAmount := int64(byteOrder.Uint64(rec[off+12:]))

		account := &domain.Account{
			Username: getField(rec[0:fieldSize]),
			Password: getField(rec[fieldSize : 2*fieldSize]),
			Balance:  domain.FromMinorUnits(balance),
			Check: domain.PendingCheck{
				Code:   code,
				Amount: domain.FromMinorUnits(checkAmount),
			},
		}

		switch {
		case account.Username == "":
			return nil, fmt.Errorf("%w: record %d has an empty username", domain.ErrSnapshotCorrupt, i)
		case balance < 0:
			return nil, fmt.Errorf("%w: record %d has a negative balance", domain.ErrSnapshotCorrupt, i)
		case checkAmount < 0 || !account.Check.Valid():
			return nil, fmt.Errorf("%w: record %d has an inconsistent check", domain.ErrSnapshotCorrupt, i)
		}
		if _, dup := seen[account.Username]; dup {
			return nil, fmt.Errorf("%w: username %q appears twice", domain.ErrSnapshotCorrupt, account.Username)
		}
		seen[account.Username] = struct{}{}
		if code != 0 {
			if _, dup := codes[code]; dup {
				return nil, fmt.Errorf("%w: check code %d appears twice", domain.ErrSnapshotCorrupt, code)
			}
			codes[code] = struct{}{}
		}

		accounts = append(accounts, account)
	}

	return accounts, nil
}

func putField(dst []byte, name, value string) error {
	if len(value) >= fieldSize {
		return domain.NewValidationError(name, fmt.Sprintf("%d bytes do not fit a %d byte field", len(value), fieldSize))
	}
	if bytes.IndexByte([]byte(value), 0) >= 0 {
		return domain.NewValidationError(name, "must not contain NUL")
	}
	copy(dst, value)
	return nil
}

// getField reads up to the first NUL; bytes after it are ignored.
func getField(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		return string(src[:i])
	}
	return string(src)
}
