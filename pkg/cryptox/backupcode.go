package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// BackupCodeLength is the fixed width of a recovery code. Eight characters
// from a 62-symbol alphabet gives ~47 bits, plenty for a single-use code
// that is also gated by a pre-TFA token.
const BackupCodeLength = 8

const backupCodeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateBackupCode returns one random fixed-width alphanumeric recovery code.
func GenerateBackupCode() (string, error) {
	code := make([]byte, BackupCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupCodeCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate backup code: %w", err)
		}
		code[i] = backupCodeCharset[n.Int64()]
	}
	return string(code), nil
}

// GenerateBackupCodes returns a batch of count codes, unique within the
// batch.
func GenerateBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		code, err := GenerateBackupCode()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
