package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// safeChars excludes 0, O, 1, and I so codes survive being read out
// loud or copied from a printed slip.
const safeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateVotingCode returns a random code of the given length drawn from
// the confusion-free alphabet.
func GenerateVotingCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	max := big.NewInt(int64(len(safeChars)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		code[i] = safeChars[n.Int64()]
	}

	return string(code), nil
}

// NormalizeVotingCode uppercases a user-supplied code and strips the
// hyphens and spaces people add when transcribing it.
func NormalizeVotingCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return code
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
