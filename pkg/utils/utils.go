package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var txHashPattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]{64}$`)

// GenerateUUID generates a new UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// IsTxHash validates a 32-byte hex transaction hash with 0x prefix
func IsTxHash(hash string) bool {
	return txHashPattern.MatchString(strings.TrimSpace(hash))
}

// ParseChainID parses a positive decimal chain id
func ParseChainID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q", s)
	}
	if id == 0 {
		return 0, fmt.Errorf("chain id must be positive")
	}
	return id, nil
}

// ParseBigInt parses a non-negative integer given in decimal or 0x-prefixed hex.
// An empty string yields nil.
func ParseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}

	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("integer %q must not be negative", s)
	}
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("integer %q exceeds 256 bits", s)
	}
	return v, nil
}

// FormatBigInt renders an integer in decimal; nil renders as empty
func FormatBigInt(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// TruncateString truncates string to specified length
func TruncateString(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length] + "..."
}

// FormatTime renders t in RFC3339 with millisecond precision, UTC
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
