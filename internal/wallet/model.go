package wallet

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidAddress rejects anything that is not a 0x-prefixed 20-byte hex address.
var ErrInvalidAddress = errors.New("wallet address must be 0x followed by 40 hex characters")

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// NormalizeAddress lowercases and validates an address supplied by the
// browser wallet extension. Checksum casing is not significant.
func NormalizeAddress(raw string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if !addressPattern.MatchString(addr) {
		return "", ErrInvalidAddress
	}
	return addr, nil
}
