package domain

import (
	"strings"
	"unicode"
)

// MaxAddressLength bounds the encoded form of an account address.
const MaxAddressLength = 64

// Address identifies an account. Its encoding is opaque to the protocol; it is
// compared byte-for-byte.
type Address string

// ParseAddress validates an address received at a trust boundary.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > MaxAddressLength {
		return "", ErrInvalidAddress
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
			return "", ErrInvalidAddress
		}
	}
	return Address(s), nil
}

func (a Address) String() string { return string(a) }

// IsZero reports whether a is unset.
func (a Address) IsZero() bool { return a == "" }
