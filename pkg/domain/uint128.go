package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// BasisPoints is the denominator for every rate and threshold.
const BasisPoints = 10_000

var maxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// Uint128 is an unsigned 128-bit integer used for weighted vote totals.
// Arithmetic is checked; nothing wraps.
type Uint128 struct {
	v uint256.Int
}

// NewUint128 returns x as a Uint128.
func NewUint128(x uint64) Uint128 {
	var u Uint128
	u.v.SetUint64(x)
	return u
}

// MaxUint128 returns 2^128-1.
func MaxUint128() Uint128 {
	var u Uint128
	u.v.Set(maxUint128)
	return u
}

// ParseUint128 parses a base-10 string.
func ParseUint128(s string) (Uint128, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Uint128{}, fmt.Errorf("parse uint128 %q: %w", s, err)
	}
	if v.Gt(maxUint128) {
		return Uint128{}, ErrArithmeticOverflow
	}
	return Uint128{v: *v}, nil
}

// SaturatingMul returns a*b, clamped to MaxUint128.
func SaturatingMul(a, b uint64) Uint128 {
	var u Uint128
	_, overflow := u.v.MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || u.v.Gt(maxUint128) {
		return MaxUint128()
	}
	return u
}

// CheckedAdd returns u+o or ErrArithmeticOverflow if the sum exceeds 128 bits.
func (u Uint128) CheckedAdd(o Uint128) (Uint128, error) {
	var sum Uint128
	if _, overflow := sum.v.AddOverflow(&u.v, &o.v); overflow || sum.v.Gt(maxUint128) {
		return Uint128{}, ErrArithmeticOverflow
	}
	return sum, nil
}

func (u Uint128) Cmp(o Uint128) int { return u.v.Cmp(&o.v) }

func (u Uint128) IsZero() bool { return u.v.IsZero() }

func (u Uint128) String() string { return u.v.Dec() }

// ConsensusBps returns floor(forVotes*10000/(forVotes+against)), clamped to
// 10000, or 0 when no weight has been cast.
func ConsensusBps(forVotes, against Uint128) uint16 {
	var total uint256.Int
	// Both operands are below 2^128 so the sum fits in 256 bits.
	total.Add(&forVotes.v, &against.v)
	if total.IsZero() {
		return 0
	}
	var scaled uint256.Int
	scaled.Mul(&forVotes.v, uint256.NewInt(BasisPoints))
	scaled.Div(&scaled, &total)
	if scaled.GtUint64(BasisPoints) {
		return BasisPoints
	}
	return uint16(scaled.Uint64())
}

// MarshalJSON encodes the value as a decimal string so no precision is lost
// in clients that parse numbers as float64.
func (u Uint128) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.v.Dec())
}

func (u *Uint128) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("uint128 must be a decimal string: %w", err)
	}
	parsed, err := ParseUint128(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Value stores the number as NUMERIC text.
func (u Uint128) Value() (driver.Value, error) {
	return u.v.Dec(), nil
}

func (u *Uint128) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("scan uint128: negative value %d", v)
		}
		*u = NewUint128(uint64(v))
		return nil
	case nil:
		*u = Uint128{}
		return nil
	default:
		return fmt.Errorf("scan uint128: unsupported type %T", src)
	}
	parsed, err := ParseUint128(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
