package rewards

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// scaleFactor is the fixed-point multiplier applied to every
// per-unit-voting-power value.
var scaleFactor = uint256.MustFromDecimal("1000000000000000000000000000000000000000") // 1e39

var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// ScaleFactor returns a copy of the fixed-point multiplier.
func ScaleFactor() *uint256.Int {
	return new(uint256.Int).Set(scaleFactor)
}

func zeroU256() *uint256.Int { return new(uint256.Int) }

func cloneU256(v *uint256.Int) *uint256.Int {
	if v == nil {
		return zeroU256()
	}
	return new(uint256.Int).Set(v)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// toU256 converts a token amount into the wide type. Negative values and
// values above 128 bits are rejected.
func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return zeroU256(), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount %s", ErrArithmeticUnderflow, v)
	}
	if v.Cmp(maxAmount) > 0 {
		return nil, fmt.Errorf("%w: amount %s exceeds 128 bits", ErrArithmeticOverflow, v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

func mulU256(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s", ErrArithmeticOverflow, a.Dec(), b.Dec())
	}
	return out, nil
}

func addU256(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("%w: %s + %s", ErrArithmeticOverflow, a.Dec(), b.Dec())
	}
	return out, nil
}

func subU256(a, b *uint256.Int) (*uint256.Int, error) {
	out, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fmt.Errorf("%w: %s - %s", ErrArithmeticUnderflow, a.Dec(), b.Dec())
	}
	return out, nil
}

func divU256(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivideByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// subAmount returns a-b and fails instead of going negative.
func subAmount(a, b *big.Int) (*big.Int, error) {
	out := new(big.Int).Sub(cloneBig(a), cloneBig(b))
	if out.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s - %s", ErrArithmeticUnderflow, a, b)
	}
	return out, nil
}
