package rewards

import (
	"fmt"
	"math/big"

	"daorewards/native/common"
)

// EmissionKind enumerates how a distribution releases its funds.
type EmissionKind uint8

const (
	// EmissionPaused releases nothing.
	EmissionPaused EmissionKind = iota + 1
	// EmissionImmediate releases every funded amount at funding time.
	EmissionImmediate
	// EmissionLinear releases Amount per Duration.
	EmissionLinear
)

func (k EmissionKind) String() string {
	switch k {
	case EmissionPaused:
		return "paused"
	case EmissionImmediate:
		return "immediate"
	case EmissionLinear:
		return "linear"
	default:
		return fmt.Sprintf("emission(%d)", uint8(k))
	}
}

// EmissionRate is immutable for the lifetime of an epoch. Amount, Duration and
// Continuous are only meaningful for EmissionLinear.
type EmissionRate struct {
	Kind       EmissionKind
	Amount     *big.Int
	Duration   common.Duration
	Continuous bool
}

// Paused returns the paused emission rate.
func Paused() EmissionRate { return EmissionRate{Kind: EmissionPaused} }

// Immediate returns the immediate emission rate.
func Immediate() EmissionRate { return EmissionRate{Kind: EmissionImmediate} }

// Linear returns a linear emission of amount per duration.
func Linear(amount *big.Int, duration common.Duration, continuous bool) EmissionRate {
	return EmissionRate{Kind: EmissionLinear, Amount: cloneBig(amount), Duration: duration, Continuous: continuous}
}

// Validate rejects rates that could never emit.
func (r EmissionRate) Validate() error {
	switch r.Kind {
	case EmissionPaused, EmissionImmediate:
		return nil
	case EmissionLinear:
		if r.Amount == nil || r.Amount.Sign() == 0 {
			return fieldZero("amount")
		}
		if r.Amount.Sign() < 0 {
			return fmt.Errorf("%w: negative amount", ErrInvalidEmissionRate)
		}
		if r.Duration.IsZero() {
			return fieldZero("duration")
		}
		if r.Duration.Unit != common.UnitHeight && r.Duration.Unit != common.UnitTime {
			return fmt.Errorf("%w: unknown duration unit %s", ErrInvalidEmissionRate, r.Duration.Unit)
		}
		if _, err := toU256(r.Amount); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidEmissionRate, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidEmissionRate, r.Kind)
	}
}

// IsContinuous reports whether the rate backfills underfunded time.
func (r EmissionRate) IsContinuous() bool {
	return r.Kind == EmissionLinear && r.Continuous
}

// Equal compares two rates structurally.
func (r EmissionRate) Equal(other EmissionRate) bool {
	if r.Kind != other.Kind {
		return false
	}
	if r.Kind != EmissionLinear {
		return true
	}
	return cloneBig(r.Amount).Cmp(cloneBig(other.Amount)) == 0 &&
		r.Duration == other.Duration &&
		r.Continuous == other.Continuous
}

// FundedPeriodDuration returns how long funded lasts at this rate. Paused and
// immediate rates have no finite window and return ok=false.
func (r EmissionRate) FundedPeriodDuration(funded *big.Int) (common.Duration, bool, error) {
	switch r.Kind {
	case EmissionPaused, EmissionImmediate:
		return common.Duration{}, false, nil
	case EmissionLinear:
		if r.Amount == nil || r.Amount.Sign() == 0 {
			return common.Duration{}, false, ErrDivideByZero
		}
		periods := new(big.Int).Quo(cloneBig(funded), r.Amount)
		span := periods.Mul(periods, new(big.Int).SetUint64(r.Duration.Value))
		if !span.IsUint64() {
			return common.Duration{}, false, fmt.Errorf("%w: funded period %s exceeds u64", ErrArithmeticOverflow, span)
		}
		return common.Duration{Unit: r.Duration.Unit, Value: span.Uint64()}, true, nil
	default:
		return common.Duration{}, false, fmt.Errorf("%w: unknown kind %s", ErrInvalidEmissionRate, r.Kind)
	}
}

// startFor returns where a fresh window under this rate starts at block.
func (r EmissionRate) startFor(block common.BlockInfo) common.Expiration {
	switch r.Kind {
	case EmissionLinear:
		return common.Now(block, r.Duration.Unit)
	default:
		return common.NeverExpires()
	}
}

func (r EmissionRate) String() string {
	if r.Kind != EmissionLinear {
		return r.Kind.String()
	}
	suffix := ""
	if r.Continuous {
		suffix = " continuous"
	}
	return fmt.Sprintf("linear %s per %s%s", cloneBig(r.Amount), r.Duration, suffix)
}
