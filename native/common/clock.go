package common

import (
	"errors"
	"fmt"
	"math"
)

// BlockInfo is the only clock input available to the engines. Time is
// expressed in unix seconds.
type BlockInfo struct {
	Height uint64
	Time   uint64
}

// DurationUnit selects whether a duration or expiration counts blocks or
// seconds.
type DurationUnit uint8

const (
	UnitHeight DurationUnit = iota + 1
	UnitTime
)

func (u DurationUnit) String() string {
	switch u {
	case UnitHeight:
		return "height"
	case UnitTime:
		return "time"
	default:
		return fmt.Sprintf("unit(%d)", uint8(u))
	}
}

// Duration is a span of blocks or seconds.
type Duration struct {
	Unit  DurationUnit `json:"unit" yaml:"unit"`
	Value uint64       `json:"value" yaml:"value"`
}

// Blocks returns a height based duration.
func Blocks(n uint64) Duration { return Duration{Unit: UnitHeight, Value: n} }

// Seconds returns a time based duration.
func Seconds(n uint64) Duration { return Duration{Unit: UnitTime, Value: n} }

// IsZero reports whether the duration spans nothing.
func (d Duration) IsZero() bool { return d.Value == 0 }

func (d Duration) String() string {
	switch d.Unit {
	case UnitHeight:
		return fmt.Sprintf("%d blocks", d.Value)
	case UnitTime:
		return fmt.Sprintf("%ds", d.Value)
	default:
		return fmt.Sprintf("%d %s", d.Value, d.Unit)
	}
}

// ExpirationKind enumerates the expiration variants.
type ExpirationKind uint8

const (
	Never ExpirationKind = iota
	AtHeight
	AtTime
)

// Expiration marks a point on the block clock, or no point at all.
type Expiration struct {
	Kind  ExpirationKind `json:"kind"`
	Value uint64         `json:"value"`
}

var (
	// ErrIncompatibleExpirations is returned when height and time based values
	// are combined.
	ErrIncompatibleExpirations = errors.New("clock: incompatible expiration units")
	// ErrExpirationOverflow is returned when an expiration would exceed the u64 range.
	ErrExpirationOverflow = errors.New("clock: expiration overflow")
)

// NeverExpires returns the Never expiration.
func NeverExpires() Expiration { return Expiration{Kind: Never} }

// ExpiresAtHeight returns a height based expiration.
func ExpiresAtHeight(h uint64) Expiration { return Expiration{Kind: AtHeight, Value: h} }

// ExpiresAtTime returns a time based expiration.
func ExpiresAtTime(t uint64) Expiration { return Expiration{Kind: AtTime, Value: t} }

// Now returns the current block position in the requested unit.
func Now(block BlockInfo, unit DurationUnit) Expiration {
	switch unit {
	case UnitHeight:
		return ExpiresAtHeight(block.Height)
	case UnitTime:
		return ExpiresAtTime(block.Time)
	default:
		return NeverExpires()
	}
}

// IsNever reports whether the expiration is the Never variant.
func (e Expiration) IsNever() bool { return e.Kind == Never }

// IsExpired reports whether the block has reached the expiration. Never does
// not expire.
func (e Expiration) IsExpired(block BlockInfo) bool {
	switch e.Kind {
	case AtHeight:
		return block.Height >= e.Value
	case AtTime:
		return block.Time >= e.Value
	default:
		return false
	}
}

// Add offsets the expiration by the supplied duration. Never stays Never.
func (e Expiration) Add(d Duration) (Expiration, error) {
	switch {
	case e.Kind == Never:
		return e, nil
	case e.Kind == AtHeight && d.Unit == UnitHeight, e.Kind == AtTime && d.Unit == UnitTime:
		if e.Value > math.MaxUint64-d.Value {
			return Expiration{}, ErrExpirationOverflow
		}
		return Expiration{Kind: e.Kind, Value: e.Value + d.Value}, nil
	default:
		return Expiration{}, fmt.Errorf("%w: cannot add %s to %s", ErrIncompatibleExpirations, d, e)
	}
}

// Min returns the earlier of the expiration and the block position. Never is
// returned unchanged.
func (e Expiration) Min(block BlockInfo) Expiration {
	switch e.Kind {
	case AtHeight:
		return ExpiresAtHeight(min(e.Value, block.Height))
	case AtTime:
		return ExpiresAtTime(min(e.Value, block.Time))
	default:
		return e
	}
}

// DiffSaturating returns newer-older clamped at zero. Never on either side
// yields zero.
func DiffSaturating(newer, older Expiration) (uint64, error) {
	if newer.Kind == Never || older.Kind == Never {
		return 0, nil
	}
	if newer.Kind != older.Kind {
		return 0, fmt.Errorf("%w: %s and %s", ErrIncompatibleExpirations, newer, older)
	}
	if newer.Value <= older.Value {
		return 0, nil
	}
	return newer.Value - older.Value, nil
}

// Diff returns newer-older and fails when older is later than newer.
func Diff(newer, older Expiration) (uint64, error) {
	if newer.Kind == Never || older.Kind == Never {
		return 0, nil
	}
	if newer.Kind != older.Kind {
		return 0, fmt.Errorf("%w: %s and %s", ErrIncompatibleExpirations, newer, older)
	}
	if newer.Value < older.Value {
		return 0, fmt.Errorf("clock: %s precedes %s", newer, older)
	}
	return newer.Value - older.Value, nil
}

func (e Expiration) String() string {
	switch e.Kind {
	case AtHeight:
		return fmt.Sprintf("height %d", e.Value)
	case AtTime:
		return fmt.Sprintf("time %d", e.Value)
	default:
		return "never"
	}
}
