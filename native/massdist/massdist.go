// Package massdist splits an amount between a fixed set of recipients by
// pre-agreed weights.
package massdist

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/holiman/uint256"

	"daorewards/crypto"
	"daorewards/native/bank"
)

// WeightDecimals is the fixed-point precision of a weight.
const WeightDecimals = 18

var (
	one = uint256.MustFromDecimal("1000000000000000000")

	ErrWeightsNotOne    = errors.New("massdist: weights must add up to exactly 1")
	ErrInvalidWeight    = errors.New("massdist: invalid weight")
	ErrDuplicateAddress = errors.New("massdist: duplicate recipient")
	errNilStore         = errors.New("massdist: store not configured")
)

// Weight is one recipient's share, in units of 10^-18.
type Weight struct {
	Address crypto.Address
	Weight  *uint256.Int
}

// Store persists the current weight table.
type Store interface {
	MassDistWeights() ([]Weight, error)
	SetMassDistWeights(weights []Weight) error
}

// ParseWeight parses a decimal such as "0.25" into 18-decimal fixed point.
func ParseWeight(s string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(trimmed, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > WeightDecimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidWeight, s, WeightDecimals)
	}
	digits := whole + frac + strings.Repeat("0", WeightDecimals-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	value, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWeight, s)
	}
	return value, nil
}

// FormatWeight renders an 18-decimal weight as a decimal string.
func FormatWeight(w *uint256.Int) string {
	if w == nil {
		return "0"
	}
	whole, frac := new(uint256.Int).DivMod(w, one, new(uint256.Int))
	if frac.IsZero() {
		return whole.Dec()
	}
	fracStr := frac.Dec()
	fracStr = strings.Repeat("0", WeightDecimals-len(fracStr)) + fracStr
	return whole.Dec() + "." + strings.TrimRight(fracStr, "0")
}

// Distributor applies the weight table held by its store.
type Distributor struct {
	store Store
}

// New returns a distributor over store.
func New(store Store) *Distributor { return &Distributor{store: store} }

// SetWeights replaces the weight table. The weights must sum to exactly one.
func (d *Distributor) SetWeights(weights []Weight) error {
	if d == nil || d.store == nil {
		return errNilStore
	}
	total := new(uint256.Int)
	seen := make(map[string]struct{}, len(weights))
	table := make([]Weight, 0, len(weights))
	for _, w := range weights {
		if w.Address.IsZero() || w.Weight == nil {
			return ErrInvalidWeight
		}
		key := w.Address.String()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAddress, key)
		}
		seen[key] = struct{}{}
		if _, overflow := total.AddOverflow(total, w.Weight); overflow {
			return ErrWeightsNotOne
		}
		table = append(table, Weight{Address: w.Address, Weight: new(uint256.Int).Set(w.Weight)})
	}
	if !total.Eq(one) {
		return fmt.Errorf("%w: got %s", ErrWeightsNotOne, FormatWeight(total))
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Address.String() < table[j].Address.String() })
	return d.store.SetMassDistWeights(table)
}

// Share returns floor(amount * weight) for addr; unknown recipients get zero.
func (d *Distributor) Share(addr crypto.Address, amount *big.Int) (*big.Int, error) {
	if d == nil || d.store == nil {
		return nil, errNilStore
	}
	weights, err := d.store.MassDistWeights()
	if err != nil {
		return nil, err
	}
	for _, w := range weights {
		if w.Address.Equal(addr) {
			return share(amount, w.Weight), nil
		}
	}
	return big.NewInt(0), nil
}

// Distribute returns one transfer per recipient, ordered by address.
// Rounding dust stays with the caller.
func (d *Distributor) Distribute(amount *big.Int, denom bank.Denom) ([]*bank.Transfer, error) {
	if d == nil || d.store == nil {
		return nil, errNilStore
	}
	if err := denom.Validate(); err != nil {
		return nil, err
	}
	weights, err := d.store.MassDistWeights()
	if err != nil {
		return nil, err
	}
	transfers := make([]*bank.Transfer, 0, len(weights))
	for _, w := range weights {
		transfer, err := bank.NewTransfer(w.Address, share(amount, w.Weight), denom)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	return transfers, nil
}

func share(amount *big.Int, weight *uint256.Int) *big.Int {
	if amount == nil || weight == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, weight.ToBig())
	return out.Quo(out, one.ToBig())
}
