// Package votingpower keeps height-indexed stake balances for staking and
// membership contracts and notifies subscribers when they change.
package votingpower

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"daorewards/crypto"
	"daorewards/native/common"
)

var (
	ErrUnknownContract   = errors.New("votingpower: unknown contract")
	ErrInsufficientStake = errors.New("votingpower: insufficient stake")
	ErrInvalidAmount     = errors.New("votingpower: amount must be positive")
	ErrHeightRegressed   = errors.New("votingpower: change predates recorded history")
	errNilStore          = errors.New("votingpower: store not configured")
)

// Checkpoint records a power value effective from Height onwards.
type Checkpoint struct {
	Height uint64
	Power  *big.Int
}

// Store persists checkpoints per holder and per contract total.
type Store interface {
	VotingPowerContractExists(contract crypto.Address) (bool, error)
	VotingPowerContractPut(contract crypto.Address) error
	VotingPowerHistory(contract, holder crypto.Address) ([]Checkpoint, error)
	VotingPowerHistoryPut(contract, holder crypto.Address, history []Checkpoint) error
	VotingPowerTotalHistory(contract crypto.Address) ([]Checkpoint, error)
	VotingPowerTotalHistoryPut(contract crypto.Address, history []Checkpoint) error
}

// Change describes one holder's power moving from Old to New.
type Change struct {
	Contract crypto.Address
	Holder   crypto.Address
	Old      *big.Int
	New      *big.Int
}

// Hook is notified after a change has been recorded. Returning an error
// fails the originating operation.
type Hook func(block common.BlockInfo, change Change) error

// Registry implements the voting power oracle consumed by the reward engines.
// A change made at height h is reported from h+1, so accrual for the block
// in which stake moves still uses the previous balance.
type Registry struct {
	store  Store
	hooks  map[string][]Hook
	global []Hook
	logger *slog.Logger
}

// NewRegistry returns a registry backed by store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, hooks: make(map[string][]Hook), logger: slog.Default()}
}

// SetLogger configures the structured logger.
func (r *Registry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		r.logger = slog.Default()
		return
	}
	r.logger = logger.With(slog.String("component", "votingpower"))
}

// RegisterContract makes contract a known power source.
func (r *Registry) RegisterContract(contract crypto.Address) error {
	if r == nil || r.store == nil {
		return errNilStore
	}
	if contract.IsZero() {
		return fmt.Errorf("votingpower: contract address required")
	}
	return r.store.VotingPowerContractPut(contract)
}

// AddHook subscribes hook to changes of contract.
func (r *Registry) AddHook(contract crypto.Address, hook Hook) {
	if r == nil || hook == nil {
		return
	}
	key := contract.String()
	r.hooks[key] = append(r.hooks[key], hook)
}

// OnChange subscribes hook to changes of every contract. Global hooks run
// after the per-contract ones.
func (r *Registry) OnChange(hook Hook) {
	if r == nil || hook == nil {
		return
	}
	r.global = append(r.global, hook)
}

func (r *Registry) ensure(contract crypto.Address) error {
	if r == nil || r.store == nil {
		return errNilStore
	}
	ok, err := r.store.VotingPowerContractExists(contract)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContract, contract)
	}
	return nil
}

// Stake adds amount to holder's power.
func (r *Registry) Stake(block common.BlockInfo, contract, holder crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	current, err := r.PowerAt(contract, holder, block.Height+1)
	if err != nil {
		return err
	}
	return r.SetPower(block, contract, holder, current.Add(current, amount))
}

// Unstake removes amount from holder's power.
func (r *Registry) Unstake(block common.BlockInfo, contract, holder crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	current, err := r.PowerAt(contract, holder, block.Height+1)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, unstaking %s", ErrInsufficientStake, current, amount)
	}
	return r.SetPower(block, contract, holder, current.Sub(current, amount))
}

// SetPower overwrites holder's power, as a membership group does.
func (r *Registry) SetPower(block common.BlockInfo, contract, holder crypto.Address, power *big.Int) error {
	if err := r.ensure(contract); err != nil {
		return err
	}
	if power == nil || power.Sign() < 0 {
		return ErrInvalidAmount
	}
	effective := block.Height + 1

	history, err := r.store.VotingPowerHistory(contract, holder)
	if err != nil {
		return err
	}
	old := valueAt(history, effective)
	if history, err = record(history, effective, power); err != nil {
		return err
	}
	if err := r.store.VotingPowerHistoryPut(contract, holder, history); err != nil {
		return err
	}

	totals, err := r.store.VotingPowerTotalHistory(contract)
	if err != nil {
		return err
	}
	total := valueAt(totals, effective)
	total.Add(total, power)
	total.Sub(total, old)
	if totals, err = record(totals, effective, total); err != nil {
		return err
	}
	if err := r.store.VotingPowerTotalHistoryPut(contract, totals); err != nil {
		return err
	}

	change := Change{Contract: contract, Holder: holder, Old: old, New: new(big.Int).Set(power)}
	r.logger.Debug("votingpower: power changed",
		slog.String("contract", contract.String()),
		slog.String("holder", holder.String()),
		slog.String("old", old.String()),
		slog.String("new", power.String()),
		slog.Uint64("effective", effective))
	for _, hook := range r.hooks[contract.String()] {
		if err := hook(block, change); err != nil {
			return err
		}
	}
	for _, hook := range r.global {
		if err := hook(block, change); err != nil {
			return err
		}
	}
	return nil
}

// PowerAt returns holder's power as of height.
func (r *Registry) PowerAt(contract, holder crypto.Address, height uint64) (*big.Int, error) {
	if err := r.ensure(contract); err != nil {
		return nil, err
	}
	history, err := r.store.VotingPowerHistory(contract, holder)
	if err != nil {
		return nil, err
	}
	return valueAt(history, height), nil
}

// TotalPowerAt returns the contract's total power as of height.
func (r *Registry) TotalPowerAt(contract crypto.Address, height uint64) (*big.Int, error) {
	if err := r.ensure(contract); err != nil {
		return nil, err
	}
	totals, err := r.store.VotingPowerTotalHistory(contract)
	if err != nil {
		return nil, err
	}
	return valueAt(totals, height), nil
}

func valueAt(history []Checkpoint, height uint64) *big.Int {
	idx := sort.Search(len(history), func(i int) bool { return history[i].Height > height })
	if idx == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(history[idx-1].Power)
}

func record(history []Checkpoint, height uint64, power *big.Int) ([]Checkpoint, error) {
	entry := Checkpoint{Height: height, Power: new(big.Int).Set(power)}
	n := len(history)
	switch {
	case n > 0 && history[n-1].Height > height:
		return nil, fmt.Errorf("%w: height %d before %d", ErrHeightRegressed, height-1, history[n-1].Height-1)
	case n > 0 && history[n-1].Height == height:
		history[n-1] = entry
		return history, nil
	default:
		return append(history, entry), nil
	}
}
