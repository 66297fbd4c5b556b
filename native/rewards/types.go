package rewards

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"daorewards/crypto"
	"daorewards/native/bank"
	"daorewards/native/common"
)

// DistributionState is one funded reward stream paid out pro rata to the
// voting power reported by VPContract.
type DistributionState struct {
	ID                   uint64
	Denom                bank.Denom
	ActiveEpoch          Epoch
	VPContract           crypto.Address
	HookCaller           crypto.Address
	FundedAmount         *big.Int
	WithdrawDestination  crypto.Address
	HistoricalEarnedPUVP *uint256.Int
}

// Clone returns a deep copy of the distribution.
func (d *DistributionState) Clone() *DistributionState {
	if d == nil {
		return nil
	}
	clone := *d
	clone.ActiveEpoch = d.ActiveEpoch.Clone()
	clone.FundedAmount = cloneBig(d.FundedAmount)
	clone.HistoricalEarnedPUVP = cloneU256(d.HistoricalEarnedPUVP)
	return &clone
}

// LatestDistributionTime is the last point at which the active epoch has
// emitted: min(now, EndsAt).
func (d *DistributionState) LatestDistributionTime(block common.BlockInfo) common.Expiration {
	return d.ActiveEpoch.EndsAt.Min(block)
}

// TotalRewards returns how much the active epoch emits over its whole window.
func (d *DistributionState) TotalRewards() (*big.Int, error) {
	rate := d.ActiveEpoch.EmissionRate
	switch rate.Kind {
	case EmissionPaused:
		return big.NewInt(0), nil
	case EmissionImmediate:
		return subAmount(d.FundedAmount, d.ActiveEpoch.Unallocated)
	case EmissionLinear:
		span, err := common.Diff(d.ActiveEpoch.EndsAt, d.ActiveEpoch.StartedAt)
		if err != nil {
			return nil, err
		}
		return linearEmitted(rate, span)
	default:
		return nil, ErrInvalidEmissionRate
	}
}

// distributedInEpoch returns how much the active epoch has emitted up to its
// last update.
func (d *DistributionState) distributedInEpoch() (*big.Int, error) {
	rate := d.ActiveEpoch.EmissionRate
	switch rate.Kind {
	case EmissionPaused:
		return big.NewInt(0), nil
	case EmissionImmediate:
		return subAmount(d.FundedAmount, d.ActiveEpoch.Unallocated)
	case EmissionLinear:
		span, err := common.DiffSaturating(d.ActiveEpoch.LastUpdated, d.ActiveEpoch.StartedAt)
		if err != nil {
			return nil, err
		}
		return linearEmitted(rate, span)
	default:
		return nil, ErrInvalidEmissionRate
	}
}

func linearEmitted(rate EmissionRate, span uint64) (*big.Int, error) {
	if rate.Duration.Value == 0 {
		return nil, ErrDivideByZero
	}
	out := new(big.Int).Mul(cloneBig(rate.Amount), new(big.Int).SetUint64(span))
	return out.Quo(out, new(big.Int).SetUint64(rate.Duration.Value)), nil
}

// UserRewardState is the per-participant ledger across all distributions.
// AccountedPUVP holds the cumulative earned-per-unit-power the participant was
// last reconciled against.
type UserRewardState struct {
	Address        crypto.Address
	PendingRewards map[uint64]*big.Int
	AccountedPUVP  map[uint64]*uint256.Int
}

// NewUserRewardState returns the empty ledger for addr.
func NewUserRewardState(addr crypto.Address) *UserRewardState {
	return &UserRewardState{
		Address:        addr,
		PendingRewards: make(map[uint64]*big.Int),
		AccountedPUVP:  make(map[uint64]*uint256.Int),
	}
}

// Clone returns a deep copy of the ledger.
func (u *UserRewardState) Clone() *UserRewardState {
	if u == nil {
		return nil
	}
	clone := NewUserRewardState(u.Address)
	for id, amount := range u.PendingRewards {
		clone.PendingRewards[id] = cloneBig(amount)
	}
	for id, puvp := range u.AccountedPUVP {
		clone.AccountedPUVP[id] = cloneU256(puvp)
	}
	return clone
}

// Pending returns the banked amount for id.
func (u *UserRewardState) Pending(id uint64) *big.Int {
	if u == nil {
		return big.NewInt(0)
	}
	return cloneBig(u.PendingRewards[id])
}

// Accounted returns the last reconciled puvp for id.
func (u *UserRewardState) Accounted(id uint64) *uint256.Int {
	if u == nil {
		return zeroU256()
	}
	return cloneU256(u.AccountedPUVP[id])
}

// DistributionIDs returns every id the ledger references, ascending.
func (u *UserRewardState) DistributionIDs() []uint64 {
	seen := make(map[uint64]struct{})
	for id := range u.PendingRewards {
		seen[id] = struct{}{}
	}
	for id := range u.AccountedPUVP {
		seen[id] = struct{}{}
	}
	ids := make([]uint64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CreateMsg configures a new distribution.
type CreateMsg struct {
	Denom               bank.Denom
	EmissionRate        EmissionRate
	VPContract          crypto.Address
	HookCaller          crypto.Address
	WithdrawDestination *crypto.Address
}

// UpdateMsg changes any subset of a distribution's configuration.
type UpdateMsg struct {
	ID                  uint64
	EmissionRate        *EmissionRate
	VPContract          *crypto.Address
	HookCaller          *crypto.Address
	WithdrawDestination *crypto.Address
}

// TokenReceive is the transfer notification a fungible token contract sends
// after moving Amount from Sender to this engine. Fund names the target
// distribution.
type TokenReceive struct {
	Sender crypto.Address
	Amount *big.Int
	Fund   uint64
}

// ContractVersion identifies the stored state layout.
type ContractVersion struct {
	Contract string
	Version  string
}

// DistributionPendingRewards is one row of the pending rewards query.
type DistributionPendingRewards struct {
	ID             uint64
	Denom          bank.Denom
	PendingRewards *big.Int
}

// PendingRewardsResponse lists the caller's owed amount per distribution.
type PendingRewardsResponse struct {
	PendingRewards []DistributionPendingRewards
}

// DistributionsResponse is one page of distributions.
type DistributionsResponse struct {
	Distributions []*DistributionState
}
