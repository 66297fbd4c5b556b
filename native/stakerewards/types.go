package stakerewards

import (
	"math/big"

	"github.com/holiman/uint256"

	"daorewards/crypto"
	"daorewards/native/bank"
)

// Config binds the engine to one staking contract and one reward denom.
type Config struct {
	StakingContract crypto.Address
	RewardDenom     bank.Denom
}

// RewardConfig is the active funding period. PeriodFinish and RewardDuration
// count blocks; RewardRate is paid per block.
type RewardConfig struct {
	PeriodFinish   uint64
	RewardRate     *big.Int
	RewardDuration uint64
}

// RewardState is the global accumulator: reward per staked token, scaled,
// current as of LastUpdateBlock.
type RewardState struct {
	Reward          RewardConfig
	RewardPerToken  *uint256.Int
	LastUpdateBlock uint64
}

// Clone returns a deep copy.
func (r *RewardState) Clone() *RewardState {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Reward.RewardRate = cloneBig(r.Reward.RewardRate)
	clone.RewardPerToken = cloneU256(r.RewardPerToken)
	return &clone
}

// UserState is one staker's ledger.
type UserState struct {
	Address      crypto.Address
	Pending      *big.Int
	PerTokenPaid *uint256.Int
}

// Clone returns a deep copy.
func (u *UserState) Clone() *UserState {
	if u == nil {
		return nil
	}
	return &UserState{Address: u.Address, Pending: cloneBig(u.Pending), PerTokenPaid: cloneU256(u.PerTokenPaid)}
}

// InfoResponse reports both configs.
type InfoResponse struct {
	Config Config
	Reward RewardConfig
}

// PendingRewardsResponse reports a staker's claimable amount.
type PendingRewardsResponse struct {
	Address        crypto.Address
	PendingRewards *big.Int
	Denom          bank.Denom
	LastUpdate     uint64
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func cloneU256(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
