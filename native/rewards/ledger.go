package rewards

import (
	"log/slog"
	"math/big"

	"github.com/holiman/uint256"

	"daorewards/crypto"
	"daorewards/native/common"
)

// UpdateRewards reconciles addr's ledger against distribution id as of block
// and persists both the distribution accumulator and the ledger. Calling it
// twice at the same block with no stake or funding change in between accrues
// nothing the second time.
func (e *Engine) UpdateRewards(block common.BlockInfo, addr crypto.Address, id uint64) (*DistributionState, *UserRewardState, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	dist, err := e.loadDistribution(id)
	if err != nil {
		return nil, nil, err
	}

	active, err := ActiveTotalEarnedPUVP(e.oracle, block, dist)
	if err != nil {
		return nil, nil, err
	}
	dist.ActiveEpoch.TotalEarnedPUVP = active
	dist.ActiveEpoch.BumpLastUpdated(block)
	total, err := addU256(cloneU256(active), dist.HistoricalEarnedPUVP)
	if err != nil {
		return nil, nil, err
	}
	if err := e.state.RewardsDistributionPut(dist); err != nil {
		return nil, nil, err
	}

	user, err := e.loadUser(addr)
	if err != nil {
		return nil, nil, err
	}
	accrued, err := e.accruedNotAccounted(block, addr, total, dist, user)
	if err != nil {
		return nil, nil, err
	}
	user.PendingRewards[id] = new(big.Int).Add(user.Pending(id), accrued)
	user.AccountedPUVP[id] = total
	if err := e.state.RewardsUserPut(user); err != nil {
		return nil, nil, err
	}
	if accrued.Sign() > 0 {
		e.logger.Debug("rewards: ledger reconciled",
			slog.Uint64("id", id),
			slog.String("address", addr.String()),
			slog.String("accrued", accrued.String()))
	}
	return dist.Clone(), user.Clone(), nil
}

// accruedNotAccounted returns (total - accounted) * power / SCALE where power
// is addr's current voting power in the distribution's contract.
func (e *Engine) accruedNotAccounted(block common.BlockInfo, addr crypto.Address, total *uint256.Int, dist *DistributionState, user *UserRewardState) (*big.Int, error) {
	accounted := user.Accounted(dist.ID)
	if total.Eq(accounted) {
		return big.NewInt(0), nil
	}
	delta, err := subU256(total, accounted)
	if err != nil {
		return nil, err
	}
	power, err := e.oracle.PowerAt(dist.VPContract, addr, block.Height)
	if err != nil {
		return nil, err
	}
	if power == nil || power.Sign() == 0 {
		return big.NewInt(0), nil
	}
	wide, err := toU256(power)
	if err != nil {
		return nil, err
	}
	product, err := mulU256(delta, wide)
	if err != nil {
		return nil, err
	}
	out, err := divU256(product, scaleFactor)
	if err != nil {
		return nil, err
	}
	return out.ToBig(), nil
}

func (e *Engine) loadUser(addr crypto.Address) (*UserRewardState, error) {
	user, ok, err := e.state.RewardsUserGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || user == nil {
		return NewUserRewardState(addr), nil
	}
	if user.PendingRewards == nil {
		user.PendingRewards = make(map[uint64]*big.Int)
	}
	if user.AccountedPUVP == nil {
		user.AccountedPUVP = make(map[uint64]*uint256.Int)
	}
	return user, nil
}
