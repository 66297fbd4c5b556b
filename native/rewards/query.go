package rewards

import (
	"math/big"

	"daorewards/crypto"
	"daorewards/native/common"
)

const (
	// DefaultQueryLimit is the page size used when none is requested.
	DefaultQueryLimit = 10
	// MaxQueryLimit caps every page.
	MaxQueryLimit = 50
)

func clampLimit(limit uint32) int {
	if limit == 0 {
		return DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return int(limit)
}

// InfoResponse reports the stored contract version.
type InfoResponse struct {
	Info ContractVersion
}

// Info returns the stored contract version.
func (e *Engine) Info() (*InfoResponse, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	version, ok, err := e.state.ContractVersionGet()
	if err != nil {
		return nil, err
	}
	if !ok || version == nil {
		return &InfoResponse{}, nil
	}
	return &InfoResponse{Info: *version}, nil
}

// Ownership returns the current ownership record.
func (e *Engine) Ownership() (*common.Ownership, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return common.GetOwnership(e.state)
}

// Distribution returns the stored state of distribution id.
func (e *Engine) Distribution(id uint64) (*DistributionState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadDistribution(id)
}

// Distributions returns up to limit distributions with ids above startAfter.
func (e *Engine) Distributions(startAfter uint64, limit uint32) (*DistributionsResponse, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	page, err := e.distributionPage(startAfter, limit)
	if err != nil {
		return nil, err
	}
	return &DistributionsResponse{Distributions: page}, nil
}

func (e *Engine) distributionPage(startAfter uint64, limit uint32) ([]*DistributionState, error) {
	count, err := e.state.RewardsDistributionCount()
	if err != nil {
		return nil, err
	}
	want := clampLimit(limit)
	page := make([]*DistributionState, 0, want)
	if startAfter >= count {
		return page, nil
	}
	for id := startAfter + 1; id <= count && len(page) < want; id++ {
		dist, ok, err := e.state.RewardsDistributionGet(id)
		if err != nil {
			return nil, err
		}
		if ok && dist != nil {
			page = append(page, dist)
		}
	}
	return page, nil
}

// PendingRewards projects addr's claimable amount in every distribution with
// an id above startAfter without writing any state.
func (e *Engine) PendingRewards(block common.BlockInfo, addr crypto.Address, startAfter uint64, limit uint32) (*PendingRewardsResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	user, err := e.loadUser(addr)
	if err != nil {
		return nil, err
	}
	page, err := e.distributionPage(startAfter, limit)
	if err != nil {
		return nil, err
	}
	resp := &PendingRewardsResponse{PendingRewards: make([]DistributionPendingRewards, 0, len(page))}
	for _, dist := range page {
		amount, err := e.pendingFor(block, user, dist)
		if err != nil {
			return nil, err
		}
		resp.PendingRewards = append(resp.PendingRewards, DistributionPendingRewards{
			ID:             dist.ID,
			Denom:          dist.Denom,
			PendingRewards: amount,
		})
	}
	return resp, nil
}

// PendingRewardsFor projects addr's claimable amount in distribution id.
func (e *Engine) PendingRewardsFor(block common.BlockInfo, addr crypto.Address, id uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	dist, err := e.loadDistribution(id)
	if err != nil {
		return nil, err
	}
	user, err := e.loadUser(addr)
	if err != nil {
		return nil, err
	}
	return e.pendingFor(block, user, dist)
}

// UndistributedRewards returns the funded amount the active epoch has not
// emitted as of block.
func (e *Engine) UndistributedRewards(block common.BlockInfo, id uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	dist, err := e.loadDistribution(id)
	if err != nil {
		return nil, err
	}
	projected := dist.Clone()
	projected.ActiveEpoch.BumpLastUpdated(block)
	emitted, err := projected.distributedInEpoch()
	if err != nil {
		return nil, err
	}
	if emitted.Cmp(dist.FundedAmount) >= 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).Sub(dist.FundedAmount, emitted), nil
}

func (e *Engine) pendingFor(block common.BlockInfo, user *UserRewardState, dist *DistributionState) (*big.Int, error) {
	active, err := ActiveTotalEarnedPUVP(e.oracle, block, dist)
	if err != nil {
		return nil, err
	}
	total, err := addU256(active, dist.HistoricalEarnedPUVP)
	if err != nil {
		return nil, err
	}
	accrued, err := e.accruedNotAccounted(block, user.Address, total, dist, user)
	if err != nil {
		return nil, err
	}
	return accrued.Add(accrued, user.Pending(dist.ID)), nil
}
