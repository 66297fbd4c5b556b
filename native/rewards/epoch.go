package rewards

import (
	"math/big"

	"github.com/holiman/uint256"

	"daorewards/native/common"
)

// Epoch is one contiguous emission window under a single rate.
// TotalEarnedPUVP is the scaled reward earned per unit of voting power since
// the epoch began, as of LastUpdated. LastUpdated never passes EndsAt.
// Unallocated is immediate funding received while total voting power was
// zero; it counts as funded but not emitted.
type Epoch struct {
	StartedAt       common.Expiration
	EndsAt          common.Expiration
	EmissionRate    EmissionRate
	TotalEarnedPUVP *uint256.Int
	LastUpdated     common.Expiration
	Unallocated     *big.Int
}

func newEpoch(rate EmissionRate) Epoch {
	return Epoch{
		StartedAt:       common.NeverExpires(),
		EndsAt:          common.NeverExpires(),
		EmissionRate:    rate,
		TotalEarnedPUVP: zeroU256(),
		LastUpdated:     common.NeverExpires(),
		Unallocated:     big.NewInt(0),
	}
}

// Clone returns a deep copy of the epoch.
func (e Epoch) Clone() Epoch {
	clone := e
	clone.EmissionRate.Amount = cloneBig(e.EmissionRate.Amount)
	clone.TotalEarnedPUVP = cloneU256(e.TotalEarnedPUVP)
	clone.Unallocated = cloneBig(e.Unallocated)
	return clone
}

// BumpLastUpdated records that TotalEarnedPUVP is current as of block.
func (e *Epoch) BumpLastUpdated(block common.BlockInfo) {
	switch e.EmissionRate.Kind {
	case EmissionPaused:
	case EmissionImmediate:
		e.LastUpdated = common.ExpiresAtHeight(block.Height)
	case EmissionLinear:
		e.LastUpdated = e.EndsAt.Min(block)
	}
}

// ActiveTotalEarnedPUVP projects the active epoch's accumulator to block
// without modifying dist.
func ActiveTotalEarnedPUVP(oracle VotingPowerOracle, block common.BlockInfo, dist *DistributionState) (*uint256.Int, error) {
	epoch := dist.ActiveEpoch
	current := cloneU256(epoch.TotalEarnedPUVP)
	switch epoch.EmissionRate.Kind {
	case EmissionPaused, EmissionImmediate:
		return current, nil
	case EmissionLinear:
	default:
		return nil, ErrInvalidEmissionRate
	}

	elapsed, err := common.DiffSaturating(dist.LatestDistributionTime(block), epoch.LastUpdated)
	if err != nil {
		return nil, err
	}
	if elapsed == 0 {
		return current, nil
	}
	if oracle == nil {
		return nil, errNilOracle
	}
	totalPower, err := oracle.TotalPowerAt(dist.VPContract, block.Height)
	if err != nil {
		return nil, err
	}
	if totalPower == nil || totalPower.Sign() == 0 {
		return current, nil
	}
	delta, err := linearPUVPDelta(epoch.EmissionRate, elapsed, totalPower)
	if err != nil {
		return nil, err
	}
	return addU256(current, delta)
}

// linearPUVPDelta computes amount*elapsed*SCALE / (duration*totalPower),
// dividing once at the end.
func linearPUVPDelta(rate EmissionRate, elapsed uint64, totalPower *big.Int) (*uint256.Int, error) {
	amount, err := toU256(rate.Amount)
	if err != nil {
		return nil, err
	}
	numerator, err := mulU256(amount, uint256.NewInt(elapsed))
	if err != nil {
		return nil, err
	}
	if numerator, err = mulU256(numerator, scaleFactor); err != nil {
		return nil, err
	}
	power, err := toU256(totalPower)
	if err != nil {
		return nil, err
	}
	denominator, err := mulU256(power, uint256.NewInt(rate.Duration.Value))
	if err != nil {
		return nil, err
	}
	return divU256(numerator, denominator)
}

// immediatePUVPDelta computes amount*SCALE / totalPower.
func immediatePUVPDelta(amount, totalPower *big.Int) (*uint256.Int, error) {
	wide, err := toU256(amount)
	if err != nil {
		return nil, err
	}
	numerator, err := mulU256(wide, scaleFactor)
	if err != nil {
		return nil, err
	}
	power, err := toU256(totalPower)
	if err != nil {
		return nil, err
	}
	return divU256(numerator, power)
}
