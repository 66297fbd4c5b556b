package stakerewards

import "errors"

var (
	errNilState = errors.New("stakerewards: state not configured")
	errNilPower = errors.New("stakerewards: stake source not configured")

	ErrNotInstantiated               = errors.New("stakerewards: contract not instantiated")
	ErrInvalidFunds                  = errors.New("stakerewards: invalid funds")
	ErrInvalidToken                  = errors.New("stakerewards: invalid token, sender is not the reward token contract")
	ErrInvalidHookSender             = errors.New("stakerewards: hook sender is not the staking contract")
	ErrNoRewardsClaimable            = errors.New("stakerewards: no rewards claimable")
	ErrRewardPeriodNotFinished       = errors.New("stakerewards: reward period not finished")
	ErrRewardRateLessThanOnePerBlock = errors.New("stakerewards: reward rate less than one per block")
	ErrZeroRewardDuration            = errors.New("stakerewards: reward duration can not be zero")
	ErrArithmeticOverflow            = errors.New("stakerewards: arithmetic overflow")
)
