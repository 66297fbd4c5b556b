package rewards

import (
	"errors"
	"fmt"
)

var (
	errNilState  = errors.New("rewards: state not configured")
	errNilOracle = errors.New("rewards: voting power oracle not configured")

	// ErrDistributionNotFound is matched by DistributionNotFoundError.
	ErrDistributionNotFound              = errors.New("rewards: distribution not found")
	ErrUnexpectedDuplicateDistributionID = errors.New("rewards: unexpected duplicate distribution id")
	ErrInvalidFunds                      = errors.New("rewards: invalid funds")
	ErrInvalidToken                      = errors.New("rewards: invalid token, sender is not the distribution's token contract")
	ErrNoFundsOnTokenCreate              = errors.New("rewards: cannot fund a token distribution on creation, send tokens to the receive hook instead")
	ErrNoRewardsClaimable                = errors.New("rewards: no rewards claimable")
	ErrRewardsAlreadyDistributed         = errors.New("rewards: all rewards have already been distributed")
	ErrInvalidHookSender                 = errors.New("rewards: invalid hook sender")
	ErrInvalidEmissionRateFieldZero      = errors.New("rewards: invalid emission rate, field must be non-zero")
	ErrInvalidEmissionRate               = errors.New("rewards: invalid emission rate")
	ErrInvalidVotingPowerContract        = errors.New("rewards: invalid voting power contract")
	ErrArithmeticOverflow                = errors.New("rewards: arithmetic overflow")
	ErrArithmeticUnderflow               = errors.New("rewards: arithmetic underflow")
	ErrDivideByZero                      = errors.New("rewards: division by zero")
	ErrMigrationIncorrectContract        = errors.New("rewards: cannot migrate from a different contract")
	ErrMigrationInvalidVersion           = errors.New("rewards: migration must move to a newer version")
)

// DistributionNotFoundError carries the id of the missing distribution.
type DistributionNotFoundError struct {
	ID uint64
}

func (e DistributionNotFoundError) Error() string {
	return fmt.Sprintf("rewards: distribution %d not found", e.ID)
}

// Is makes errors.Is(err, ErrDistributionNotFound) hold.
func (e DistributionNotFoundError) Is(target error) bool {
	return target == ErrDistributionNotFound
}

func notFound(id uint64) error {
	return DistributionNotFoundError{ID: id}
}

func fieldZero(field string) error {
	return fmt.Errorf("%w: %s", ErrInvalidEmissionRateFieldZero, field)
}
