package rewards

import (
	"math/big"
	"strconv"

	"daorewards/core/events"
	"daorewards/core/types"
)

const (
	// EventTypeDistributionCreated is emitted when the owner creates a distribution.
	EventTypeDistributionCreated = "rewards.distribution.created"
	// EventTypeDistributionFunded is emitted after funds are added to a distribution.
	EventTypeDistributionFunded = "rewards.distribution.funded"
	// EventTypeDistributionUpdated is emitted when a distribution's configuration changes.
	EventTypeDistributionUpdated = "rewards.distribution.updated"
	// EventTypeRewardsClaimed is emitted when a participant claims.
	EventTypeRewardsClaimed = "rewards.claimed"
	// EventTypeRewardsWithdrawn is emitted when the owner claws back unemitted funds.
	EventTypeRewardsWithdrawn = "rewards.withdrawn"
	// EventTypeUserStakeUpdated is emitted when a hook reconciles a participant.
	EventTypeUserStakeUpdated = "rewards.user.stake_updated"
	// EventTypeOwnershipUpdated is emitted after an ownership action.
	EventTypeOwnershipUpdated = "rewards.ownership.updated"
	// EventTypeContractMigrated is emitted after a successful migration.
	EventTypeContractMigrated = "rewards.contract.migrated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func idString(id uint64) string { return strconv.FormatUint(id, 10) }

func amountString(v *big.Int) string { return cloneBig(v).String() }

// DistributionCreatedEvent describes a newly created distribution.
func DistributionCreatedEvent(dist *DistributionState) *types.Event {
	return &types.Event{
		Type: EventTypeDistributionCreated,
		Attributes: map[string]string{
			"id":           idString(dist.ID),
			"denom":        dist.Denom.String(),
			"emissionRate": dist.ActiveEpoch.EmissionRate.String(),
			"hookCaller":   dist.HookCaller.String(),
		},
	}
}

// DistributionFundedEvent describes a funding event.
func DistributionFundedEvent(dist *DistributionState, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDistributionFunded,
		Attributes: map[string]string{
			"id":           idString(dist.ID),
			"denom":        dist.Denom.String(),
			"amountFunded": amountString(amount),
			"fundedAmount": amountString(dist.FundedAmount),
			"endsAt":       dist.ActiveEpoch.EndsAt.String(),
		},
	}
}

// DistributionUpdatedEvent describes a configuration change.
func DistributionUpdatedEvent(dist *DistributionState) *types.Event {
	return &types.Event{
		Type: EventTypeDistributionUpdated,
		Attributes: map[string]string{
			"id":           idString(dist.ID),
			"denom":        dist.Denom.String(),
			"emissionRate": dist.ActiveEpoch.EmissionRate.String(),
		},
	}
}

// RewardsClaimedEvent describes a successful claim.
func RewardsClaimedEvent(dist *DistributionState, claimant string, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsClaimed,
		Attributes: map[string]string{
			"id":            idString(dist.ID),
			"denom":         dist.Denom.String(),
			"claimant":      claimant,
			"amountClaimed": amountString(amount),
		},
	}
}

// RewardsWithdrawnEvent describes a clawback.
func RewardsWithdrawnEvent(dist *DistributionState, withdrawn, distributed *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsWithdrawn,
		Attributes: map[string]string{
			"id":                idString(dist.ID),
			"denom":             dist.Denom.String(),
			"amountWithdrawn":   amountString(withdrawn),
			"amountDistributed": amountString(distributed),
		},
	}
}

// UserStakeUpdatedEvent describes a hook driven reconciliation.
func UserStakeUpdatedEvent(addr string, ids int) *types.Event {
	return &types.Event{
		Type: EventTypeUserStakeUpdated,
		Attributes: map[string]string{
			"address":       addr,
			"distributions": strconv.Itoa(ids),
		},
	}
}

// OwnershipUpdatedEvent describes the ownership record after an action.
func OwnershipUpdatedEvent(owner, pending, expiry string) *types.Event {
	return &types.Event{
		Type: EventTypeOwnershipUpdated,
		Attributes: map[string]string{
			"owner":         owner,
			"pendingOwner":  pending,
			"pendingExpiry": expiry,
		},
	}
}

// ContractMigratedEvent describes a version upgrade.
func ContractMigratedEvent(from, to string) *types.Event {
	return &types.Event{
		Type: EventTypeContractMigrated,
		Attributes: map[string]string{
			"from": from,
			"to":   to,
		},
	}
}
