package stakerewards

import (
	"math/big"
	"strconv"

	"daorewards/core/events"
	"daorewards/core/types"
)

const (
	EventTypeFunded          = "stakerewards.funded"
	EventTypeClaimed         = "stakerewards.claimed"
	EventTypeDurationUpdated = "stakerewards.duration_updated"
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

// FundedEvent describes a new reward period.
func FundedEvent(amount *big.Int, reward RewardConfig) *types.Event {
	return &types.Event{
		Type: EventTypeFunded,
		Attributes: map[string]string{
			"amount":       cloneBig(amount).String(),
			"rewardRate":   cloneBig(reward.RewardRate).String(),
			"periodFinish": strconv.FormatUint(reward.PeriodFinish, 10),
		},
	}
}

// ClaimedEvent describes a claim.
func ClaimedEvent(claimant string, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeClaimed,
		Attributes: map[string]string{
			"claimant": claimant,
			"amount":   cloneBig(amount).String(),
		},
	}
}

// DurationUpdatedEvent describes a reward duration change.
func DurationUpdatedEvent(duration uint64) *types.Event {
	return &types.Event{
		Type:       EventTypeDurationUpdated,
		Attributes: map[string]string{"rewardDuration": strconv.FormatUint(duration, 10)},
	}
}
