package rewards

import (
	"log/slog"
	"math/big"
	"sort"

	"daorewards/crypto"
	"daorewards/native/common"
)

// StakeAction distinguishes stake from unstake notifications.
type StakeAction uint8

const (
	ActionStake StakeAction = iota + 1
	ActionUnstake
)

// StakeChangedMsg is sent by a token staking contract after Addr's stake moved.
type StakeChangedMsg struct {
	Action StakeAction
	Addr   crypto.Address
	Amount *big.Int
}

// NftStakeChangedMsg is sent by an NFT staking contract after Addr staked or
// unstaked TokenIDs.
type NftStakeChangedMsg struct {
	Action   StakeAction
	Addr     crypto.Address
	TokenIDs []string
}

// MemberDiff is one membership weight change. A nil Old means the member was
// added; a nil New means it was removed.
type MemberDiff struct {
	Key crypto.Address
	Old *big.Int
	New *big.Int
}

// MemberChangedMsg is sent by a membership group after weights changed.
type MemberChangedMsg struct {
	Diffs []MemberDiff
}

// StakeChanged reconciles the staker against every distribution the sender
// is subscribed to.
func (e *Engine) StakeChanged(block common.BlockInfo, info common.MessageInfo, msg StakeChangedMsg) error {
	return e.dispatchHook(block, info.Sender, []crypto.Address{msg.Addr})
}

// NftStakeChanged reconciles the NFT staker against every distribution the
// sender is subscribed to.
func (e *Engine) NftStakeChanged(block common.BlockInfo, info common.MessageInfo, msg NftStakeChangedMsg) error {
	return e.dispatchHook(block, info.Sender, []crypto.Address{msg.Addr})
}

// MemberChanged reconciles every member named in the diff.
func (e *Engine) MemberChanged(block common.BlockInfo, info common.MessageInfo, msg MemberChangedMsg) error {
	addrs := make([]crypto.Address, 0, len(msg.Diffs))
	for _, diff := range msg.Diffs {
		addrs = append(addrs, diff.Key)
	}
	return e.dispatchHook(block, info.Sender, addrs)
}

func (e *Engine) dispatchHook(block common.BlockInfo, sender crypto.Address, addrs []crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	ids, err := e.state.RewardsHookGet(sender)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ErrInvalidHookSender
	}
	for _, addr := range addrs {
		for _, id := range ids {
			if _, _, err := e.UpdateRewards(block, addr, id); err != nil {
				return err
			}
		}
		e.emit(UserStakeUpdatedEvent(addr.String(), len(ids)))
	}
	e.logger.Debug("rewards: hook dispatched",
		slog.String("sender", sender.String()),
		slog.Int("addresses", len(addrs)),
		slog.Int("distributions", len(ids)))
	return nil
}

func (e *Engine) subscribe(id uint64, caller crypto.Address) error {
	ids, err := e.state.RewardsHookGet(caller)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return e.state.RewardsHookPut(caller, ids)
}

func (e *Engine) unsubscribe(id uint64, caller crypto.Address) error {
	ids, err := e.state.RewardsHookGet(caller)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return e.state.RewardsHookPut(caller, kept)
}
