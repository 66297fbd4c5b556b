package rewards

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"daorewards/crypto"
	"daorewards/native/common"
)

func TestHookRejectsUnsubscribedSender(t *testing.T) {
	h := newHarness(t)
	h.create(0, perBlock(10))

	err := h.engine.StakeChanged(blockAt(1), common.MessageInfo{Sender: addr("mallory")}, StakeChangedMsg{
		Action: ActionStake, Addr: addr("alice"), Amount: big.NewInt(1),
	})
	require.ErrorIs(t, err, ErrInvalidHookSender)
}

func TestHookCallerUpdateMovesSubscription(t *testing.T) {
	h := newHarness(t)
	dist := h.create(0, perBlock(10))
	group := crypto.AddressFromName(crypto.ContractPrefix, "group")

	_, err := h.engine.Update(blockAt(1), common.MessageInfo{Sender: ownerAddr}, UpdateMsg{ID: dist.ID, HookCaller: &group})
	require.NoError(t, err)

	err = h.engine.StakeChanged(blockAt(2), common.MessageInfo{Sender: vpContract}, StakeChangedMsg{Action: ActionStake, Addr: addr("alice")})
	require.ErrorIs(t, err, ErrInvalidHookSender)

	err = h.engine.NftStakeChanged(blockAt(2), common.MessageInfo{Sender: group}, NftStakeChangedMsg{
		Action: ActionUnstake, Addr: addr("alice"), TokenIDs: []string{"1", "2"},
	})
	require.NoError(t, err)

	ids, err := h.state.RewardsHookGet(group)
	require.NoError(t, err)
	require.Equal(t, []uint64{dist.ID}, ids)
}

func TestMemberChangedReconcilesEveryMember(t *testing.T) {
	h := newHarness(t)
	dist := h.create(0, perBlock(1000))
	h.oracle.set(0, addr("alice"), 1)
	h.oracle.set(0, addr("bob"), 1)
	h.fund(100, dist.ID, 100_000)

	h.oracle.set(110, addr("alice"), 3)
	err := h.engine.MemberChanged(blockAt(110), common.MessageInfo{Sender: vpContract}, MemberChangedMsg{
		Diffs: []MemberDiff{
			{Key: addr("alice"), Old: big.NewInt(1), New: big.NewInt(3)},
			{Key: addr("bob"), Old: big.NewInt(1), New: big.NewInt(1)},
		},
	})
	require.NoError(t, err)

	for _, name := range []string{"alice", "bob"} {
		user, ok, err := h.state.RewardsUserGet(addr(name))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int64(5000), user.Pending(dist.ID).Int64())
	}
	require.Equal(t, int64(5000+7500), h.pending(120, "alice", dist.ID))
	require.Equal(t, int64(5000+2500), h.pending(120, "bob", dist.ID))
}

func TestHookReconcilesEverySubscribedDistribution(t *testing.T) {
	h := newHarness(t)
	first := h.create(0, perBlock(100))
	second := h.create(0, perBlock(300))
	h.stake(0, "alice", 1)
	h.fund(10, first.ID, 10_000)
	h.fund(10, second.ID, 30_000)

	h.stake(20, "alice", 2)
	user, ok, err := h.state.RewardsUserGet(addr("alice"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1000), user.Pending(first.ID).Int64())
	require.Equal(t, int64(3000), user.Pending(second.ID).Int64())
	require.Equal(t, []uint64{first.ID, second.ID}, user.DistributionIDs())
}
