package state

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"daorewards/crypto"
	"daorewards/native/bank"
	"daorewards/native/common"
	"daorewards/native/massdist"
	"daorewards/native/rewards"
	"daorewards/native/stakerewards"
	"daorewards/native/votingpower"
	"daorewards/storage"
)

func addr(name string) crypto.Address { return crypto.AddressFromName(crypto.DAOPrefix, name) }

func contractAddr(name string) crypto.Address {
	return crypto.AddressFromName(crypto.ContractPrefix, name)
}

func TestContractStoresAreNamespaced(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	first := mgr.Contract(contractAddr("first"))
	second := mgr.Contract(contractAddr("second"))

	_, err := common.InitializeOwner(first, addr("alice"))
	require.NoError(t, err)

	_, ok, err := second.GetOwnership()
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, err := first.GetOwnership()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Owner.Equal(addr("alice")))
	require.True(t, got.PendingOwner.IsZero())
}

func TestDistributionRecordRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	store := mgr.Contract(contractAddr("rewards"))

	dist := &rewards.DistributionState{
		ID:    3,
		Denom: bank.TokenDenom(contractAddr("token")),
		ActiveEpoch: rewards.Epoch{
			StartedAt:       common.ExpiresAtHeight(10),
			EndsAt:          common.ExpiresAtHeight(110),
			EmissionRate:    rewards.Linear(big.NewInt(1000), common.Blocks(10), true),
			TotalEarnedPUVP: new(uint256.Int).Lsh(uint256.NewInt(1), 200),
			LastUpdated:     common.ExpiresAtHeight(50),
			Unallocated:     big.NewInt(7),
		},
		VPContract:           contractAddr("vp"),
		HookCaller:           contractAddr("vp"),
		FundedAmount:         big.NewInt(10_000),
		WithdrawDestination:  addr("treasury"),
		HistoricalEarnedPUVP: uint256.NewInt(42),
	}
	require.NoError(t, store.RewardsDistributionPut(dist))
	require.NoError(t, mgr.Commit())

	loaded, ok, err := NewManager(mgr.db).Contract(contractAddr("rewards")).RewardsDistributionGet(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, dist.ID, loaded.ID)
	require.True(t, dist.Denom.Equal(loaded.Denom))
	require.True(t, dist.ActiveEpoch.EmissionRate.Equal(loaded.ActiveEpoch.EmissionRate))
	require.Equal(t, dist.ActiveEpoch.StartedAt, loaded.ActiveEpoch.StartedAt)
	require.Equal(t, dist.ActiveEpoch.EndsAt, loaded.ActiveEpoch.EndsAt)
	require.Equal(t, dist.ActiveEpoch.LastUpdated, loaded.ActiveEpoch.LastUpdated)
	require.Equal(t, 0, dist.ActiveEpoch.TotalEarnedPUVP.Cmp(loaded.ActiveEpoch.TotalEarnedPUVP))
	require.Equal(t, 0, dist.HistoricalEarnedPUVP.Cmp(loaded.HistoricalEarnedPUVP))
	require.Equal(t, 0, dist.FundedAmount.Cmp(loaded.FundedAmount))
	require.Equal(t, "7", loaded.ActiveEpoch.Unallocated.String())
	require.True(t, dist.WithdrawDestination.Equal(loaded.WithdrawDestination))
	require.True(t, dist.VPContract.Equal(loaded.VPContract))

	_, ok, err = store.RewardsDistributionGet(4)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUserAndHookRecords(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	store := mgr.Contract(contractAddr("rewards"))

	user := rewards.NewUserRewardState(addr("bob"))
	user.PendingRewards[2] = big.NewInt(15)
	user.AccountedPUVP[1] = uint256.NewInt(99)
	require.NoError(t, store.RewardsUserPut(user))

	loaded, ok, err := store.RewardsUserGet(addr("bob"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []uint64{1, 2}, loaded.DistributionIDs())
	require.Equal(t, int64(15), loaded.Pending(2).Int64())
	require.Equal(t, uint64(99), loaded.Accounted(1).Uint64())
	require.Equal(t, int64(0), loaded.Pending(1).Int64())

	hook := contractAddr("vp")
	ids, err := store.RewardsHookGet(hook)
	require.NoError(t, err)
	require.Empty(t, ids)
	require.NoError(t, store.RewardsHookPut(hook, []uint64{1, 4}))
	ids, err = store.RewardsHookGet(hook)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 4}, ids)
	require.NoError(t, store.RewardsHookPut(hook, nil))
	ids, err = store.RewardsHookGet(hook)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestStakeRewardsAndWeightsRecords(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	store := mgr.Contract(contractAddr("staking-rewards"))

	cfg := &stakerewards.Config{StakingContract: contractAddr("staking"), RewardDenom: bank.NativeDenom("udao")}
	require.NoError(t, store.StakeRewardsConfigPut(cfg))
	gotCfg, ok, err := store.StakeRewardsConfigGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, gotCfg.StakingContract.Equal(cfg.StakingContract))
	require.True(t, gotCfg.RewardDenom.Equal(cfg.RewardDenom))

	st := &stakerewards.RewardState{
		Reward:          stakerewards.RewardConfig{PeriodFinish: 200, RewardRate: big.NewInt(5), RewardDuration: 100},
		RewardPerToken:  uint256.NewInt(12345),
		LastUpdateBlock: 150,
	}
	require.NoError(t, store.StakeRewardsStatePut(st))
	gotSt, ok, err := store.StakeRewardsStateGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, st.Reward.PeriodFinish, gotSt.Reward.PeriodFinish)
	require.Equal(t, int64(5), gotSt.Reward.RewardRate.Int64())
	require.Equal(t, uint64(12345), gotSt.RewardPerToken.Uint64())
	require.Equal(t, uint64(150), gotSt.LastUpdateBlock)

	require.NoError(t, store.StakeRewardsUserPut(&stakerewards.UserState{Address: addr("carol"), Pending: big.NewInt(3)}))
	gotUser, ok, err := store.StakeRewardsUserGet(addr("carol"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(3), gotUser.Pending.Int64())
	require.True(t, gotUser.PerTokenPaid.IsZero())

	half, err := massdist.ParseWeight("0.5")
	require.NoError(t, err)
	weights := []massdist.Weight{{Address: addr("a"), Weight: half}, {Address: addr("b"), Weight: half}}
	require.NoError(t, store.SetMassDistWeights(weights))
	gotWeights, err := store.MassDistWeights()
	require.NoError(t, err)
	require.Len(t, gotWeights, 2)
	require.True(t, gotWeights[1].Address.Equal(addr("b")))
	require.Equal(t, 0, gotWeights[1].Weight.Cmp(half))
}

func TestEnginesPersistThroughLevelDB(t *testing.T) {
	db, err := storage.NewLevelDB(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	defer db.Close()

	mgr := NewManager(db)
	vp := contractAddr("vp")
	registry := votingpower.NewRegistry(mgr)
	require.NoError(t, registry.RegisterContract(vp))

	engine := rewards.NewEngine()
	engine.SetState(mgr.Contract(contractAddr("rewards")))
	engine.SetOracle(registry)

	owner := common.MessageInfo{Sender: addr("owner")}
	_, err = engine.Instantiate(owner, nil)
	require.NoError(t, err)
	require.NoError(t, registry.Stake(common.BlockInfo{Height: 1, Time: 1}, vp, addr("alice"), big.NewInt(100)))
	require.NoError(t, mgr.Commit())

	err = mgr.Atomic(func() error {
		info := common.MessageInfo{Sender: addr("owner"), Funds: []common.Coin{common.NewCoin("udao", 1000)}}
		_, err := engine.Create(common.BlockInfo{Height: 2, Time: 2}, info, rewards.CreateMsg{
			Denom:        bank.NativeDenom("udao"),
			EmissionRate: rewards.Linear(big.NewInt(10), common.Blocks(1), false),
			VPContract:   vp,
			HookCaller:   vp,
		})
		return err
	})
	require.NoError(t, err)

	reopened := rewards.NewEngine()
	reopened.SetState(NewManager(db).Contract(contractAddr("rewards")))
	reopened.SetOracle(votingpower.NewRegistry(NewManager(db)))

	pending, err := reopened.PendingRewardsFor(common.BlockInfo{Height: 12, Time: 12}, addr("alice"), 1)
	require.NoError(t, err)
	require.Equal(t, int64(100), pending.Int64())

	info, err := reopened.Info()
	require.NoError(t, err)
	require.Equal(t, rewards.ContractName, info.Info.Contract)
}

func TestVotingPowerHistoryRecords(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	vp := contractAddr("vp")

	exists, err := mgr.VotingPowerContractExists(vp)
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mgr.VotingPowerContractPut(vp))
	exists, err = mgr.VotingPowerContractExists(vp)
	require.NoError(t, err)
	require.True(t, exists)

	history := []votingpower.Checkpoint{{Height: 2, Power: big.NewInt(10)}, {Height: 5, Power: big.NewInt(0)}}
	require.NoError(t, mgr.VotingPowerHistoryPut(vp, addr("alice"), history))
	got, err := mgr.VotingPowerHistory(vp, addr("alice"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(5), got[1].Height)
	require.Equal(t, int64(0), got[1].Power.Int64())

	totals, err := mgr.VotingPowerTotalHistory(vp)
	require.NoError(t, err)
	require.Empty(t, totals)
}
