package stakerewards

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"daorewards/crypto"
	"daorewards/native/bank"
	"daorewards/native/common"
)

var (
	owner   = crypto.AddressFromName(crypto.DAOPrefix, "owner")
	staking = crypto.AddressFromName(crypto.ContractPrefix, "cw20-stake")
	token   = crypto.AddressFromName(crypto.ContractPrefix, "reward-token")
)

func addr(name string) crypto.Address { return crypto.AddressFromName(crypto.DAOPrefix, name) }

func block(h uint64) common.BlockInfo { return common.BlockInfo{Height: h, Time: h * 5} }

type memState struct {
	ownership *common.Ownership
	cfg       *Config
	st        *RewardState
	users     map[string]*UserState
}

func (m *memState) GetOwnership() (*common.Ownership, bool, error) {
	if m.ownership == nil {
		return nil, false, nil
	}
	clone := *m.ownership
	return &clone, true, nil
}

func (m *memState) PutOwnership(o *common.Ownership) error {
	clone := *o
	m.ownership = &clone
	return nil
}

func (m *memState) StakeRewardsConfigGet() (*Config, bool, error) {
	if m.cfg == nil {
		return nil, false, nil
	}
	clone := *m.cfg
	return &clone, true, nil
}

func (m *memState) StakeRewardsConfigPut(cfg *Config) error {
	clone := *cfg
	m.cfg = &clone
	return nil
}

func (m *memState) StakeRewardsStateGet() (*RewardState, bool, error) {
	if m.st == nil {
		return nil, false, nil
	}
	return m.st.Clone(), true, nil
}

func (m *memState) StakeRewardsStatePut(st *RewardState) error {
	m.st = st.Clone()
	return nil
}

func (m *memState) StakeRewardsUserGet(a crypto.Address) (*UserState, bool, error) {
	user, ok := m.users[a.String()]
	if !ok {
		return nil, false, nil
	}
	return user.Clone(), true, nil
}

func (m *memState) StakeRewardsUserPut(user *UserState) error {
	m.users[user.Address.String()] = user.Clone()
	return nil
}

// stakes makes a balance recorded at height h visible from h+1.
type stakes struct {
	changes map[string][][2]int64
}

func (s *stakes) set(height uint64, holder crypto.Address, amount int64) {
	s.changes[holder.String()] = append(s.changes[holder.String()], [2]int64{int64(height) + 1, amount})
}

func (s *stakes) at(key string, height uint64) int64 {
	var out int64
	for _, change := range s.changes[key] {
		if change[0] <= int64(height) {
			out = change[1]
		}
	}
	return out
}

func (s *stakes) TotalPowerAt(contract crypto.Address, height uint64) (*big.Int, error) {
	total := big.NewInt(0)
	for key := range s.changes {
		total.Add(total, big.NewInt(s.at(key, height)))
	}
	return total, nil
}

func (s *stakes) PowerAt(contract crypto.Address, holder crypto.Address, height uint64) (*big.Int, error) {
	return big.NewInt(s.at(holder.String(), height)), nil
}

type fixture struct {
	t      *testing.T
	engine *Engine
	state  *memState
	stakes *stakes
}

func newFixture(t *testing.T, denom bank.Denom, duration uint64) *fixture {
	t.Helper()
	state := &memState{users: make(map[string]*UserState)}
	src := &stakes{changes: make(map[string][][2]int64)}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetStakeSource(src)
	require.NoError(t, engine.Instantiate(block(0), common.MessageInfo{Sender: owner}, nil, Config{
		StakingContract: staking,
		RewardDenom:     denom,
	}, duration))
	return &fixture{t: t, engine: engine, state: state, stakes: src}
}

func (f *fixture) stake(height uint64, name string, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.engine.StakeChanged(block(height), common.MessageInfo{Sender: staking}, StakeChangedMsg{Addr: addr(name)}))
	f.stakes.set(height, addr(name), amount)
}

func (f *fixture) fund(height uint64, amount int64) *RewardConfig {
	f.t.Helper()
	reward, err := f.engine.FundNative(block(height), common.MessageInfo{
		Sender: owner,
		Funds:  []common.Coin{common.NewCoin("ujuno", amount)},
	})
	require.NoError(f.t, err)
	return reward
}

func (f *fixture) pending(height uint64, name string) int64 {
	f.t.Helper()
	resp, err := f.engine.PendingRewards(block(height), addr(name))
	require.NoError(f.t, err)
	return resp.PendingRewards.Int64()
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t, bank.NativeDenom("ujuno"), 100_000)
	f.stake(0, "staker1", 100)
	f.stake(0, "staker2", 50)
	f.stake(0, "staker3", 50)

	reward := f.fund(1000, 100_000_000)
	require.Equal(t, int64(1000), reward.RewardRate.Int64())
	require.Equal(t, uint64(101_000), reward.PeriodFinish)

	for i := int64(1); i <= 3; i++ {
		h := uint64(1000 + i)
		require.Equal(t, 500*i, f.pending(h, "staker1"))
		require.Equal(t, 250*i, f.pending(h, "staker2"))
		require.Equal(t, 250*i, f.pending(h, "staker3"))
	}

	transfer, err := f.engine.Claim(block(1002), common.MessageInfo{Sender: addr("staker1")})
	require.NoError(t, err)
	require.Equal(t, int64(1000), transfer.Amount.Int64())
	require.Zero(t, f.pending(1002, "staker1"))
	require.Equal(t, int64(500), f.pending(1003, "staker1"))

	_, err = f.engine.Claim(block(1002), common.MessageInfo{Sender: addr("staker1")})
	require.ErrorIs(t, err, ErrNoRewardsClaimable)

	total := f.pending(200_000, "staker1") + f.pending(200_000, "staker2") + f.pending(200_000, "staker3") + 1000
	require.Equal(t, int64(100_000_000), total)
}

func TestSmallRewards(t *testing.T) {
	f := newFixture(t, bank.NativeDenom("ujuno"), 100_000)
	f.stake(0, "staker1", 100)
	f.stake(0, "staker2", 50)
	f.stake(0, "staker3", 50)

	reward := f.fund(1000, 1_000_000)
	require.Equal(t, int64(10), reward.RewardRate.Int64())
	require.Equal(t, int64(5), f.pending(1001, "staker1"))
	require.Equal(t, int64(2), f.pending(1001, "staker2"))
	require.Equal(t, int64(2), f.pending(1001, "staker3"))
}

func TestStakeChangeSettlesAtOldBalance(t *testing.T) {
	f := newFixture(t, bank.NativeDenom("ujuno"), 1000)
	f.stake(0, "alice", 100)
	f.stake(0, "bob", 100)
	f.fund(10, 100_000)

	f.stake(20, "bob", 300)
	require.Equal(t, int64(500), f.pending(20, "bob"))
	require.Equal(t, int64(500+750), f.pending(30, "bob"))
	require.Equal(t, int64(500+250), f.pending(30, "alice"))
}

func TestRefundRollsLeftoverIntoRate(t *testing.T) {
	f := newFixture(t, bank.NativeDenom("ujuno"), 100_000)
	f.stake(0, "alice", 1)
	f.fund(1000, 100_000_000)

	reward := f.fund(51_000, 100_000_000)
	require.Equal(t, int64(1500), reward.RewardRate.Int64())
	require.Equal(t, uint64(151_000), reward.PeriodFinish)
	require.Equal(t, int64(200_000_000), f.pending(151_000, "alice"))
}

func TestFundValidation(t *testing.T) {
	f := newFixture(t, bank.NativeDenom("ujuno"), 100)

	_, err := f.engine.FundNative(block(1), common.MessageInfo{Sender: addr("alice"), Funds: []common.Coin{common.NewCoin("ujuno", 1000)}})
	require.ErrorIs(t, err, common.ErrNotOwner)

	_, err = f.engine.FundNative(block(1), common.MessageInfo{Sender: owner, Funds: []common.Coin{common.NewCoin("uatom", 1000)}})
	require.ErrorIs(t, err, ErrInvalidFunds)

	_, err = f.engine.FundNative(block(1), common.MessageInfo{Sender: owner, Funds: []common.Coin{common.NewCoin("ujuno", 99)}})
	require.ErrorIs(t, err, ErrRewardRateLessThanOnePerBlock)
}

func TestTokenFunding(t *testing.T) {
	f := newFixture(t, bank.TokenDenom(token), 100)

	_, err := f.engine.ReceiveToken(block(1), common.MessageInfo{Sender: staking}, owner, big.NewInt(1000))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.engine.ReceiveToken(block(1), common.MessageInfo{Sender: token}, addr("alice"), big.NewInt(1000))
	require.ErrorIs(t, err, common.ErrNotOwner)

	reward, err := f.engine.ReceiveToken(block(1), common.MessageInfo{Sender: token}, owner, big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, int64(10), reward.RewardRate.Int64())
}

func TestHookSenderMustBeStakingContract(t *testing.T) {
	f := newFixture(t, bank.NativeDenom("ujuno"), 100)
	err := f.engine.StakeChanged(block(1), common.MessageInfo{Sender: addr("mallory")}, StakeChangedMsg{Addr: addr("alice")})
	require.ErrorIs(t, err, ErrInvalidHookSender)
}

func TestUpdateRewardDuration(t *testing.T) {
	f := newFixture(t, bank.NativeDenom("ujuno"), 100)
	f.stake(0, "alice", 1)

	_, err := f.engine.UpdateRewardDuration(block(1), common.MessageInfo{Sender: owner}, 0)
	require.ErrorIs(t, err, ErrZeroRewardDuration)
	_, err = f.engine.UpdateRewardDuration(block(1), common.MessageInfo{Sender: addr("alice")}, 50)
	require.ErrorIs(t, err, common.ErrNotOwner)

	f.fund(10, 1000)
	_, err = f.engine.UpdateRewardDuration(block(50), common.MessageInfo{Sender: owner}, 50)
	require.ErrorIs(t, err, ErrRewardPeriodNotFinished)

	reward, err := f.engine.UpdateRewardDuration(block(110), common.MessageInfo{Sender: owner}, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(50), reward.RewardDuration)
	require.Equal(t, int64(1000), f.pending(200, "alice"))

	reward = f.fund(200, 1000)
	require.Equal(t, int64(20), reward.RewardRate.Int64())
	require.Equal(t, uint64(250), reward.PeriodFinish)

	info, err := f.engine.Info()
	require.NoError(t, err)
	require.Equal(t, uint64(250), info.Reward.PeriodFinish)
	require.True(t, info.Config.StakingContract.Equal(staking))
}

func TestIdleStakeLeavesRewardsUnattributed(t *testing.T) {
	f := newFixture(t, bank.NativeDenom("ujuno"), 100)
	f.fund(0, 1000)
	_, err := f.engine.UpdateRewards(block(50), addr("nobody"))
	require.NoError(t, err)

	f.stake(50, "alice", 10)
	require.Equal(t, int64(500), f.pending(500, "alice"))
}
