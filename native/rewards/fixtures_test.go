package rewards

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"daorewards/crypto"
	"daorewards/native/bank"
	"daorewards/native/common"
)

const testDenom = "udao"

var (
	ownerAddr  = crypto.AddressFromName(crypto.DAOPrefix, "owner")
	vpContract = crypto.AddressFromName(crypto.ContractPrefix, "staking")
	tokenAddr  = crypto.AddressFromName(crypto.ContractPrefix, "token")
)

func addr(name string) crypto.Address { return crypto.AddressFromName(crypto.DAOPrefix, name) }

func blockAt(height uint64) common.BlockInfo {
	return common.BlockInfo{Height: height, Time: 1_700_000_000 + height*6}
}

type memState struct {
	ownership *common.Ownership
	dists     map[uint64]*DistributionState
	count     uint64
	users     map[string]*UserRewardState
	hooks     map[string][]uint64
	version   *ContractVersion
}

func newMemState() *memState {
	return &memState{
		dists: make(map[uint64]*DistributionState),
		users: make(map[string]*UserRewardState),
		hooks: make(map[string][]uint64),
	}
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

func (m *memState) RewardsDistributionGet(id uint64) (*DistributionState, bool, error) {
	dist, ok := m.dists[id]
	if !ok {
		return nil, false, nil
	}
	return dist.Clone(), true, nil
}

func (m *memState) RewardsDistributionPut(dist *DistributionState) error {
	m.dists[dist.ID] = dist.Clone()
	return nil
}

func (m *memState) RewardsDistributionCount() (uint64, error) { return m.count, nil }

func (m *memState) RewardsDistributionSetCount(count uint64) error {
	m.count = count
	return nil
}

func (m *memState) RewardsUserGet(a crypto.Address) (*UserRewardState, bool, error) {
	user, ok := m.users[a.String()]
	if !ok {
		return nil, false, nil
	}
	return user.Clone(), true, nil
}

func (m *memState) RewardsUserPut(user *UserRewardState) error {
	m.users[user.Address.String()] = user.Clone()
	return nil
}

func (m *memState) RewardsHookGet(caller crypto.Address) ([]uint64, error) {
	return append([]uint64(nil), m.hooks[caller.String()]...), nil
}

func (m *memState) RewardsHookPut(caller crypto.Address, ids []uint64) error {
	if len(ids) == 0 {
		delete(m.hooks, caller.String())
		return nil
	}
	m.hooks[caller.String()] = append([]uint64(nil), ids...)
	return nil
}

func (m *memState) ContractVersionGet() (*ContractVersion, bool, error) {
	if m.version == nil {
		return nil, false, nil
	}
	clone := *m.version
	return &clone, true, nil
}

func (m *memState) ContractVersionPut(v *ContractVersion) error {
	clone := *v
	m.version = &clone
	return nil
}

type powerEntry struct {
	from  uint64
	power int64
}

// snapshotOracle makes a power change recorded at height h visible from h+1.
type snapshotOracle struct {
	contracts map[string]bool
	history   map[string][]powerEntry
	holders   []string
}

func newSnapshotOracle(contracts ...crypto.Address) *snapshotOracle {
	o := &snapshotOracle{contracts: make(map[string]bool), history: make(map[string][]powerEntry)}
	for _, c := range contracts {
		o.contracts[c.String()] = true
	}
	return o
}

func (o *snapshotOracle) set(height uint64, holder crypto.Address, power int64) {
	key := holder.String()
	if _, ok := o.history[key]; !ok {
		o.holders = append(o.holders, key)
	}
	o.history[key] = append(o.history[key], powerEntry{from: height + 1, power: power})
}

func (o *snapshotOracle) powerOf(key string, height uint64) int64 {
	var power int64
	for _, entry := range o.history[key] {
		if entry.from <= height {
			power = entry.power
		}
	}
	return power
}

func (o *snapshotOracle) TotalPowerAt(contract crypto.Address, height uint64) (*big.Int, error) {
	if !o.contracts[contract.String()] {
		return nil, fmt.Errorf("unknown voting power contract %s", contract)
	}
	total := big.NewInt(0)
	for _, key := range o.holders {
		total.Add(total, big.NewInt(o.powerOf(key, height)))
	}
	return total, nil
}

func (o *snapshotOracle) PowerAt(contract crypto.Address, holder crypto.Address, height uint64) (*big.Int, error) {
	if !o.contracts[contract.String()] {
		return nil, fmt.Errorf("unknown voting power contract %s", contract)
	}
	return big.NewInt(o.powerOf(holder.String(), height)), nil
}

type harness struct {
	t      *testing.T
	engine *Engine
	state  *memState
	oracle *snapshotOracle
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	state := newMemState()
	oracle := newSnapshotOracle(vpContract)
	engine := NewEngine()
	engine.SetState(state)
	engine.SetOracle(oracle)
	_, err := engine.Instantiate(common.MessageInfo{Sender: ownerAddr}, nil)
	require.NoError(t, err)
	return &harness{t: t, engine: engine, state: state, oracle: oracle}
}

// stake records a power change at height and notifies the engine like the
// staking contract would.
func (h *harness) stake(height uint64, name string, power int64) {
	h.t.Helper()
	h.oracle.set(height, addr(name), power)
	err := h.engine.StakeChanged(blockAt(height), common.MessageInfo{Sender: vpContract}, StakeChangedMsg{
		Action: ActionStake,
		Addr:   addr(name),
		Amount: big.NewInt(power),
	})
	require.NoError(h.t, err)
}

func (h *harness) create(height uint64, rate EmissionRate) *DistributionState {
	h.t.Helper()
	dist, err := h.engine.Create(blockAt(height), common.MessageInfo{Sender: ownerAddr}, CreateMsg{
		Denom:        bank.NativeDenom(testDenom),
		EmissionRate: rate,
		VPContract:   vpContract,
		HookCaller:   vpContract,
	})
	require.NoError(h.t, err)
	return dist
}

func (h *harness) fund(height, id uint64, amount int64) *DistributionState {
	h.t.Helper()
	dist, err := h.engine.FundNative(blockAt(height), common.MessageInfo{
		Sender: addr("funder"),
		Funds:  []common.Coin{common.NewCoin(testDenom, amount)},
	}, id)
	require.NoError(h.t, err)
	return dist
}

func (h *harness) pending(height uint64, name string, id uint64) int64 {
	h.t.Helper()
	amount, err := h.engine.PendingRewardsFor(blockAt(height), addr(name), id)
	require.NoError(h.t, err)
	return amount.Int64()
}

func (h *harness) claim(height uint64, name string, id uint64) int64 {
	h.t.Helper()
	transfer, err := h.engine.Claim(blockAt(height), common.MessageInfo{Sender: addr(name)}, id)
	require.NoError(h.t, err)
	require.True(h.t, transfer.Recipient.Equal(addr(name)))
	return transfer.Amount.Int64()
}

func perBlock(amount int64) EmissionRate {
	return Linear(big.NewInt(amount), common.Blocks(1), false)
}
