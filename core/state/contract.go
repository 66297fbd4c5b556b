package state

import (
	"fmt"
	"strconv"

	"daorewards/crypto"
	"daorewards/native/common"
	"daorewards/native/massdist"
	"daorewards/native/rewards"
	"daorewards/native/stakerewards"
)

var (
	contractPrefix      = []byte("contract")
	ownershipSuffix     = []byte("ownership")
	versionSuffix       = []byte("version")
	distributionPrefix  = []byte("rewards/distribution")
	distributionCounter = []byte("rewards/count")
	rewardsUserPrefix   = []byte("rewards/user")
	rewardsHookPrefix   = []byte("rewards/hook")
	stakeConfigSuffix   = []byte("stakerewards/config")
	stakeStateSuffix    = []byte("stakerewards/state")
	stakeUserPrefix     = []byte("stakerewards/user")
	massDistSuffix      = []byte("massdist/weights")
)

// ContractStore is the namespaced view of a single engine instance. Every key
// it writes is prefixed with the contract address so several engines can share
// one Manager.
type ContractStore struct {
	manager *Manager
	address crypto.Address
}

// Contract returns the store for the engine deployed at addr.
func (m *Manager) Contract(addr crypto.Address) *ContractStore {
	return &ContractStore{manager: m, address: addr}
}

// Address returns the contract address the store is bound to.
func (c *ContractStore) Address() crypto.Address { return c.address }

func (c *ContractStore) key(parts ...[]byte) []byte {
	all := append([][]byte{contractPrefix, []byte(c.address.String())}, parts...)
	return joinKey(all...)
}

func idKey(id uint64) []byte {
	return []byte(strconv.FormatUint(id, 10))
}

func addrKey(addr crypto.Address) []byte {
	return []byte(addr.String())
}

// GetOwnership implements common.OwnershipStore.
func (c *ContractStore) GetOwnership() (*common.Ownership, bool, error) {
	var record ownershipRecord
	ok, err := c.manager.KVGet(c.key(ownershipSuffix), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	ownership, err := record.ownership()
	if err != nil {
		return nil, false, err
	}
	return ownership, true, nil
}

// PutOwnership implements common.OwnershipStore.
func (c *ContractStore) PutOwnership(ownership *common.Ownership) error {
	if ownership == nil {
		return fmt.Errorf("state: nil ownership")
	}
	return c.manager.KVPut(c.key(ownershipSuffix), newOwnershipRecord(ownership))
}

func (c *ContractStore) ContractVersionGet() (*rewards.ContractVersion, bool, error) {
	var record versionRecord
	ok, err := c.manager.KVGet(c.key(versionSuffix), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &rewards.ContractVersion{Contract: record.Contract, Version: record.Version}, true, nil
}

func (c *ContractStore) ContractVersionPut(version *rewards.ContractVersion) error {
	if version == nil {
		return fmt.Errorf("state: nil contract version")
	}
	return c.manager.KVPut(c.key(versionSuffix), versionRecord{Contract: version.Contract, Version: version.Version})
}

func (c *ContractStore) RewardsDistributionGet(id uint64) (*rewards.DistributionState, bool, error) {
	var record distributionRecord
	ok, err := c.manager.KVGet(c.key(distributionPrefix, idKey(id)), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	dist, err := record.distribution()
	if err != nil {
		return nil, false, err
	}
	return dist, true, nil
}

func (c *ContractStore) RewardsDistributionPut(dist *rewards.DistributionState) error {
	if dist == nil {
		return fmt.Errorf("state: nil distribution")
	}
	return c.manager.KVPut(c.key(distributionPrefix, idKey(dist.ID)), newDistributionRecord(dist))
}

func (c *ContractStore) RewardsDistributionCount() (uint64, error) {
	var count uint64
	if _, err := c.manager.KVGet(c.key(distributionCounter), &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *ContractStore) RewardsDistributionSetCount(count uint64) error {
	return c.manager.KVPut(c.key(distributionCounter), count)
}

func (c *ContractStore) RewardsUserGet(addr crypto.Address) (*rewards.UserRewardState, bool, error) {
	var record userRecord
	ok, err := c.manager.KVGet(c.key(rewardsUserPrefix, addrKey(addr)), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	user, err := record.user()
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (c *ContractStore) RewardsUserPut(user *rewards.UserRewardState) error {
	if user == nil {
		return fmt.Errorf("state: nil user rewards")
	}
	return c.manager.KVPut(c.key(rewardsUserPrefix, addrKey(user.Address)), newUserRecord(user))
}

// RewardsHookGet returns the distribution ids subscribed to caller.
func (c *ContractStore) RewardsHookGet(caller crypto.Address) ([]uint64, error) {
	var ids []uint64
	if err := c.manager.KVGetList(c.key(rewardsHookPrefix, addrKey(caller)), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// RewardsHookPut replaces the subscription list of caller. An empty list
// removes the entry.
func (c *ContractStore) RewardsHookPut(caller crypto.Address, ids []uint64) error {
	key := c.key(rewardsHookPrefix, addrKey(caller))
	if len(ids) == 0 {
		return c.manager.KVDelete(key)
	}
	return c.manager.KVPut(key, ids)
}

func (c *ContractStore) StakeRewardsConfigGet() (*stakerewards.Config, bool, error) {
	var record stakeConfigRecord
	ok, err := c.manager.KVGet(c.key(stakeConfigSuffix), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	staking, err := record.StakingContract.address()
	if err != nil {
		return nil, false, err
	}
	denom, err := record.RewardDenom.denom()
	if err != nil {
		return nil, false, err
	}
	return &stakerewards.Config{StakingContract: staking, RewardDenom: denom}, true, nil
}

func (c *ContractStore) StakeRewardsConfigPut(cfg *stakerewards.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil staking rewards config")
	}
	return c.manager.KVPut(c.key(stakeConfigSuffix), stakeConfigRecord{
		StakingContract: newAddressRecord(cfg.StakingContract),
		RewardDenom:     newDenomRecord(cfg.RewardDenom),
	})
}

func (c *ContractStore) StakeRewardsStateGet() (*stakerewards.RewardState, bool, error) {
	var record stakeStateRecord
	ok, err := c.manager.KVGet(c.key(stakeStateSuffix), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record.state(), true, nil
}

func (c *ContractStore) StakeRewardsStatePut(st *stakerewards.RewardState) error {
	if st == nil {
		return fmt.Errorf("state: nil staking rewards state")
	}
	return c.manager.KVPut(c.key(stakeStateSuffix), newStakeStateRecord(st))
}

func (c *ContractStore) StakeRewardsUserGet(addr crypto.Address) (*stakerewards.UserState, bool, error) {
	var record stakeUserRecord
	ok, err := c.manager.KVGet(c.key(stakeUserPrefix, addrKey(addr)), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	holder, err := record.Address.address()
	if err != nil {
		return nil, false, err
	}
	return &stakerewards.UserState{
		Address:      holder,
		Pending:      nonNil(record.Pending),
		PerTokenPaid: u256FromBytes(record.PerTokenPaid),
	}, true, nil
}

func (c *ContractStore) StakeRewardsUserPut(user *stakerewards.UserState) error {
	if user == nil {
		return fmt.Errorf("state: nil staking rewards user")
	}
	return c.manager.KVPut(c.key(stakeUserPrefix, addrKey(user.Address)), stakeUserRecord{
		Address:      newAddressRecord(user.Address),
		Pending:      nonNil(user.Pending),
		PerTokenPaid: u256Bytes(user.PerTokenPaid),
	})
}

// MassDistWeights implements massdist.Store.
func (c *ContractStore) MassDistWeights() ([]massdist.Weight, error) {
	var records []weightRecord
	if err := c.manager.KVGetList(c.key(massDistSuffix), &records); err != nil {
		return nil, err
	}
	weights := make([]massdist.Weight, 0, len(records))
	for _, rec := range records {
		addr, err := rec.Address.address()
		if err != nil {
			return nil, err
		}
		weights = append(weights, massdist.Weight{Address: addr, Weight: u256FromBytes(rec.Weight)})
	}
	return weights, nil
}

// SetMassDistWeights implements massdist.Store.
func (c *ContractStore) SetMassDistWeights(weights []massdist.Weight) error {
	return c.manager.KVPut(c.key(massDistSuffix), newWeightRecords(weights))
}
