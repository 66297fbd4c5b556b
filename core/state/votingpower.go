package state

import (
	"daorewards/crypto"
	"daorewards/native/votingpower"
)

var (
	vpContractPrefix = []byte("votingpower/contract")
	vpHolderPrefix   = []byte("votingpower/holder")
	vpTotalPrefix    = []byte("votingpower/total")
)

func (m *Manager) VotingPowerContractExists(contract crypto.Address) (bool, error) {
	return m.KVGet(joinKey(vpContractPrefix, addrKey(contract)), nil)
}

func (m *Manager) VotingPowerContractPut(contract crypto.Address) error {
	return m.KVPut(joinKey(vpContractPrefix, addrKey(contract)), true)
}

func (m *Manager) VotingPowerHistory(contract, holder crypto.Address) ([]votingpower.Checkpoint, error) {
	var records []checkpointRecord
	if err := m.KVGetList(joinKey(vpHolderPrefix, addrKey(contract), addrKey(holder)), &records); err != nil {
		return nil, err
	}
	return checkpoints(records), nil
}

func (m *Manager) VotingPowerHistoryPut(contract, holder crypto.Address, history []votingpower.Checkpoint) error {
	return m.KVPut(joinKey(vpHolderPrefix, addrKey(contract), addrKey(holder)), newCheckpointRecords(history))
}

func (m *Manager) VotingPowerTotalHistory(contract crypto.Address) ([]votingpower.Checkpoint, error) {
	var records []checkpointRecord
	if err := m.KVGetList(joinKey(vpTotalPrefix, addrKey(contract)), &records); err != nil {
		return nil, err
	}
	return checkpoints(records), nil
}

func (m *Manager) VotingPowerTotalHistoryPut(contract crypto.Address, history []votingpower.Checkpoint) error {
	return m.KVPut(joinKey(vpTotalPrefix, addrKey(contract)), newCheckpointRecords(history))
}
