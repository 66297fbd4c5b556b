package state

import (
	"errors"
	"fmt"
	"math"

	"daorewards/storage"
)

// StateVersion is the record layout this binary writes.
//
//	1  initial rewards, staking rewards and mass distribution records
//	2  epoch records carry the unallocated immediate funding balance
const StateVersion uint32 = 2

// readableVersions are older layouts whose records decode unchanged under the
// current shapes, so opening them only restamps the version.
var readableVersions = map[uint32]bool{1: true}

var (
	schemaVersionKey = []byte("rewardsd/schema-version")

	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// SetStateVersion stages version in the overlay; it lands with the next Commit.
func (m *Manager) SetStateVersion(version uint32) error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	return m.KVPut(schemaVersionKey, uint64(version))
}

// StateVersion returns the stamped layout version, if any.
func (m *Manager) StateVersion() (uint32, bool, error) {
	if m == nil {
		return 0, false, fmt.Errorf("state: manager unavailable")
	}
	var stored uint64
	ok, err := m.KVGet(schemaVersionKey, &stored)
	if err != nil || !ok {
		return 0, ok, err
	}
	if stored > math.MaxUint32 {
		return 0, false, fmt.Errorf("state: schema version %d out of range", stored)
	}
	return uint32(stored), true, nil
}

// EnsureStateVersion stamps a fresh database and upgrades readable older
// layouts in place. Any other version is refused unless allowMigrate is set,
// in which case the stamp is left for the migrate command to rewrite.
func EnsureStateVersion(db storage.Database, allowMigrate bool) error {
	if db == nil {
		return fmt.Errorf("state: database must not be nil")
	}
	manager := NewManager(db)
	version, ok, err := manager.StateVersion()
	if err != nil {
		return err
	}
	switch {
	case ok && version == StateVersion:
		return nil
	case !ok, readableVersions[version]:
		if err := manager.SetStateVersion(StateVersion); err != nil {
			return err
		}
		return manager.Commit()
	case allowMigrate:
		return nil
	default:
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
	}
}
