package rewards

import (
	"fmt"

	"golang.org/x/mod/semver"

	"daorewards/native/common"
)

const (
	// ContractName identifies the distributor's stored state layout.
	ContractName = "dao-rewards-distributor"
	// ContractVersionString is the version written by Instantiate and Migrate.
	ContractVersionString = "2.6.0"
)

// SetVersion overrides the version the engine writes. Hosts use it when
// rolling a newer build over existing state.
func (e *Engine) SetVersion(version string) {
	if e == nil {
		return
	}
	e.version = version
}

// Migrate upgrades the stored contract version. The stored contract must be
// the distributor and the engine's version must be strictly newer.
func (e *Engine) Migrate(info common.MessageInfo) (*ContractVersion, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Nonpayable(info); err != nil {
		return nil, err
	}
	stored, ok, err := e.state.ContractVersionGet()
	if err != nil {
		return nil, err
	}
	if !ok || stored == nil {
		return nil, fmt.Errorf("%w: no contract version stored", ErrMigrationIncorrectContract)
	}
	if stored.Contract != ContractName {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrMigrationIncorrectContract, ContractName, stored.Contract)
	}
	next, current := canonicalVersion(e.version), canonicalVersion(stored.Version)
	if !semver.IsValid(next) || !semver.IsValid(current) {
		return nil, fmt.Errorf("%w: unparsable version %q or %q", ErrMigrationInvalidVersion, e.version, stored.Version)
	}
	if semver.Compare(next, current) <= 0 {
		return nil, fmt.Errorf("%w: new %s, current %s", ErrMigrationInvalidVersion, e.version, stored.Version)
	}
	updated := &ContractVersion{Contract: ContractName, Version: e.version}
	if err := e.state.ContractVersionPut(updated); err != nil {
		return nil, err
	}
	e.emit(ContractMigratedEvent(stored.Version, e.version))
	return updated, nil
}

func canonicalVersion(v string) string {
	if len(v) > 0 && v[0] == 'v' {
		return v
	}
	return "v" + v
}
