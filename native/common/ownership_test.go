package common

import (
	"testing"

	"github.com/stretchr/testify/require"

	"daorewards/crypto"
)

type memOwnership struct {
	record *Ownership
}

func (m *memOwnership) GetOwnership() (*Ownership, bool, error) {
	if m.record == nil {
		return nil, false, nil
	}
	clone := *m.record
	return &clone, true, nil
}

func (m *memOwnership) PutOwnership(o *Ownership) error {
	clone := *o
	m.record = &clone
	return nil
}

func TestTwoStepOwnershipTransfer(t *testing.T) {
	store := &memOwnership{}
	owner := crypto.AddressFromName(crypto.DAOPrefix, "owner")
	nominee := crypto.AddressFromName(crypto.DAOPrefix, "nominee")
	block := BlockInfo{Height: 10, Time: 100}

	_, err := InitializeOwner(store, owner)
	require.NoError(t, err)
	require.NoError(t, AssertOwner(store, owner))
	require.ErrorIs(t, AssertOwner(store, nominee), ErrNotOwner)

	_, err = UpdateOwnership(store, block, nominee, OwnerAction{Kind: ActionTransferOwnership, NewOwner: nominee})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = UpdateOwnership(store, block, owner, OwnerAction{Kind: ActionAcceptOwnership})
	require.ErrorIs(t, err, ErrTransferNotFound)

	pending, err := UpdateOwnership(store, block, owner, OwnerAction{
		Kind:     ActionTransferOwnership,
		NewOwner: nominee,
		Expiry:   ExpiresAtHeight(20),
	})
	require.NoError(t, err)
	require.True(t, pending.PendingOwner.Equal(nominee))
	require.NoError(t, AssertOwner(store, owner))

	_, err = UpdateOwnership(store, block, owner, OwnerAction{Kind: ActionAcceptOwnership})
	require.ErrorIs(t, err, ErrNotPendingOwner)

	accepted, err := UpdateOwnership(store, block, nominee, OwnerAction{Kind: ActionAcceptOwnership})
	require.NoError(t, err)
	require.True(t, accepted.Owner.Equal(nominee))
	require.True(t, accepted.PendingOwner.IsZero())
	require.ErrorIs(t, AssertOwner(store, owner), ErrNotOwner)
}

func TestOwnershipTransferExpires(t *testing.T) {
	store := &memOwnership{}
	owner := crypto.AddressFromName(crypto.DAOPrefix, "owner")
	nominee := crypto.AddressFromName(crypto.DAOPrefix, "nominee")

	_, err := InitializeOwner(store, owner)
	require.NoError(t, err)

	_, err = UpdateOwnership(store, BlockInfo{Height: 30}, owner, OwnerAction{
		Kind: ActionTransferOwnership, NewOwner: nominee, Expiry: ExpiresAtHeight(20),
	})
	require.ErrorIs(t, err, ErrTransferExpired)

	_, err = UpdateOwnership(store, BlockInfo{Height: 10}, owner, OwnerAction{
		Kind: ActionTransferOwnership, NewOwner: nominee, Expiry: ExpiresAtHeight(20),
	})
	require.NoError(t, err)
	_, err = UpdateOwnership(store, BlockInfo{Height: 25}, nominee, OwnerAction{Kind: ActionAcceptOwnership})
	require.ErrorIs(t, err, ErrTransferExpired)
}

func TestRevokeAndRenounce(t *testing.T) {
	store := &memOwnership{}
	owner := crypto.AddressFromName(crypto.DAOPrefix, "owner")
	nominee := crypto.AddressFromName(crypto.DAOPrefix, "nominee")
	block := BlockInfo{Height: 1}

	_, err := InitializeOwner(store, owner)
	require.NoError(t, err)
	_, err = UpdateOwnership(store, block, owner, OwnerAction{Kind: ActionTransferOwnership, NewOwner: nominee})
	require.NoError(t, err)

	revoked, err := UpdateOwnership(store, block, owner, OwnerAction{Kind: ActionRevokeTransfer})
	require.NoError(t, err)
	require.True(t, revoked.PendingOwner.IsZero())

	_, err = UpdateOwnership(store, block, nominee, OwnerAction{Kind: ActionAcceptOwnership})
	require.ErrorIs(t, err, ErrTransferNotFound)

	_, err = UpdateOwnership(store, block, owner, OwnerAction{Kind: ActionRenounceOwnership})
	require.NoError(t, err)
	require.ErrorIs(t, AssertOwner(store, owner), ErrNoOwner)
}
