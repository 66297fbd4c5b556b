package common

import (
	"errors"

	"daorewards/crypto"
)

var (
	ErrNoOwner            = errors.New("ownership: contract ownership has been renounced")
	ErrNotOwner           = errors.New("ownership: caller is not the contract's current owner")
	ErrTransferNotFound   = errors.New("ownership: no pending ownership transfer")
	ErrNotPendingOwner    = errors.New("ownership: caller is not the pending owner")
	ErrTransferExpired    = errors.New("ownership: ownership transfer expired")
	ErrNilOwnershipStore  = errors.New("ownership: store not configured")
	ErrUnknownOwnerAction = errors.New("ownership: unknown action")
)

// Ownership is the two-step owner record. A nominated PendingOwner only takes
// over after accepting before PendingExpiry.
type Ownership struct {
	Owner         crypto.Address
	PendingOwner  crypto.Address
	PendingExpiry Expiration
}

// OwnershipStore persists the single ownership record of a contract.
type OwnershipStore interface {
	GetOwnership() (*Ownership, bool, error)
	PutOwnership(*Ownership) error
}

// OwnerActionKind enumerates the ownership transitions.
type OwnerActionKind uint8

const (
	ActionTransferOwnership OwnerActionKind = iota + 1
	ActionAcceptOwnership
	ActionRenounceOwnership
	ActionRevokeTransfer
)

// OwnerAction requests an ownership transition. NewOwner and Expiry are only
// read for ActionTransferOwnership.
type OwnerAction struct {
	Kind     OwnerActionKind
	NewOwner crypto.Address
	Expiry   Expiration
}

// InitializeOwner stores owner as the current owner with no pending transfer.
func InitializeOwner(store OwnershipStore, owner crypto.Address) (*Ownership, error) {
	if store == nil {
		return nil, ErrNilOwnershipStore
	}
	ownership := &Ownership{Owner: owner}
	if err := store.PutOwnership(ownership); err != nil {
		return nil, err
	}
	return ownership, nil
}

// GetOwnership loads the ownership record, returning an empty record when the
// contract was never initialised.
func GetOwnership(store OwnershipStore) (*Ownership, error) {
	if store == nil {
		return nil, ErrNilOwnershipStore
	}
	ownership, ok, err := store.GetOwnership()
	if err != nil {
		return nil, err
	}
	if !ok || ownership == nil {
		return &Ownership{}, nil
	}
	return ownership, nil
}

// AssertOwner fails unless sender is the current owner.
func AssertOwner(store OwnershipStore, sender crypto.Address) error {
	ownership, err := GetOwnership(store)
	if err != nil {
		return err
	}
	return ownership.AssertOwner(sender)
}

// AssertOwner fails unless sender is the current owner.
func (o *Ownership) AssertOwner(sender crypto.Address) error {
	if o == nil || o.Owner.IsZero() {
		return ErrNoOwner
	}
	if !o.Owner.Equal(sender) {
		return ErrNotOwner
	}
	return nil
}

// UpdateOwnership applies action on behalf of sender and persists the result.
func UpdateOwnership(store OwnershipStore, block BlockInfo, sender crypto.Address, action OwnerAction) (*Ownership, error) {
	ownership, err := GetOwnership(store)
	if err != nil {
		return nil, err
	}
	switch action.Kind {
	case ActionTransferOwnership:
		if err := ownership.AssertOwner(sender); err != nil {
			return nil, err
		}
		if action.Expiry.IsExpired(block) {
			return nil, ErrTransferExpired
		}
		ownership.PendingOwner = action.NewOwner
		ownership.PendingExpiry = action.Expiry
	case ActionAcceptOwnership:
		if ownership.PendingOwner.IsZero() {
			return nil, ErrTransferNotFound
		}
		if !ownership.PendingOwner.Equal(sender) {
			return nil, ErrNotPendingOwner
		}
		if ownership.PendingExpiry.IsExpired(block) {
			return nil, ErrTransferExpired
		}
		ownership.Owner = ownership.PendingOwner
		ownership.PendingOwner = crypto.Address{}
		ownership.PendingExpiry = NeverExpires()
	case ActionRenounceOwnership:
		if err := ownership.AssertOwner(sender); err != nil {
			return nil, err
		}
		ownership = &Ownership{}
	case ActionRevokeTransfer:
		if err := ownership.AssertOwner(sender); err != nil {
			return nil, err
		}
		if ownership.PendingOwner.IsZero() {
			return nil, ErrTransferNotFound
		}
		ownership.PendingOwner = crypto.Address{}
		ownership.PendingExpiry = NeverExpires()
	default:
		return nil, ErrUnknownOwnerAction
	}
	if err := store.PutOwnership(ownership); err != nil {
		return nil, err
	}
	return ownership, nil
}
