package common

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"daorewards/crypto"
)

var (
	ErrNoFunds        = errors.New("payment: no funds sent")
	ErrMultipleDenoms = errors.New("payment: sent more than one denomination")
	ErrMissingDenom   = errors.New("payment: must send reserve token")
	ErrNonPayable     = errors.New("payment: this message does not accept funds")
)

// Coin is a native token amount attached to a message.
type Coin struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

// NewCoin builds a coin from an int64 amount.
func NewCoin(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: big.NewInt(amount)}
}

func (c Coin) String() string {
	if c.Amount == nil {
		return "0" + c.Denom
	}
	return c.Amount.String() + c.Denom
}

// MessageInfo identifies the caller of an operation and the native funds
// attached to it.
type MessageInfo struct {
	Sender crypto.Address
	Funds  []Coin
}

// Nonpayable rejects messages carrying any funds.
func Nonpayable(info MessageInfo) error {
	if len(info.Funds) > 0 {
		return ErrNonPayable
	}
	return nil
}

// OneCoin returns the single non-zero coin attached to the message.
func OneCoin(info MessageInfo) (Coin, error) {
	switch len(info.Funds) {
	case 0:
		return Coin{}, ErrNoFunds
	case 1:
		coin := info.Funds[0]
		if coin.Amount == nil || coin.Amount.Sign() <= 0 {
			return Coin{}, ErrNoFunds
		}
		return coin, nil
	default:
		return Coin{}, ErrMultipleDenoms
	}
}

// MustPay returns the amount of the expected denom when exactly one coin of
// that denom and a positive amount is attached.
func MustPay(info MessageInfo, denom string) (*big.Int, error) {
	coin, err := OneCoin(info)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(coin.Denom) != denom {
		return nil, fmt.Errorf("%w: %s", ErrMissingDenom, denom)
	}
	return new(big.Int).Set(coin.Amount), nil
}
