package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"daorewards/crypto"
)

var (
	errInvalidDenom  = errors.New("bank: invalid denom")
	errInvalidAmount = errors.New("bank: amount must be positive")
	errInsufficient  = errors.New("bank: insufficient balance")
)

// DenomKind tags the two kinds of assets the engines can pay out.
type DenomKind uint8

const (
	DenomNative DenomKind = iota + 1
	DenomToken
)

// Denom is either a native currency code or the address of a fungible token
// contract.
type Denom struct {
	Kind   DenomKind
	Native string
	Token  crypto.Address
}

// NativeDenom returns a native currency denom.
func NativeDenom(code string) Denom {
	return Denom{Kind: DenomNative, Native: strings.TrimSpace(code)}
}

// TokenDenom returns a fungible token contract denom.
func TokenDenom(contract crypto.Address) Denom {
	return Denom{Kind: DenomToken, Token: contract}
}

// Validate ensures the denom is well formed.
func (d Denom) Validate() error {
	switch d.Kind {
	case DenomNative:
		if d.Native == "" {
			return fmt.Errorf("%w: native denom must not be empty", errInvalidDenom)
		}
		if strings.ContainsAny(d.Native, " \t\n") {
			return fmt.Errorf("%w: native denom %q contains whitespace", errInvalidDenom, d.Native)
		}
		return nil
	case DenomToken:
		if d.Token.IsZero() {
			return fmt.Errorf("%w: token contract address required", errInvalidDenom)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", errInvalidDenom, d.Kind)
	}
}

// IsNative reports whether the denom is a native currency.
func (d Denom) IsNative() bool { return d.Kind == DenomNative }

// Equal compares two denoms.
func (d Denom) Equal(other Denom) bool {
	if d.Kind != other.Kind {
		return false
	}
	switch d.Kind {
	case DenomNative:
		return d.Native == other.Native
	case DenomToken:
		return d.Token.Equal(other.Token)
	default:
		return true
	}
}

// String renders the denom the way it is reported in events: the native code
// or the token contract address.
func (d Denom) String() string {
	switch d.Kind {
	case DenomNative:
		return d.Native
	case DenomToken:
		return d.Token.String()
	default:
		return ""
	}
}

// Transfer is an instruction to move Amount of Denom from the engine's balance
// to Recipient. Engines only produce instructions; the host applies them.
type Transfer struct {
	Recipient crypto.Address
	Amount    *big.Int
	Denom     Denom
}

// NewTransfer validates and builds a transfer instruction.
func NewTransfer(recipient crypto.Address, amount *big.Int, denom Denom) (*Transfer, error) {
	if recipient.IsZero() {
		return nil, fmt.Errorf("bank: transfer recipient required")
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, errInvalidAmount
	}
	if err := denom.Validate(); err != nil {
		return nil, err
	}
	return &Transfer{Recipient: recipient, Amount: new(big.Int).Set(amount), Denom: denom}, nil
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s%s -> %s", t.Amount, t.Denom, t.Recipient)
}
