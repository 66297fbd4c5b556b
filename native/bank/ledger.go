package bank

import (
	"fmt"
	"math/big"
	"sort"

	"daorewards/crypto"
)

// Ledger is a minimal balance book used by the CLI and tests to apply the
// transfer instructions produced by the engines. It is not a general token
// implementation.
type Ledger struct {
	balances map[string]map[string]*big.Int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]map[string]*big.Int)}
}

// Balance returns a copy of the holder's balance in denom.
func (l *Ledger) Balance(holder crypto.Address, denom Denom) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	byDenom, ok := l.balances[holder.String()]
	if !ok {
		return big.NewInt(0)
	}
	bal, ok := byDenom[denom.String()]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// Mint credits holder with amount of denom.
func (l *Ledger) Mint(holder crypto.Address, amount *big.Int, denom Denom) error {
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	l.adjust(holder, denom, amount)
	return nil
}

// Move transfers amount of denom between two holders.
func (l *Ledger) Move(from crypto.Address, t Transfer) error {
	if t.Amount == nil || t.Amount.Sign() < 0 {
		return errInvalidAmount
	}
	if t.Amount.Sign() == 0 {
		return nil
	}
	bal := l.Balance(from, t.Denom)
	if bal.Cmp(t.Amount) < 0 {
		return fmt.Errorf("%w: %s holds %s%s, needs %s", errInsufficient, from, bal, t.Denom, t.Amount)
	}
	l.adjust(from, t.Denom, new(big.Int).Neg(t.Amount))
	l.adjust(t.Recipient, t.Denom, t.Amount)
	return nil
}

// Holders lists the addresses holding a non-zero balance of denom in
// lexicographic order.
func (l *Ledger) Holders(denom Denom) []string {
	holders := make([]string, 0, len(l.balances))
	for holder, byDenom := range l.balances {
		if bal, ok := byDenom[denom.String()]; ok && bal.Sign() > 0 {
			holders = append(holders, holder)
		}
	}
	sort.Strings(holders)
	return holders
}

func (l *Ledger) adjust(holder crypto.Address, denom Denom, delta *big.Int) {
	if l.balances == nil {
		l.balances = make(map[string]map[string]*big.Int)
	}
	key := holder.String()
	byDenom, ok := l.balances[key]
	if !ok {
		byDenom = make(map[string]*big.Int)
		l.balances[key] = byDenom
	}
	bal, ok := byDenom[denom.String()]
	if !ok {
		bal = big.NewInt(0)
	}
	byDenom[denom.String()] = new(big.Int).Add(bal, delta)
}
