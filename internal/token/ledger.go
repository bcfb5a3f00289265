// Package token is an in-memory balance book standing in for the token contracts a
// pool settles against.
package token

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger holds the balances of one token.
type Ledger struct {
	address common.Address
	symbol  string

	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
}

func NewLedger(address common.Address, symbol string) *Ledger {
	return &Ledger{
		address:  address,
		symbol:   symbol,
		balances: make(map[common.Address]*uint256.Int),
	}
}

func (l *Ledger) Address() common.Address {
	return l.address
}

func (l *Ledger) Symbol() string {
	return l.symbol
}

// Mint credits amount to holder out of thin air.
func (l *Ledger) Mint(holder common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, overflow := new(uint256.Int).AddOverflow(l.balance(holder), amount)
	if overflow {
		return fmt.Errorf("mint %s %s to %s: balance overflow", amount.Dec(), l.symbol, holder.Hex())
	}
	l.balances[holder] = next
	return nil
}

// BalanceOf returns a copy of holder's balance.
func (l *Ledger) BalanceOf(holder common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.balance(holder))
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fromBalance := l.balance(from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("transfer %s %s from %s (balance %s): %w",
			amount.Dec(), l.symbol, from.Hex(), fromBalance.Dec(), ErrInsufficientBalance)
	}
	l.balances[from] = new(uint256.Int).Sub(fromBalance, amount)
	l.balances[to] = new(uint256.Int).Add(l.balance(to), amount)
	return nil
}

// Holders returns every address with a nonzero balance, sorted.
func (l *Ledger) Holders() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]common.Address, 0, len(l.balances))
	for holder, balance := range l.balances {
		if !balance.IsZero() {
			out = append(out, holder)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

func (l *Ledger) balance(holder common.Address) *uint256.Int {
	if b, ok := l.balances[holder]; ok {
		return b
	}
	return new(uint256.Int)
}

// Bind returns a view of the ledger from holder's side, suitable as a pool vault.
func (l *Ledger) Bind(holder common.Address) *Account {
	return &Account{ledger: l, holder: holder}
}

// Account is one holder's balance in a Ledger.
type Account struct {
	ledger *Ledger
	holder common.Address
}

func (a *Account) Balance() (*uint256.Int, error) {
	return a.ledger.BalanceOf(a.holder), nil
}

// Transfer sends amount from the bound holder.
func (a *Account) Transfer(to common.Address, amount *uint256.Int) error {
	return a.ledger.Transfer(a.holder, to, amount)
}
