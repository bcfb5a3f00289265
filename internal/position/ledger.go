// Package position tracks liquidity positions and the fees owed to them.
package position

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/journal"
)

// ErrNoPosition is returned when poking a position that holds no liquidity.
var ErrNoPosition = errors.New("position has no liquidity")

// Key identifies a position: keccak256(owner ++ int24(tickLower) ++ int24(tickUpper)).
type Key common.Hash

// KeyOf derives the position key with the packed encoding of the on-chain pool.
func KeyOf(owner common.Address, tickLower, tickUpper int32) Key {
	buf := make([]byte, 0, common.AddressLength+6)
	buf = append(buf, owner.Bytes()...)
	buf = appendInt24(buf, tickLower)
	buf = appendInt24(buf, tickUpper)
	return Key(crypto.Keccak256Hash(buf))
}

func appendInt24(buf []byte, v int32) []byte {
	u := uint32(v) & 0xffffff
	return append(buf, byte(u>>16), byte(u>>8), byte(u))
}

// Hex returns the 0x-prefixed key.
func (k Key) Hex() string {
	return common.Hash(k).Hex()
}

// Info is the stored state of one position.
type Info struct {
	Liquidity                *uint256.Int
	FeeGrowthInside0LastX128 *uint256.Int
	FeeGrowthInside1LastX128 *uint256.Int
	TokensOwed0              *uint256.Int
	TokensOwed1              *uint256.Int
}

// EmptyInfo is the state of a position never touched.
func EmptyInfo() Info {
	return Info{
		Liquidity:                new(uint256.Int),
		FeeGrowthInside0LastX128: new(uint256.Int),
		FeeGrowthInside1LastX128: new(uint256.Int),
		TokensOwed0:              new(uint256.Int),
		TokensOwed1:              new(uint256.Int),
	}
}

// Clone returns a deep copy.
func (i Info) Clone() Info {
	return Info{
		Liquidity:                new(uint256.Int).Set(i.Liquidity),
		FeeGrowthInside0LastX128: new(uint256.Int).Set(i.FeeGrowthInside0LastX128),
		FeeGrowthInside1LastX128: new(uint256.Int).Set(i.FeeGrowthInside1LastX128),
		TokensOwed0:              new(uint256.Int).Set(i.TokensOwed0),
		TokensOwed1:              new(uint256.Int).Set(i.TokensOwed1),
	}
}

// IsEmpty reports whether the position holds nothing at all.
func (i Info) IsEmpty() bool {
	return i.Liquidity.IsZero() && i.TokensOwed0.IsZero() && i.TokensOwed1.IsZero()
}

// Entry is a stored position together with its identity.
type Entry struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Info      Info
}

// Key returns the entry's position key.
func (e Entry) Key() Key {
	return KeyOf(e.Owner, e.TickLower, e.TickUpper)
}

// Ledger holds every position of a pool, journaled until Reset.
type Ledger struct {
	positions map[Key]Entry
	log       journal.Journal[Key, Entry]
}

func NewLedger() *Ledger {
	return &Ledger{positions: make(map[Key]Entry)}
}

// Get returns a copy of the position. Unknown positions are empty.
func (l *Ledger) Get(owner common.Address, tickLower, tickUpper int32) Info {
	entry, ok := l.positions[KeyOf(owner, tickLower, tickUpper)]
	if !ok {
		return EmptyInfo()
	}
	return entry.Info.Clone()
}

// Update credits the fees earned since the last touch, applies liquidityDelta and
// snapshots the fee growth inside the range.
func (l *Ledger) Update(
	owner common.Address,
	tickLower int32,
	tickUpper int32,
	liquidityDelta *big.Int,
	feeGrowthInside0X128 *uint256.Int,
	feeGrowthInside1X128 *uint256.Int,
) (Info, error) {
	info := l.Get(owner, tickLower, tickUpper)

	var liquidityNext *uint256.Int
	if liquidityDelta.Sign() == 0 {
		if info.Liquidity.IsZero() {
			return Info{}, ErrNoPosition
		}
		liquidityNext = info.Liquidity
	} else {
		next, err := fixedpoint.AddDelta(info.Liquidity, liquidityDelta)
		if err != nil {
			return Info{}, fmt.Errorf("position liquidity: %w", err)
		}
		liquidityNext = next
	}

	owed0, err := feesOwed(feeGrowthInside0X128, info.FeeGrowthInside0LastX128, info.Liquidity)
	if err != nil {
		return Info{}, err
	}
	owed1, err := feesOwed(feeGrowthInside1X128, info.FeeGrowthInside1LastX128, info.Liquidity)
	if err != nil {
		return Info{}, err
	}

	tokensOwed0, err := addUint128(info.TokensOwed0, owed0)
	if err != nil {
		return Info{}, fmt.Errorf("tokens owed0: %w", err)
	}
	tokensOwed1, err := addUint128(info.TokensOwed1, owed1)
	if err != nil {
		return Info{}, fmt.Errorf("tokens owed1: %w", err)
	}

	info.Liquidity = liquidityNext
	info.FeeGrowthInside0LastX128 = new(uint256.Int).Set(feeGrowthInside0X128)
	info.FeeGrowthInside1LastX128 = new(uint256.Int).Set(feeGrowthInside1X128)
	info.TokensOwed0 = tokensOwed0
	info.TokensOwed1 = tokensOwed1

	l.put(Entry{Owner: owner, TickLower: tickLower, TickUpper: tickUpper, Info: info})
	return info.Clone(), nil
}

// Credit adds withdrawn principal to what the position is owed.
func (l *Ledger) Credit(owner common.Address, tickLower, tickUpper int32, amount0, amount1 *uint256.Int) error {
	if amount0.IsZero() && amount1.IsZero() {
		return nil
	}
	info := l.Get(owner, tickLower, tickUpper)

	owed0, err := addUint128(info.TokensOwed0, amount0)
	if err != nil {
		return fmt.Errorf("credit owed0: %w", err)
	}
	owed1, err := addUint128(info.TokensOwed1, amount1)
	if err != nil {
		return fmt.Errorf("credit owed1: %w", err)
	}
	info.TokensOwed0 = owed0
	info.TokensOwed1 = owed1
	l.put(Entry{Owner: owner, TickLower: tickLower, TickUpper: tickUpper, Info: info})
	return nil
}

// Collect pays out up to the requested amounts from what the position is owed.
// Zero requests leave the ledger untouched.
func (l *Ledger) Collect(
	owner common.Address,
	tickLower int32,
	tickUpper int32,
	requested0 *uint256.Int,
	requested1 *uint256.Int,
) (*uint256.Int, *uint256.Int) {
	info := l.Get(owner, tickLower, tickUpper)

	amount0 := minUint(requested0, info.TokensOwed0)
	amount1 := minUint(requested1, info.TokensOwed1)
	if amount0.IsZero() && amount1.IsZero() {
		return amount0, amount1
	}

	info.TokensOwed0 = new(uint256.Int).Sub(info.TokensOwed0, amount0)
	info.TokensOwed1 = new(uint256.Int).Sub(info.TokensOwed1, amount1)
	l.put(Entry{Owner: owner, TickLower: tickLower, TickUpper: tickUpper, Info: info})
	return amount0, amount1
}

// Set installs a position without journaling. Used when loading from a store.
func (l *Ledger) Set(entry Entry) {
	entry.Info = entry.Info.Clone()
	l.positions[entry.Key()] = entry
}

// Lookup returns the stored entry for key.
func (l *Ledger) Lookup(key Key) (Entry, bool) {
	entry, ok := l.positions[key]
	if !ok {
		return Entry{}, false
	}
	entry.Info = entry.Info.Clone()
	return entry, true
}

// Entries returns all positions ordered by key.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.positions))
	for _, entry := range l.positions {
		entry.Info = entry.Info.Clone()
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().Hex() < out[j].Key().Hex()
	})
	return out
}

// Touched returns the keys written since the last Reset.
func (l *Ledger) Touched() []Key {
	return l.log.Keys()
}

// Revert restores all positions written since the last Reset.
func (l *Ledger) Revert() {
	l.log.Revert(func(key Key, entry Entry, existed bool) {
		if !existed {
			delete(l.positions, key)
			return
		}
		l.positions[key] = entry
	})
}

// Reset drops the journal.
func (l *Ledger) Reset() {
	l.log.Reset()
}

func (l *Ledger) put(entry Entry) {
	key := entry.Key()
	old, ok := l.positions[key]
	if ok {
		old.Info = old.Info.Clone()
	}
	l.log.Record(key, old, ok)
	l.positions[key] = entry
}

// feesOwed returns (inside - last) * liquidity / 2^128 with wrapping subtraction.
func feesOwed(inside, last, liquidity *uint256.Int) (*uint256.Int, error) {
	delta := new(uint256.Int).Sub(inside, last)
	owed, err := fixedpoint.MulDiv(delta, liquidity, fixedpoint.Q128)
	if err != nil {
		return nil, fmt.Errorf("fees owed: %w", err)
	}
	return owed, nil
}

func addUint128(a, b *uint256.Int) (*uint256.Int, error) {
	sum := new(uint256.Int).Add(a, b)
	if sum.Gt(fixedpoint.MaxUint128) {
		return nil, fmt.Errorf("%s plus %s: %w", a.Dec(), b.Dec(), fixedpoint.ErrArithmeticOverflow)
	}
	return sum, nil
}

func minUint(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
