package tick

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
)

// Word is one 256-bit bitmap word, least significant limb first. Bit i of word w
// marks compressed tick w*256+i as initialized.
type Word [4]uint64

// IsZero reports whether no bit is set.
func (w Word) IsZero() bool {
	return w[0]|w[1]|w[2]|w[3] == 0
}

// Uint256 returns the word as a 256-bit integer.
func (w Word) Uint256() *uint256.Int {
	u := uint256.Int(w)
	return &u
}

// WordFromUint256 is the inverse of Word.Uint256.
func WordFromUint256(u *uint256.Int) Word {
	return Word(*u)
}

func (w Word) and(m Word) Word {
	return Word{w[0] & m[0], w[1] & m[1], w[2] & m[2], w[3] & m[3]}
}

func (w Word) mostSignificantBit() uint8 {
	for i := 3; i >= 0; i-- {
		if w[i] != 0 {
			return uint8(i*64 + 63 - bits.LeadingZeros64(w[i]))
		}
	}
	return 0
}

func (w Word) leastSignificantBit() uint8 {
	for i := 0; i < 4; i++ {
		if w[i] != 0 {
			return uint8(i*64 + bits.TrailingZeros64(w[i]))
		}
	}
	return 0
}

// maskAtOrBelow has bits [0, pos] set.
func maskAtOrBelow(pos uint8) Word {
	var m Word
	for i := 0; i < 4; i++ {
		lo := i * 64
		switch {
		case int(pos) >= lo+63:
			m[i] = ^uint64(0)
		case int(pos) >= lo:
			m[i] = (uint64(1) << uint(int(pos)-lo+1)) - 1
		}
	}
	return m
}

// maskAtOrAbove has bits [pos, 255] set.
func maskAtOrAbove(pos uint8) Word {
	if pos == 0 {
		return Word{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}
	}
	below := maskAtOrBelow(pos - 1)
	return Word{^below[0], ^below[1], ^below[2], ^below[3]}
}

func position(compressed int32) (int16, uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

func compress(tick, tickSpacing int32) int32 {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	return compressed
}

// Word returns the bitmap word at wordPos.
func (r *Registry) Word(wordPos int16) Word {
	return r.words[wordPos]
}

// SetWord installs a bitmap word without journaling. Used when loading from a store.
func (r *Registry) SetWord(wordPos int16, w Word) {
	if w.IsZero() {
		delete(r.words, wordPos)
		return
	}
	r.words[wordPos] = w
}

// FlipTick toggles the initialized bit of a tick.
func (r *Registry) FlipTick(tick, tickSpacing int32) error {
	if tick%tickSpacing != 0 {
		return fmt.Errorf("tick %d not a multiple of spacing %d", tick, tickSpacing)
	}
	wordPos, bitPos := position(tick / tickSpacing)

	old, ok := r.words[wordPos]
	r.wordLog.Record(wordPos, old, ok)

	w := old
	w[bitPos/64] ^= uint64(1) << (bitPos % 64)
	if w.IsZero() {
		delete(r.words, wordPos)
	} else {
		r.words[wordPos] = w
	}
	return nil
}

// NextInitializedTickWithinOneWord returns the next initialized tick in the same bitmap
// word as tick, searching left (lte, at or below tick) or right (strictly above tick).
// When nothing is initialized it returns the word boundary with initialized false.
func (r *Registry) NextInitializedTickWithinOneWord(tick, tickSpacing int32, lte bool) (int32, bool) {
	compressed := compress(tick, tickSpacing)

	if lte {
		wordPos, bitPos := position(compressed)
		masked := r.words[wordPos].and(maskAtOrBelow(bitPos))
		if masked.IsZero() {
			return (compressed - int32(bitPos)) * tickSpacing, false
		}
		return (compressed - int32(bitPos-masked.mostSignificantBit())) * tickSpacing, true
	}

	wordPos, bitPos := position(compressed + 1)
	masked := r.words[wordPos].and(maskAtOrAbove(bitPos))
	if masked.IsZero() {
		return (compressed + 1 + int32(255-bitPos)) * tickSpacing, false
	}
	return (compressed + 1 + int32(masked.leastSignificantBit()-bitPos)) * tickSpacing, true
}
