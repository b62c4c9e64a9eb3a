// Package diffdecode implements the Diff Decoder (component D): a
// bounds-checked stream cursor over a flat []*uint256.Int blob, and the two
// wire-format parsers (pre-0.11 and 0.11+) that walk it into a StateDiff.
// The cursor shape — take()/peek() over an explicit offset, every
// out-of-range access a typed error rather than a panic — follows this
// codebase's bounds-checked ABI stream reader idiom (solabi), adapted from
// a byte cursor to a word (uint256) cursor since the wire format here is a
// flat array of felts, not ABI-encoded bytes.
package diffdecode

import (
	"github.com/holiman/uint256"

	statesync "github.com/starksync/engine/statesync"
	"github.com/starksync/engine/statesync/ethtypes"
)

// cursor reads sequentially through a []*uint256.Int, erroring instead of
// panicking on out-of-range access.
type cursor struct {
	words  []*uint256.Int
	offset int
}

func newCursor(words []*uint256.Int) *cursor {
	return &cursor{words: words}
}

// take returns the word at the current offset and advances past it.
func (c *cursor) take() (*uint256.Int, error) {
	w, err := c.peek()
	if err != nil {
		return nil, err
	}
	c.offset++
	return w, nil
}

// peek returns the word at the current offset without advancing.
func (c *cursor) peek() (*uint256.Int, error) {
	if c.offset < 0 || c.offset >= len(c.words) {
		return nil, statesync.NewTypeError("diff decode: offset out of range")
	}
	return c.words[c.offset], nil
}

// advance moves the offset forward by one without reading, used after a
// peek() the caller already consumed logically.
func (c *cursor) advance() {
	c.offset++
}

// skip moves the offset forward by n words, used to skip constructor-args
// cells in the pre-0.11 format.
func (c *cursor) skip(n uint64) {
	c.offset += int(n)
}

// takeFelt reads one word and converts it to a Felt, rejecting values
// whose high 4 bits are set.
func (c *cursor) takeFelt() (ethtypes.Felt, error) {
	w, err := c.take()
	if err != nil {
		return ethtypes.Felt{}, err
	}
	f, err := ethtypes.FeltFromU256(w)
	if err != nil {
		return ethtypes.Felt{}, statesync.NewTypeError(err.Error())
	}
	return f, nil
}

// takeAddress reads a ContractAddress-shaped felt.
func (c *cursor) takeAddress() (ethtypes.ContractAddress, error) {
	f, err := c.takeFelt()
	return ethtypes.ContractAddress(f), err
}

// takeClassHash reads a ClassHash-shaped felt.
func (c *cursor) takeClassHash() (ethtypes.ClassHash, error) {
	f, err := c.takeFelt()
	return ethtypes.ClassHash(f), err
}

// takeUint64 reads one word and returns its low 64 bits, matching the
// Rust source's `.low_u64()` — StarkNet counts (num_storage_updates,
// num_contract_updates, ...) never need more than 64 bits.
func (c *cursor) takeUint64() (uint64, error) {
	w, err := c.take()
	if err != nil {
		return 0, err
	}
	return w.Uint64(), nil
}
