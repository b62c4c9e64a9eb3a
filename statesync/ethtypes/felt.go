// Package ethtypes holds the small, dependency-light data types shared across
// the state-sync engine: StarkNet field elements, L1 origins, and the
// decoded state-diff shape. Nothing here performs I/O.
package ethtypes

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Felt is a 252-bit StarkNet field element, serialized as 32-byte
// big-endian. The high 4 bits of the first byte are always zero: StarkNet's
// prime is just under 2^252, so any value using bit 252 or above is invalid.
type Felt [32]byte

// highNibbleMask isolates the top 4 bits of a 32-byte big-endian value.
const highNibbleMask = 0xf0

// FeltFromU256 converts a uint256 word into a Felt, rejecting values whose
// top 4 bits are set.
func FeltFromU256(v *uint256.Int) (Felt, error) {
	var f Felt
	b := v.Bytes32()
	if b[0]&highNibbleMask != 0 {
		return Felt{}, fmt.Errorf("felt overflow: high nibble set in %x", b)
	}
	f = b
	return f, nil
}

// U256 reinterprets the felt as a uint256 word.
func (f Felt) U256() *uint256.Int {
	return new(uint256.Int).SetBytes(f[:])
}

func (f Felt) String() string {
	return fmt.Sprintf("0x%x", f[:])
}

// IsZero reports whether every byte of the felt is zero.
func (f Felt) IsZero() bool {
	return f == Felt{}
}

// ContractAddress, ClassHash, CompiledClassHash, Nonce, and StorageKey are
// all 252-bit felts wearing different hats; distinct named types keep the
// ordered maps below from being typo-swapped at call sites.
type (
	ContractAddress   Felt
	ClassHash         Felt
	CompiledClassHash Felt
	Nonce             Felt
	StorageKey        Felt
)

func (a ContractAddress) String() string   { return Felt(a).String() }
func (c ClassHash) String() string         { return Felt(c).String() }
func (c CompiledClassHash) String() string { return Felt(c).String() }
func (n Nonce) String() string             { return Felt(n).String() }
func (k StorageKey) String() string        { return Felt(k).String() }

// ContractClass is intentionally opaque: the engine never needs to
// interpret the class body, only to carry it across the declared_classes
// map. A richer node would hang the Sierra/Cairo program here.
type ContractClass struct {
	Raw []byte
}

// DeprecatedContractClass mirrors ContractClass for classes declared before
// Cairo 1.0 (no Sierra program, legacy ABI shape).
type DeprecatedContractClass struct {
	Raw []byte
}
