// Package dacontract encodes and decodes calldata for the two StarkNet
// core-contract variants the DA Publisher talks to. Selector/argument
// construction follows the same abi.Arguments pattern this codebase's
// l1events package uses for the read side.
package dacontract

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

func mustArgs(types_ ...string) abi.Arguments {
	args := make(abi.Arguments, len(types_))
	for i, t := range types_ {
		ty, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args[i] = abi.Argument{Type: ty}
	}
	return args
}

var (
	lastPublishedStateSelector = crypto.Keccak256([]byte("lastPublishedState()"))[:4]
	updateStateLegacySelector  = crypto.Keccak256([]byte("updateState(uint256[])"))[:4]
	updateStateLegacyArgs      = mustArgs("uint256[]")

	lastStateSelector  = crypto.Keccak256([]byte("LastState()"))[:4]
	lastStateRetArgs   = mustArgs("uint256", "uint256", "uint256")
	updateStateSelector = crypto.Keccak256([]byte("UpdateState(uint256[],uint256,uint256,uint256)"))[:4]
	updateStateArgs     = mustArgs("uint256[]", "uint256", "uint256", "uint256")
)

// LastPublishedStateCalldata returns the legacy lastPublishedState() call.
func LastPublishedStateCalldata() []byte { return append([]byte(nil), lastPublishedStateSelector...) }

// DecodeLastPublishedState unpacks the legacy lastPublishedState() return value.
func DecodeLastPublishedState(ret []byte) (*uint256.Int, error) {
	v := new(big.Int).SetBytes(ret)
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("decode lastPublishedState: value overflows u256")
	}
	return u, nil
}

// EncodeLegacyUpdateState builds updateState(felt[]) calldata from a flat
// felt array.
func EncodeLegacyUpdateState(felts []*uint256.Int) ([]byte, error) {
	vals := make([]*big.Int, len(felts))
	for i, f := range felts {
		vals[i] = f.ToBig()
	}
	packed, err := updateStateLegacyArgs.Pack(vals)
	if err != nil {
		return nil, fmt.Errorf("pack updateState(felt[]): %w", err)
	}
	return append(append([]byte(nil), updateStateLegacySelector...), packed...), nil
}

// LastStateCalldata returns the current-variant LastState() call.
func LastStateCalldata() []byte { return append([]byte(nil), lastStateSelector...) }

// DecodeLastState unpacks LastState()'s (global_root, block_number, block_hash).
func DecodeLastState(ret []byte) (globalRoot, blockNumber, blockHash *uint256.Int, err error) {
	vals, err := lastStateRetArgs.Unpack(ret)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decode LastState: %w", err)
	}
	gr, _ := uint256.FromBig(vals[0].(*big.Int))
	bn, _ := uint256.FromBig(vals[1].(*big.Int))
	bh, _ := uint256.FromBig(vals[2].(*big.Int))
	return gr, bn, bh, nil
}

// splitU256 halves a 256-bit value into its low and high 128-bit limbs, the
// low half first, matching the Cairo ABI's u256-as-two-u128s convention.
func splitU256(v *uint256.Int) (low, high *uint256.Int) {
	mask := new(uint256.Int).SetAllOne()
	mask.Rsh(mask, 128) // lower 128 bits set
	low = new(uint256.Int).And(v, mask)
	high = new(uint256.Int).Rsh(v, 128)
	return low, high
}

// EncodeUpdateState builds UpdateState(Array<u256>, u256, u256, u256)
// calldata. stateDiff is the full cell array INCLUDING the trailing
// (state_root, block_number, block_hash) triple, as the wire format keeps
// them appended to the same array rather than passed separately. The
// block_number slot (second from the end) is overwritten with
// nextBlockNumber before splitting, the known testnet-only shim.
func EncodeUpdateState(stateDiff []*uint256.Int, nextBlockNumber *uint256.Int) ([]byte, error) {
	if len(stateDiff) < 3 {
		return nil, fmt.Errorf("encode UpdateState: state diff shorter than the trailing triple")
	}
	cellCount := uint256.NewInt(uint64(len(stateDiff) - 3))

	shimmed := make([]*uint256.Int, len(stateDiff))
	copy(shimmed, stateDiff)
	shimmed[len(shimmed)-2] = nextBlockNumber

	words := make([]*big.Int, 0, 1+2*len(shimmed))
	words = append(words, cellCount.ToBig())
	for _, w := range shimmed {
		low, high := splitU256(w)
		words = append(words, low.ToBig(), high.ToBig())
	}

	root, blockNumber, blockHash := shimmed[len(shimmed)-3], shimmed[len(shimmed)-2], shimmed[len(shimmed)-1]
	packed, err := updateStateArgs.Pack(words, root.ToBig(), blockNumber.ToBig(), blockHash.ToBig())
	if err != nil {
		return nil, fmt.Errorf("pack UpdateState: %w", err)
	}
	return append(append([]byte(nil), updateStateSelector...), packed...), nil
}
