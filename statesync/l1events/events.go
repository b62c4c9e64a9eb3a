// Package l1events declares the L1 event and function ABI this engine
// consumes: the four log types emitted by the core/verifier/memory-page
// contracts, and the registerContinuousMemoryPage function whose calldata
// carries the actual diff bytes.
package l1events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures, matched against log.Topics[0].
var (
	SigStateUpdate        = crypto.Keccak256Hash([]byte("LogStateUpdate(uint256,int256,uint256)"))
	SigStateTransitionFact = crypto.Keccak256Hash([]byte("LogStateTransitionFact(bytes32)"))
	SigPagesHashes         = crypto.Keccak256Hash([]byte("LogMemoryPagesHashes(bytes32,bytes32[])"))
	SigPageFactContinuous  = crypto.Keccak256Hash([]byte("LogMemoryPageFactContinuous(bytes32,uint256,uint256)"))
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
	stateUpdateArgs          = mustArgs("uint256", "int256", "uint256")
	pagesHashesArgs          = mustArgs("bytes32[]")
	pageFactContinuousArgs   = mustArgs("uint256", "uint256")
	registerPageArgs         = mustArgs("uint256", "uint256[]", "uint256", "uint256", "uint256")
	registerPageMethodSig    = crypto.Keccak256([]byte("registerContinuousMemoryPage(uint256,uint256[],uint256,uint256,uint256)"))[:4]
)

// StateUpdate is the decoded body of a LogStateUpdate event.
type StateUpdate struct {
	GlobalRoot    *big.Int
	L2BlockNumber *big.Int // signed, per the int256 ABI type
	L2BlockHash   *big.Int
}

// DecodeStateUpdate unpacks a LogStateUpdate log's non-indexed data.
func DecodeStateUpdate(l types.Log) (StateUpdate, error) {
	vals, err := stateUpdateArgs.Unpack(l.Data)
	if err != nil {
		return StateUpdate{}, fmt.Errorf("decode LogStateUpdate: %w", err)
	}
	return StateUpdate{
		GlobalRoot:    vals[0].(*big.Int),
		L2BlockNumber: vals[1].(*big.Int),
		L2BlockHash:   vals[2].(*big.Int),
	}, nil
}

// StateTransitionFact is the decoded body of a LogStateTransitionFact
// event; `fact` is its single indexed topic.
func DecodeStateTransitionFact(l types.Log) (common.Hash, error) {
	if len(l.Topics) < 2 {
		return common.Hash{}, fmt.Errorf("decode LogStateTransitionFact: missing fact topic")
	}
	return l.Topics[1], nil
}

// PagesHashes is the decoded body of a LogMemoryPagesHashes event.
type PagesHashes struct {
	Fact        common.Hash
	PagesHashes []common.Hash
}

// DecodePagesHashes unpacks a LogMemoryPagesHashes log: `fact` is the
// indexed topic, `pagesHashes` the non-indexed dynamic array.
func DecodePagesHashes(l types.Log) (PagesHashes, error) {
	if len(l.Topics) < 2 {
		return PagesHashes{}, fmt.Errorf("decode LogMemoryPagesHashes: missing fact topic")
	}
	vals, err := pagesHashesArgs.Unpack(l.Data)
	if err != nil {
		return PagesHashes{}, fmt.Errorf("decode LogMemoryPagesHashes: %w", err)
	}
	raw := vals[0].([][32]byte)
	hashes := make([]common.Hash, len(raw))
	for i, h := range raw {
		hashes[i] = common.Hash(h)
	}
	return PagesHashes{Fact: l.Topics[1], PagesHashes: hashes}, nil
}

// PageFactContinuous is the decoded body of a LogMemoryPageFactContinuous
// event.
type PageFactContinuous struct {
	FactHash   common.Hash
	MemoryHash *big.Int
	Prod       *big.Int
}

// DecodePageFactContinuous unpacks a LogMemoryPageFactContinuous log:
// `factHash` is the indexed topic, `memoryHash`/`prod` are non-indexed.
func DecodePageFactContinuous(l types.Log) (PageFactContinuous, error) {
	if len(l.Topics) < 2 {
		return PageFactContinuous{}, fmt.Errorf("decode LogMemoryPageFactContinuous: missing factHash topic")
	}
	vals, err := pageFactContinuousArgs.Unpack(l.Data)
	if err != nil {
		return PageFactContinuous{}, fmt.Errorf("decode LogMemoryPageFactContinuous: %w", err)
	}
	return PageFactContinuous{
		FactHash:   l.Topics[1],
		MemoryHash: vals[0].(*big.Int),
		Prod:       vals[1].(*big.Int),
	}, nil
}

// DecodeRegisterContinuousMemoryPageCalldata decodes the calldata of a
// registerContinuousMemoryPage transaction and returns the `values`
// uint256[] argument, the diff bytes this page contributes.
func DecodeRegisterContinuousMemoryPageCalldata(data []byte) ([]*big.Int, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("decode registerContinuousMemoryPage: calldata too short")
	}
	vals, err := registerPageArgs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("decode registerContinuousMemoryPage: %w", err)
	}
	return vals[1].([]*big.Int), nil
}

// RegisterContinuousMemoryPageSelector returns the 4-byte function
// selector, exposed for tests that want to build synthetic calldata.
func RegisterContinuousMemoryPageSelector() []byte {
	return append([]byte(nil), registerPageMethodSig...)
}
