package ethtypes

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EthOrigin identifies the L1 location at which an L2 state update was
// observed: the block it landed in and the transaction within that block.
type EthOrigin struct {
	BlockHash   common.Hash
	BlockNumber uint64
	TxIndex     uint64
}

// StateUpdate is one LogStateUpdate event, carrying the L2 block it
// commits together with the L1 origin it was observed at.
type StateUpdate struct {
	Origin        EthOrigin
	GlobalRoot    *uint256.Int
	L2BlockNumber int64
	L2BlockHash   *uint256.Int
}

// L1L2BlockMapping is the persisted sync cursor: the highest L1/L2 block
// pair successfully processed. Both fields are monotone non-decreasing
// across successful writes.
type L1L2BlockMapping struct {
	L1BlockHash   common.Hash
	L1BlockNumber uint64
	L2BlockHash   *uint256.Int
	L2BlockNumber int64
}

// Advanced reports whether candidate is at least as advanced as m on both
// axes, used to decide whether a persisted cursor should win over a
// configured starting point.
func (m L1L2BlockMapping) Advanced(candidate L1L2BlockMapping) bool {
	return candidate.L1BlockNumber >= m.L1BlockNumber && candidate.L2BlockNumber >= m.L2BlockNumber
}

// StateDiff is the decoded payload, invariant in shape regardless of which
// wire format produced it.
type StateDiff struct {
	DeployedContracts         *OrderedMap[ContractAddress, ClassHash]
	Nonces                    *OrderedMap[ContractAddress, Nonce]
	StorageDiffs              *OrderedMap[ContractAddress, *OrderedMap[StorageKey, Felt]]
	DeclaredClasses           *OrderedMap[ClassHash, DeclaredClass]
	DeprecatedDeclaredClasses *OrderedMap[ClassHash, DeprecatedContractClass]
	ReplacedClasses           *OrderedMap[ContractAddress, ClassHash]
}

// DeclaredClass pairs a class's compiled hash with its (possibly absent)
// body, mirroring the (CompiledClassHash, ContractClass) tuple values of
// the declared_classes map.
type DeclaredClass struct {
	CompiledClassHash CompiledClassHash
	Class             *ContractClass
}

// NewStateDiff returns a StateDiff with every inner map initialized, ready
// for a decoder to populate.
func NewStateDiff() *StateDiff {
	return &StateDiff{
		DeployedContracts:         NewOrderedMap[ContractAddress, ClassHash](),
		Nonces:                    NewOrderedMap[ContractAddress, Nonce](),
		StorageDiffs:              NewOrderedMap[ContractAddress, *OrderedMap[StorageKey, Felt]](),
		DeclaredClasses:           NewOrderedMap[ClassHash, DeclaredClass](),
		DeprecatedDeclaredClasses: NewOrderedMap[ClassHash, DeprecatedContractClass](),
		ReplacedClasses:           NewOrderedMap[ContractAddress, ClassHash](),
	}
}

// storageDiffFor returns the per-contract storage map, creating it on
// first write so callers never need a nil check.
func (d *StateDiff) storageDiffFor(addr ContractAddress) *OrderedMap[StorageKey, Felt] {
	if m, ok := d.StorageDiffs.Get(addr); ok {
		return m
	}
	m := NewOrderedMap[StorageKey, Felt]()
	d.StorageDiffs.Set(addr, m)
	return m
}

// SetStorage records a single storage-slot write for addr.
func (d *StateDiff) SetStorage(addr ContractAddress, key StorageKey, value Felt) {
	d.storageDiffFor(addr).Set(key, value)
}

// FetchState is one L2 block's worth of reconstructed, decoded state: the
// cursor position it represents, the resulting state root, and the diff
// itself. It is built once by the fetcher, moved into the sync channel,
// and consumed by the writer — never shared.
type FetchState struct {
	Mapping       L1L2BlockMapping
	PostStateRoot *uint256.Int
	Diff          *StateDiff
}

// ByL2BlockNumber sorts a slice of FetchState ascending by L2 block number,
// the ordering the Sync Driver requires before handing a batch to the
// writer.
type ByL2BlockNumber []FetchState

func (b ByL2BlockNumber) Len() int      { return len(b) }
func (b ByL2BlockNumber) Swap(i, j int) { b[i], b[j] = b[j], b[i] }
func (b ByL2BlockNumber) Less(i, j int) bool {
	return b[i].Mapping.L2BlockNumber < b[j].Mapping.L2BlockNumber
}
