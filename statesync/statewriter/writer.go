// Package statewriter implements the State Writer (component F): it
// flattens a decoded StateDiff into namespaced key/value entries, commits
// them as a single batch against the shared goleveldb store, synthesizes
// the next shadow L2 header through a Backend, and advances the persisted
// sync cursor. The column-prefix-per-domain layout mirrors this
// codebase's database abstraction in op-node, adapted from block/receipt
// columns to the four StarkNet state namespaces.
package statewriter

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/starksync/engine/statesync/ethtypes"
	"github.com/starksync/engine/statesync/kvstore"
)

// Writer applies FetchState mutations to the shared store, synthesizes the
// shadow L2 header through backend, and tracks the sync cursor. It
// implements syncdriver.Writer and syncdriver.Cursor. backend may be nil,
// in which case header synthesis is skipped and only the raw namespace
// mutations and cursor are written.
type Writer struct {
	log     log.Logger
	store   *kvstore.Store
	backend Backend
}

func New(l log.Logger, store *kvstore.Store, backend Backend) *Writer {
	return &Writer{log: l, store: store, backend: backend}
}

const cursorKey = "cursor"

// Apply translates one FetchState's StateDiff into the four key
// namespaces and commits them as a single leveldb batch.
func (w *Writer) Apply(ctx context.Context, fs ethtypes.FetchState) error {
	b := kvstore.NewBatch()
	diff := fs.Diff

	diff.DeployedContracts.Range(func(addr ethtypes.ContractAddress, class ethtypes.ClassHash) bool {
		b.Put(kvstore.ColumnStateContractClass, addr[:], class[:])
		return true
	})
	diff.ReplacedClasses.Range(func(addr ethtypes.ContractAddress, class ethtypes.ClassHash) bool {
		b.Put(kvstore.ColumnStateContractClass, addr[:], class[:])
		return true
	})
	diff.Nonces.Range(func(addr ethtypes.ContractAddress, nonce ethtypes.Nonce) bool {
		b.Put(kvstore.ColumnStateNonce, addr[:], nonce[:])
		return true
	})
	diff.DeclaredClasses.Range(func(class ethtypes.ClassHash, decl ethtypes.DeclaredClass) bool {
		b.Put(kvstore.ColumnStateCompiledClass, class[:], decl.CompiledClassHash[:])
		return true
	})
	diff.StorageDiffs.Range(func(addr ethtypes.ContractAddress, slots *ethtypes.OrderedMap[ethtypes.StorageKey, ethtypes.Felt]) bool {
		slots.Range(func(slot ethtypes.StorageKey, value ethtypes.Felt) bool {
			b.Put(kvstore.ColumnStateStorage, storageKey(addr, slot), value[:])
			return true
		})
		return true
	})

	if err := w.store.Write(b); err != nil {
		w.log.Error("state writer: batch commit failed", "l2_block", fs.Mapping.L2BlockNumber, "err", err)
		return err
	}

	if w.backend != nil {
		if err := w.advanceHeader(ctx, fs); err != nil {
			w.log.Error("state writer: header synthesis failed", "l2_block", fs.Mapping.L2BlockNumber, "err", err)
			return err
		}
	}
	return nil
}

// advanceHeader synthesizes the next shadow L2 header: parent = current
// best, block_number = best.Number+1, state_root = the overlay applied to
// the root at best (begin_state_operation in the original's terms), then
// commits it through the Backend (set_block_data → commit).
func (w *Writer) advanceHeader(ctx context.Context, fs ethtypes.FetchState) error {
	best, ok, err := w.backend.BestHeader(ctx)
	if err != nil {
		return err
	}

	var parentHash common.Hash
	var parentRoot ethtypes.Felt
	number := fs.Mapping.L2BlockNumber
	if ok {
		parentHash = best.Hash()
		parentRoot = best.StateRoot
		number = best.Number + 1
	}

	next := &Header{
		ParentHash: parentHash,
		Number:     number,
		StateRoot:  computeStateRoot(parentRoot, fs.Diff),
	}
	return w.backend.WriteHeader(ctx, next)
}

// storageKey concatenates the contract address with the storage slot to
// form the (address, storage_key) composite identity used within the
// storage column.
func storageKey(addr ethtypes.ContractAddress, slot ethtypes.StorageKey) []byte {
	out := make([]byte, 64)
	copy(out[:32], addr[:])
	copy(out[32:], slot[:])
	return out
}

// Load returns the persisted cursor, or ok=false if none has ever been
// written.
func (w *Writer) Load(ctx context.Context) (ethtypes.L1L2BlockMapping, bool, error) {
	v, ok, err := w.store.Get(kvstore.ColumnMeta, []byte(cursorKey))
	if err != nil || !ok {
		return ethtypes.L1L2BlockMapping{}, false, err
	}
	m, err := decodeMapping(v)
	if err != nil {
		return ethtypes.L1L2BlockMapping{}, false, err
	}
	return m, true, nil
}

// Store persists m as the new cursor.
func (w *Writer) Store(ctx context.Context, m ethtypes.L1L2BlockMapping) error {
	return w.store.Put(kvstore.ColumnMeta, []byte(cursorKey), encodeMapping(m))
}

// encodeMapping/decodeMapping give L1L2BlockMapping a fixed 80-byte wire
// form: 32-byte L1 hash, 8-byte L1 number, 32-byte L2 hash, 8-byte L2
// number (signed, stored as its bit pattern).
func encodeMapping(m ethtypes.L1L2BlockMapping) []byte {
	out := make([]byte, 80)
	copy(out[0:32], m.L1BlockHash[:])
	binary.BigEndian.PutUint64(out[32:40], m.L1BlockNumber)
	if m.L2BlockHash != nil {
		copy(out[40:72], m.L2BlockHash.Bytes32()[:])
	}
	binary.BigEndian.PutUint64(out[72:80], uint64(m.L2BlockNumber))
	return out
}

func decodeMapping(raw []byte) (ethtypes.L1L2BlockMapping, error) {
	if len(raw) != 80 {
		return ethtypes.L1L2BlockMapping{}, errShortMapping
	}
	var m ethtypes.L1L2BlockMapping
	m.L1BlockHash = common.BytesToHash(raw[0:32])
	m.L1BlockNumber = binary.BigEndian.Uint64(raw[32:40])
	m.L2BlockHash = new(uint256.Int).SetBytes(raw[40:72])
	m.L2BlockNumber = int64(binary.BigEndian.Uint64(raw[72:80]))
	return m, nil
}

var errShortMapping = shortMappingError{}

type shortMappingError struct{}

func (shortMappingError) Error() string { return "statewriter: malformed cursor record" }
