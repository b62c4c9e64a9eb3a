package statewriter

import (
	"context"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/starksync/engine/statesync/ethtypes"
	"github.com/starksync/engine/statesync/kvstore"
)

// Header is a synthesized shadow L2 block header: parent hash, number, and
// a state-root commitment over the overlay applied at this block. This
// models the L2 chain as a shadow of the host chain.
type Header struct {
	ParentHash common.Hash
	Number     int64
	StateRoot  ethtypes.Felt
}

// Hash identifies a header by its fields, so the next header's parent
// pointer doesn't depend on how this one was stored.
func (h *Header) Hash() common.Hash {
	numBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(numBytes, uint64(h.Number))
	return crypto.Keccak256Hash(h.ParentHash[:], numBytes, h.StateRoot[:])
}

// Backend is the minimal view of the host chain the State Writer needs to
// synthesize shadow headers: best-block info, block-hash by number, and a
// place to commit the synthesized header. Re-expressed from the original's
// generic host-header/backend/client parameterization as one small
// interface, so the sync engine depends only on this rather than a
// concrete host database type.
type Backend interface {
	BestHeader(ctx context.Context) (*Header, bool, error)
	HeaderByNumber(ctx context.Context, number int64) (*Header, bool, error)
	WriteHeader(ctx context.Context, h *Header) error
}

const bestHeaderKey = "l2_best_header"

// kvBackend implements Backend on the same shared goleveldb store as the
// translated state mutations, rather than a second physical database.
type kvBackend struct {
	store *kvstore.Store
}

// NewKVBackend wraps store as a Backend for shadow header synthesis.
func NewKVBackend(store *kvstore.Store) Backend {
	return &kvBackend{store: store}
}

func (b *kvBackend) BestHeader(ctx context.Context) (*Header, bool, error) {
	v, ok, err := b.store.Get(kvstore.ColumnMeta, []byte(bestHeaderKey))
	if err != nil || !ok {
		return nil, false, err
	}
	h, err := decodeHeader(v)
	if err != nil {
		return nil, false, err
	}
	return h, true, nil
}

func (b *kvBackend) HeaderByNumber(ctx context.Context, number int64) (*Header, bool, error) {
	v, ok, err := b.store.Get(kvstore.ColumnL2Header, headerNumberKey(number))
	if err != nil || !ok {
		return nil, false, err
	}
	h, err := decodeHeader(v)
	if err != nil {
		return nil, false, err
	}
	return h, true, nil
}

func (b *kvBackend) WriteHeader(ctx context.Context, h *Header) error {
	batch := kvstore.NewBatch()
	enc := encodeHeader(h)
	batch.Put(kvstore.ColumnL2Header, headerNumberKey(h.Number), enc)
	batch.Put(kvstore.ColumnMeta, []byte(bestHeaderKey), enc)
	return b.store.Write(batch)
}

func headerNumberKey(number int64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(number))
	return out
}

// encodeHeader/decodeHeader give Header a fixed 72-byte wire form:
// 32-byte parent hash, 8-byte number, 32-byte state root.
func encodeHeader(h *Header) []byte {
	out := make([]byte, 72)
	copy(out[0:32], h.ParentHash[:])
	binary.BigEndian.PutUint64(out[32:40], uint64(h.Number))
	copy(out[40:72], h.StateRoot[:])
	return out
}

func decodeHeader(raw []byte) (*Header, error) {
	if len(raw) != 72 {
		return nil, errShortHeader
	}
	h := &Header{}
	h.ParentHash = common.BytesToHash(raw[0:32])
	h.Number = int64(binary.BigEndian.Uint64(raw[32:40]))
	copy(h.StateRoot[:], raw[40:72])
	return h, nil
}

var errShortHeader = shortHeaderError{}

type shortHeaderError struct{}

func (shortHeaderError) Error() string { return "statewriter: malformed header record" }

// computeStateRoot folds diff's entries onto parent in insertion order,
// producing the next shadow root. This is a commitment over the overlay,
// not a StarkNet Pedersen-hash Patricia-trie root: it gives the
// synthesized header a root that changes deterministically with state
// without pulling in a full trie implementation.
func computeStateRoot(parent ethtypes.Felt, diff *ethtypes.StateDiff) ethtypes.Felt {
	var buf []byte
	buf = append(buf, parent[:]...)

	diff.DeployedContracts.Range(func(addr ethtypes.ContractAddress, class ethtypes.ClassHash) bool {
		buf = append(buf, 'd')
		buf = append(buf, addr[:]...)
		buf = append(buf, class[:]...)
		return true
	})
	diff.ReplacedClasses.Range(func(addr ethtypes.ContractAddress, class ethtypes.ClassHash) bool {
		buf = append(buf, 'r')
		buf = append(buf, addr[:]...)
		buf = append(buf, class[:]...)
		return true
	})
	diff.Nonces.Range(func(addr ethtypes.ContractAddress, nonce ethtypes.Nonce) bool {
		buf = append(buf, 'n')
		buf = append(buf, addr[:]...)
		buf = append(buf, nonce[:]...)
		return true
	})
	diff.DeclaredClasses.Range(func(class ethtypes.ClassHash, decl ethtypes.DeclaredClass) bool {
		buf = append(buf, 'c')
		buf = append(buf, class[:]...)
		buf = append(buf, decl.CompiledClassHash[:]...)
		return true
	})
	diff.StorageDiffs.Range(func(addr ethtypes.ContractAddress, slots *ethtypes.OrderedMap[ethtypes.StorageKey, ethtypes.Felt]) bool {
		slots.Range(func(slot ethtypes.StorageKey, value ethtypes.Felt) bool {
			buf = append(buf, 's')
			buf = append(buf, addr[:]...)
			buf = append(buf, slot[:]...)
			buf = append(buf, value[:]...)
			return true
		})
		return true
	})

	sum := crypto.Keccak256(buf)
	sum[0] &^= 0xf0 // clear the high nibble so the digest is a valid Felt
	var f ethtypes.Felt
	copy(f[:], sum)
	return f
}
