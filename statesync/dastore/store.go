// Package dastore implements the DA Store (component H): the pending-diff
// and L1-header bookkeeping the DA Publisher consumes, layered on the same
// shared goleveldb instance the State Writer uses. Column layout follows
// this codebase's own column-family conventions, here repurposed for
// StarkNet pending diffs instead of blocks/receipts.
package dastore

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/starksync/engine/statesync/kvstore"
)

// Store wraps the shared KV for the DA, L1_HEADER, and L1-header-by-hash
// columns.
type Store struct {
	kv *kvstore.Store
}

func New(kv *kvstore.Store) *Store { return &Store{kv: kv} }

const lastProvedBlockKey = "last_proved_block"

// PutPendingDiff records the encoded U256 words for blockHash awaiting
// publication, together with a freshly minted job id.
func (s *Store) PutPendingDiff(blockHash common.Hash, words []*uint256.Int) (uuid.UUID, error) {
	id := uuid.New()
	b := kvstore.NewBatch()
	b.Put(kvstore.ColumnDA, diffKey(blockHash), encodeWords(words))
	b.Put(kvstore.ColumnDA, jobKey(blockHash), id[:])
	if err := s.kv.Write(b); err != nil {
		return uuid.UUID{}, err
	}
	return id, nil
}

// PendingDiff returns the stored word slice for blockHash, if any.
func (s *Store) PendingDiff(blockHash common.Hash) ([]*uint256.Int, bool, error) {
	raw, ok, err := s.kv.Get(kvstore.ColumnDA, diffKey(blockHash))
	if err != nil || !ok {
		return nil, ok, err
	}
	return decodeWords(raw), true, nil
}

// JobID returns the job id minted for blockHash, if any.
func (s *Store) JobID(blockHash common.Hash) (uuid.UUID, bool, error) {
	raw, ok, err := s.kv.Get(kvstore.ColumnDA, jobKey(blockHash))
	if err != nil || !ok {
		return uuid.UUID{}, ok, err
	}
	id, err := uuid.FromBytes(raw)
	return id, err == nil, err
}

// DeletePendingDiff removes the diff and job-id entries for blockHash,
// called once publication is confirmed.
func (s *Store) DeletePendingDiff(blockHash common.Hash) error {
	b := kvstore.NewBatch()
	b.Delete(kvstore.ColumnDA, diffKey(blockHash))
	b.Delete(kvstore.ColumnDA, jobKey(blockHash))
	return s.kv.Write(b)
}

// SetLastProvedBlock records the most recently confirmed DA block hash.
func (s *Store) SetLastProvedBlock(blockHash common.Hash) error {
	return s.kv.Put(kvstore.ColumnDA, []byte(lastProvedBlockKey), blockHash[:])
}

func (s *Store) LastProvedBlock() (common.Hash, bool, error) {
	raw, ok, err := s.kv.Get(kvstore.ColumnDA, []byte(lastProvedBlockKey))
	if err != nil || !ok {
		return common.Hash{}, ok, err
	}
	return common.BytesToHash(raw), true, nil
}

// L1StarknetHead is the locally-cached L1 header for a StarkNet-relevant
// block, indexed both by number and, via a secondary index, by hash.
type L1StarknetHead struct {
	BlockNumber uint64
	BlockHash   common.Hash
	ParentHash  common.Hash
}

// PutHeader stores head under both the primary (by number) and secondary
// (hash→number) index.
func (s *Store) PutHeader(head L1StarknetHead) error {
	b := kvstore.NewBatch()
	b.Put(kvstore.ColumnL1Header, numKey(head.BlockNumber), encodeHeader(head))
	b.Put(kvstore.ColumnL1HeaderByHash, head.BlockHash[:], numKey(head.BlockNumber))
	return s.kv.Write(b)
}

func (s *Store) HeaderByNumber(n uint64) (L1StarknetHead, bool, error) {
	raw, ok, err := s.kv.Get(kvstore.ColumnL1Header, numKey(n))
	if err != nil || !ok {
		return L1StarknetHead{}, ok, err
	}
	return decodeHeader(raw), true, nil
}

func (s *Store) HeaderByHash(h common.Hash) (L1StarknetHead, bool, error) {
	numRaw, ok, err := s.kv.Get(kvstore.ColumnL1HeaderByHash, h[:])
	if err != nil || !ok {
		return L1StarknetHead{}, ok, err
	}
	return s.HeaderByNumber(binary.BigEndian.Uint64(numRaw))
}

func diffKey(h common.Hash) []byte { return append([]byte("diff:"), h[:]...) }
func jobKey(h common.Hash) []byte  { return append([]byte("job:"), h[:]...) }

func numKey(n uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, n)
	return out
}

func encodeWords(words []*uint256.Int) []byte {
	out := make([]byte, len(words)*32)
	for i, w := range words {
		b := w.Bytes32()
		copy(out[i*32:(i+1)*32], b[:])
	}
	return out
}

func decodeWords(raw []byte) []*uint256.Int {
	n := len(raw) / 32
	out := make([]*uint256.Int, n)
	for i := 0; i < n; i++ {
		out[i] = new(uint256.Int).SetBytes(raw[i*32 : (i+1)*32])
	}
	return out
}

func encodeHeader(h L1StarknetHead) []byte {
	out := make([]byte, 8+32+32)
	binary.BigEndian.PutUint64(out[0:8], h.BlockNumber)
	copy(out[8:40], h.BlockHash[:])
	copy(out[40:72], h.ParentHash[:])
	return out
}

func decodeHeader(raw []byte) L1StarknetHead {
	return L1StarknetHead{
		BlockNumber: binary.BigEndian.Uint64(raw[0:8]),
		BlockHash:   common.BytesToHash(raw[8:40]),
		ParentHash:  common.BytesToHash(raw[40:72]),
	}
}
