// Package kvstore is the single goleveldb instance backing both the State
// Writer's translated state mutations and the DA Store's columns. Columns
// are namespaces implemented as a one-byte key prefix, the same
// column-as-prefix convention used throughout this codebase's op-node
// database layers.
package kvstore

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Column identifies a key namespace within the shared store.
type Column byte

const (
	ColumnStateNonce         Column = 0x01
	ColumnStateStorage       Column = 0x02
	ColumnStateContractClass Column = 0x03
	ColumnStateCompiledClass Column = 0x04
	ColumnDA                 Column = 0x10
	ColumnL1Header           Column = 0x11
	ColumnL1HeaderByHash     Column = 0x12
	ColumnL2Header           Column = 0x13
	ColumnMeta               Column = 0x20
)

// Store wraps a goleveldb handle. All keys written through it are namespaced
// by a Column prefix so unrelated concerns never collide in one physical DB.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) the goleveldb instance at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb at %s", path)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func key(col Column, k []byte) []byte {
	out := make([]byte, 1+len(k))
	out[0] = byte(col)
	copy(out[1:], k)
	return out
}

func (s *Store) Get(col Column, k []byte) ([]byte, bool, error) {
	v, err := s.db.Get(key(col, k), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) Put(col Column, k, v []byte) error {
	return s.db.Put(key(col, k), v, nil)
}

// Iterator returns a goleveldb iterator ranging over every key in col.
func (s *Store) Iterator(col Column) iterator.Iterator {
	return s.db.NewIterator(util.BytesPrefix([]byte{byte(col)}), nil)
}

// Batch accumulates writes across one or more columns for atomic commit.
type Batch struct {
	b *leveldb.Batch
}

func NewBatch() *Batch { return &Batch{b: new(leveldb.Batch)} }

func (b *Batch) Put(col Column, k, v []byte) {
	b.b.Put(key(col, k), v)
}

func (b *Batch) Delete(col Column, k []byte) {
	b.b.Delete(key(col, k))
}

func (s *Store) Write(b *Batch) error {
	return s.db.Write(b.b, nil)
}
