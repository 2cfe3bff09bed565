package database

import (
	"bytes"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/trie"
)

// Table is the range of keys that share a prefix. It persists trie leaves.
type Table struct {
	db     *LDBDatabase
	prefix []byte
}

// Table returns the key range with the prefix.
func (db *LDBDatabase) Table(prefix string) *Table {
	return &Table{db: db, prefix: []byte(prefix)}
}

func (t *Table) key(k hash.Hash32) []byte {
	return append(bytes.Clone(t.prefix), k[:]...)
}

// WriteBatch stores all entries in a single leveldb batch.
func (t *Table) WriteBatch(entries []trie.Entry) error {
	batch := new(leveldb.Batch)
	for _, e := range entries {
		batch.Put(t.key(e.Key), e.Value)
	}
	return t.db.Write(batch)
}

// Get returns the value stored under k.
func (t *Table) Get(k hash.Hash32) ([]byte, error) {
	return t.db.Get(t.key(k))
}

// Entries returns every entry of the table in key order.
func (t *Table) Entries() ([]trie.Entry, error) {
	var (
		entries []trie.Entry
		ierr    error
	)
	err := t.db.Iterate(t.prefix, func(key, value []byte) bool {
		k, err := hash.FromBytes(key[len(t.prefix):])
		if err != nil {
			ierr = fmt.Errorf("key %x: %w", key, err)
			return false
		}
		entries = append(entries, trie.Entry{Key: k, Value: bytes.Clone(value)})
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, ierr
}
