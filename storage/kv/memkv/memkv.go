// Package memkv implements the kv.DB interface with an in-process map. It
// fills the role storage/kv/leveldbkv fills in production, without
// requiring tests to depend on cgo-free-but-still-external goleveldb.
package memkv

import (
	"errors"
	"sort"
	"sync"

	"github.com/prefixhashtree/pht-go/storage/kv"
)

var errNotFound = errors.New("[memkv] key not found")

type memkv struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns a kv.DB backed by an in-memory map.
func New() kv.DB {
	return &memkv{data: make(map[string][]byte)}
}

func (db *memkv) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.data[string(key)]
	if !ok {
		return nil, errNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (db *memkv) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	db.data[string(key)] = v
	return nil
}

func (db *memkv) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

func (db *memkv) NewBatch() kv.Batch {
	return &memBatch{}
}

func (db *memkv) Write(b kv.Batch) error {
	mb, ok := b.(*memBatch)
	if !ok {
		return errors.New("memkv.Write: not a *memBatch")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, op := range mb.ops {
		if op.delete {
			delete(db.data, op.key)
			continue
		}
		db.data[op.key] = op.value
	}
	return nil
}

func (db *memkv) NewIterator(rg *kv.Range) kv.Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	keys := make([]string, 0, len(db.data))
	for k := range db.data {
		if inRange(rg, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	it := &memIterator{db: db, keys: keys, pos: -1}
	return it
}

func inRange(rg *kv.Range, key string) bool {
	if rg == nil {
		return true
	}
	if rg.Start != nil && key < string(rg.Start) {
		return false
	}
	if rg.Limit != nil && key >= string(rg.Limit) {
		return false
	}
	return true
}

func (db *memkv) Close() error { return nil }

func (db *memkv) ErrNotFound() error { return errNotFound }

type batchOp struct {
	key    string
	value  []byte
	delete bool
}

type memBatch struct {
	ops []batchOp
}

func (b *memBatch) Reset() { b.ops = b.ops[:0] }

func (b *memBatch) Put(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	b.ops = append(b.ops, batchOp{key: string(key), value: v})
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: string(key), delete: true})
}

type memIterator struct {
	db   *memkv
	keys []string
	pos  int
}

func (it *memIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.pos])
}

func (it *memIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	it.db.mu.RLock()
	defer it.db.mu.RUnlock()
	return it.db.data[it.keys[it.pos]]
}

func (it *memIterator) First() bool {
	if len(it.keys) == 0 {
		return false
	}
	it.pos = 0
	return true
}

func (it *memIterator) Next() bool {
	if it.pos+1 >= len(it.keys) {
		it.pos = len(it.keys)
		return false
	}
	it.pos++
	return true
}

func (it *memIterator) Last() bool {
	if len(it.keys) == 0 {
		return false
	}
	it.pos = len(it.keys) - 1
	return true
}

func (it *memIterator) Release() {}

func (it *memIterator) Error() error { return nil }
