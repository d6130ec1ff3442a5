package db

// KVStore is the ordered key-value storage every persistent record of the
// protocol lives in: entities, ledger balances and their indexes.
type KVStore interface {
	Reader
	Writer
	NewBatch() Batch
	NewIterator(start, end []byte) (Iterator, error)
	Close() error
}

type Reader interface {
	// Get returns the value stored under key, or an error wrapping the
	// implementation's not-found sentinel.
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Batch represents an atomic batch of operations.
// Either every staged write becomes visible on Commit or none does.
type Batch interface {
	Writer
	Commit() error
	Close() error
}

// Iterator provides sequential access over a range of key-value pairs in
// ascending key order. Iterators must be closed after use.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	Close() error
}
