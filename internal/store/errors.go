package store

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrStoreClosed   = errors.New("entity store is closed")
	ErrTxnDone       = errors.New("transaction already committed or discarded")
)
