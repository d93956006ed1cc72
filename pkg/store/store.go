// Package store abstracts the persistent storage used by repld: the command
// history of its shells and a small bucket of named variables.
package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	. "src.repld.dev/pkg/store/storedefs"
)

// Registry of schema initialization steps, run in NewStoreFromDB. Keyed by a
// human-readable description used in the error message.
var initDB = map[string]func(*bolt.Tx) error{}

// DBStore is a Store backed by a database file.
type DBStore interface {
	Store
	Close() error
}

type dbStore struct {
	db *bolt.DB
}

// NewStore creates a new Store from the given file.
func NewStore(dbname string) (DBStore, error) {
	db, err := dbOpen(dbname)
	if err != nil {
		return nil, err
	}
	return NewStoreFromDB(db)
}

// NewStoreFromDB creates a new Store from a bolt DB.
func NewStoreFromDB(db *bolt.DB) (DBStore, error) {
	st := &dbStore{db: db}
	err := db.Update(func(tx *bolt.Tx) error {
		for name, fn := range initDB {
			err := fn(tx)
			if err != nil {
				return fmt.Errorf("failed to %s: %v", name, err)
			}
		}
		return nil
	})
	return st, err
}

func dbOpen(dbname string) (*bolt.DB, error) {
	return bolt.Open(dbname, 0o644, &bolt.Options{Timeout: time.Second})
}

func (s *dbStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
