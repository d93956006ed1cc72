package store

import (
	"errors"

	bolt "go.etcd.io/bbolt"
)

const bucketVar = "var"

// ErrNoVar is returned by (*dbStore).Var when there is no such variable.
var ErrNoVar = errors.New("no such variable")

func init() {
	initDB["initialize variable table"] = func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketVar))
		return err
	}
}

// Var gets the value of a named variable.
func (s *dbStore) Var(n string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketVar))
		v := b.Get([]byte(n))
		if v == nil {
			return ErrNoVar
		}
		value = string(v)
		return nil
	})
	return value, err
}

// SetVar sets the value of a named variable.
func (s *dbStore) SetVar(n, v string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketVar))
		return b.Put([]byte(n), []byte(v))
	})
}

// DelVar deletes a named variable.
func (s *dbStore) DelVar(n string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketVar))
		return b.Delete([]byte(n))
	})
}
