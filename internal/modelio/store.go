package modelio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"colormix/internal/gmm"
)

var modelsBucket = []byte("models")

// ErrNotFound is returned by Store.Get for an unknown name.
var ErrNotFound = errors.New("modelio: no models stored under that name")

// Store keeps named foreground/background model pairs in a bbolt database,
// one msgpack-encoded Pair per key.
type Store struct {
	db *bolt.DB
}

// OpenStore opens or creates the store at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(modelsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores fg and bg under name, replacing any earlier pair.
func (s *Store) Put(name string, fg, bg *gmm.Model) error {
	if name == "" {
		return fmt.Errorf("empty model name")
	}
	data, err := MarshalPair(NewPair(fg, bg))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(modelsBucket).Put([]byte(name), data)
	})
}

// Get loads the pair stored under name.
func (s *Store) Get(name string) (fg, bg *gmm.Model, err error) {
	var p Pair
	err = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(modelsBucket).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		// data is only valid inside the transaction; decoding copies it.
		p, err = UnmarshalPair(data)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return p.Models()
}

// Delete removes the pair stored under name. Unknown names are ignored.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(modelsBucket).Delete([]byte(name))
	})
}

// Names returns the stored names in key order.
func (s *Store) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(modelsBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}
