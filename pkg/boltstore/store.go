// Package boltstore persists the world and its mysteries in a bbolt file.
// The game works on an in-memory cache; every change is written through.
package boltstore

import (
	"fmt"
	"log"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	bbolt "go.etcd.io/bbolt"
)

const importBatch = 1000

type Store struct {
	bolt  *bbolt.DB
	cache *gamedb.Database
}

// worldMeta is the database header kept under meta/world.
type worldMeta struct {
	Version  int
	Size     int
	NextAttr int
}

// Open opens or creates the bolt file at path with every bucket present.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: %w", err)
	}
	return &Store{bolt: db, cache: gamedb.NewDatabase()}, nil
}

func (s *Store) Close() error {
	if s.bolt == nil {
		return nil
	}
	return s.bolt.Close()
}

// DB returns the in-memory world.
func (s *Store) DB() *gamedb.Database { return s.cache }

func (s *Store) Path() string {
	if s.bolt == nil {
		return ""
	}
	return s.bolt.Path()
}

// put gob-encodes v under key in bucket.
func (s *Store) put(bucket, key []byte, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put(key, data)
	})
}

func (s *Store) remove(bucket, key []byte) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

// scan decodes every value in bucket and hands it to fn with its key.
func scan[T any](tx *bbolt.Tx, bucket []byte, fn func(k []byte, v *T) error) error {
	return tx.Bucket(bucket).ForEach(func(k, raw []byte) error {
		v, err := decode[T](raw)
		if err != nil {
			return fmt.Errorf("%s/%x: %w", bucket, k, err)
		}
		return fn(k, v)
	})
}

func (s *Store) PutObject(obj *gamedb.Object) error {
	return s.PutObjects(obj)
}

// PutObjects writes several objects in one transaction, skipping nils.
// Moves touch the mover and both containers, so they go together.
func (s *Store) PutObjects(objs ...*gamedb.Object) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		for _, obj := range objs {
			if obj == nil {
				continue
			}
			data, err := encode(obj)
			if err != nil {
				return fmt.Errorf("boltstore: encode #%d: %w", obj.DBRef, err)
			}
			if err := b.Put(refToKey(obj.DBRef), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteObject(ref gamedb.DBRef) error {
	return s.remove(bucketObjects, refToKey(ref))
}

// PutAttrDef records a user-defined attribute name.
func (s *Store) PutAttrDef(def *gamedb.AttrDef) error {
	if err := s.put(bucketAttrDefs, intToKey(def.Number), def); err != nil {
		return fmt.Errorf("boltstore: attr def %s: %w", def.Name, err)
	}
	return nil
}

// PutMeta writes the cache's version and counters.
func (s *Store) PutMeta() error {
	m := worldMeta{Version: s.cache.Version, Size: s.cache.Size, NextAttr: s.cache.NextAttr}
	if err := s.put(bucketMeta, keyWorld, &m); err != nil {
		return fmt.Errorf("boltstore: meta: %w", err)
	}
	return nil
}

// Import replaces the cache with db and writes all of it out. Used once to
// seed a fresh file.
func (s *Store) Import(db *gamedb.Database) error {
	s.cache = db
	if err := s.PutMeta(); err != nil {
		return err
	}
	for _, def := range db.AttrNames {
		if err := s.PutAttrDef(def); err != nil {
			return err
		}
	}

	refs := slices.Sorted(maps.Keys(db.Objects))
	for chunk := range slices.Chunk(refs, importBatch) {
		objs := make([]*gamedb.Object, len(chunk))
		for i, ref := range chunk {
			objs[i] = db.Objects[ref]
		}
		if err := s.PutObjects(objs...); err != nil {
			return fmt.Errorf("boltstore: import: %w", err)
		}
	}
	for _, ref := range db.Players() {
		if err := s.UpdatePlayerIndex(db.Objects[ref], ""); err != nil {
			return fmt.Errorf("boltstore: index %s: %w", db.Objects[ref].Name, err)
		}
	}
	log.Printf("boltstore: imported %d objects, %d attr defs", len(refs), len(db.AttrNames))
	return nil
}

// LoadAll fills the cache from disk.
func (s *Store) LoadAll() error {
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket(bucketMeta).Get(keyWorld); raw != nil {
			m, err := decode[worldMeta](raw)
			if err != nil {
				return fmt.Errorf("meta: %w", err)
			}
			s.cache.Version, s.cache.Size, s.cache.NextAttr = m.Version, m.Size, m.NextAttr
		}
		err := scan(tx, bucketAttrDefs, func(_ []byte, def *gamedb.AttrDef) error {
			s.cache.AddAttrDef(def.Number, def.Name, def.Flags)
			return nil
		})
		if err != nil {
			return err
		}
		return scan(tx, bucketObjects, func(_ []byte, obj *gamedb.Object) error {
			s.cache.Objects[obj.DBRef] = obj
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("boltstore: load: %w", err)
	}
	log.Printf("boltstore: loaded %d objects, %d attr defs", len(s.cache.Objects), len(s.cache.AttrNames))
	return nil
}

// Backup writes a consistent copy of the file to path while the game runs.
func (s *Store) Backup(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("boltstore: backup: %w", err)
	}
	defer f.Close()
	err = s.bolt.View(func(tx *bbolt.Tx) error {
		_, err := tx.WriteTo(f)
		return err
	})
	if err != nil {
		return fmt.Errorf("boltstore: backup %s: %w", path, err)
	}
	log.Printf("boltstore: backup written to %s", path)
	return nil
}

// UpdatePlayerIndex points the lowercased name of obj at its ref, dropping
// oldName first when the player was renamed. Non-players and destroyed
// players are only removed.
func (s *Store) UpdatePlayerIndex(obj *gamedb.Object, oldName string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPlayers)
		if oldName != "" {
			if err := b.Delete(playerKey(oldName)); err != nil {
				return err
			}
		}
		if !obj.IsCharacter() {
			return nil
		}
		return b.Put(playerKey(obj.Name), refToKey(obj.DBRef))
	})
}

func playerKey(name string) []byte { return []byte(strings.ToLower(name)) }

// LookupPlayer resolves a name through the player index.
func (s *Store) LookupPlayer(name string) (gamedb.DBRef, bool) {
	var raw []byte
	s.bolt.View(func(tx *bbolt.Tx) error {
		raw = slices.Clone(tx.Bucket(bucketPlayers).Get(playerKey(name)))
		return nil
	})
	if raw == nil {
		return gamedb.Nothing, false
	}
	return keyToRef(raw), true
}

// HasData reports whether any object has been written.
func (s *Store) HasData() bool {
	var n int
	s.bolt.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketObjects).Stats().KeyN
		return nil
	})
	return n > 0
}
