package boltstore

import (
	"fmt"
	"log"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
	bbolt "go.etcd.io/bbolt"
)

// PutMystery writes a mystery with its clues, triggers and discoveries.
func (s *Store) PutMystery(m *mystery.Mystery) error {
	if err := s.put(bucketMysteries, intToKey(m.ID), m); err != nil {
		return fmt.Errorf("boltstore: mystery %d: %w", m.ID, err)
	}
	return nil
}

// DeleteMystery removes a mystery and every clue object placed for it.
func (s *Store) DeleteMystery(id int) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketMysteries).Delete(intToKey(id)); err != nil {
			return err
		}
		var stale [][]byte
		err := scan(tx, bucketClueObjs, func(k []byte, co *mystery.ClueObject) error {
			if co.MysteryID == id {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		b := tx.Bucket(bucketClueObjs)
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutClueObject records that an in-world object carries a clue.
func (s *Store) PutClueObject(co mystery.ClueObject) error {
	if err := s.put(bucketClueObjs, refToKey(co.Ref), &co); err != nil {
		return fmt.Errorf("boltstore: clue object #%d: %w", co.Ref, err)
	}
	return nil
}

func (s *Store) DeleteClueObject(ref gamedb.DBRef) error {
	return s.remove(bucketClueObjs, refToKey(ref))
}

// LoadMysteries installs every stored mystery and placement in reg.
func (s *Store) LoadMysteries(reg *mystery.Registry) error {
	var ms []*mystery.Mystery
	var placements []mystery.ClueObject
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		err := scan(tx, bucketMysteries, func(_ []byte, m *mystery.Mystery) error {
			ms = append(ms, m)
			return nil
		})
		if err != nil {
			return err
		}
		return scan(tx, bucketClueObjs, func(_ []byte, co *mystery.ClueObject) error {
			placements = append(placements, *co)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("boltstore: load mysteries: %w", err)
	}
	reg.Load(ms, placements)
	log.Printf("boltstore: loaded %d mysteries, %d clue objects", len(ms), len(placements))
	return nil
}
