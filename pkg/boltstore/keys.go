package boltstore

import (
	"encoding/binary"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

var (
	bucketMeta      = []byte("meta")
	bucketObjects   = []byte("objects")
	bucketAttrDefs  = []byte("attrdefs")
	bucketPlayers   = []byte("players")   // lowercased name -> ref
	bucketMysteries = []byte("mysteries") // id -> gob mystery
	bucketClueObjs  = []byte("clueobjs")  // object ref -> placement
)

var allBuckets = [][]byte{
	bucketMeta, bucketObjects, bucketAttrDefs, bucketPlayers, bucketMysteries, bucketClueObjs,
}

var keyWorld = []byte("world")

// refToKey encodes ref as 8 big-endian bytes, offset so Nothing and the
// other negative refs sort before #0.
func refToKey(ref gamedb.DBRef) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(int64(ref)+1<<32))
}

func keyToRef(b []byte) gamedb.DBRef {
	return gamedb.DBRef(int64(binary.BigEndian.Uint64(b)) - 1<<32)
}

func intToKey(n int) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(n))
}
