// Package gamedb is the in-memory world: rooms, things, exits and
// characters linked by dbref, each carrying numbered attributes.
package gamedb

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// DBRef names an object. Negative values are sentinels.
type DBRef int

const Nothing DBRef = -1

type ObjectType int

const (
	TypeRoom   ObjectType = 0
	TypeThing  ObjectType = 1
	TypeExit   ObjectType = 2
	TypePlayer ObjectType = 3
)

var typeNames = map[ObjectType]string{
	TypeRoom:   "ROOM",
	TypeThing:  "THING",
	TypeExit:   "EXIT",
	TypePlayer: "PLAYER",
}

func (t ObjectType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// The low bits of the first flag word hold the object type.
const typeMask = 0x7

// First flag word.
const (
	FlagWizard  = 0x00000010
	FlagDark    = 0x00000040
	FlagGoing   = 0x00004000
	FlagRoyalty = 0x20000000
)

// Second flag word.
const (
	Flag2Storyteller = 0x00000100 // may run mysteries
	Flag2Connected   = 0x00000200
	Flag2ClueObject  = 0x00000400 // placed in the world to carry a clue
	Flag2Staff       = 0x10000000
)

type Attribute struct {
	Number int
	Value  string
}

// AttrDef is a user-defined attribute name.
type AttrDef struct {
	Number int
	Name   string
	Flags  int
}

// Object is one room, thing, exit or character. Contents and Exits head
// singly linked lists threaded through Next.
type Object struct {
	DBRef      DBRef
	Name       string
	Location   DBRef
	Contents   DBRef
	Exits      DBRef
	Link       DBRef
	Next       DBRef
	Owner      DBRef
	Flags      [3]int
	LastAccess time.Time
	LastMod    time.Time
	Attrs      []Attribute
}

func (o *Object) ObjType() ObjectType { return ObjectType(o.Flags[0] & typeMask) }

func (o *Object) HasFlag(flag int) bool  { return o.Flags[0]&flag != 0 }
func (o *Object) HasFlag2(flag int) bool { return o.Flags[1]&flag != 0 }

// IsGoing reports whether the object has been destroyed.
func (o *Object) IsGoing() bool { return o.HasFlag(FlagGoing) }

// IsCharacter reports whether o is a live player object.
func (o *Object) IsCharacter() bool {
	return o.ObjType() == TypePlayer && !o.IsGoing()
}

// Attr returns the value of attribute num, or "".
func (o *Object) Attr(num int) string {
	if i := o.attrIndex(num); i >= 0 {
		return o.Attrs[i].Value
	}
	return ""
}

func (o *Object) attrIndex(num int) int {
	return slices.IndexFunc(o.Attrs, func(a Attribute) bool { return a.Number == num })
}

// SetAttr sets attribute num; an empty value clears it.
func (o *Object) SetAttr(num int, value string) {
	i := o.attrIndex(num)
	switch {
	case i < 0 && value == "":
		return
	case i < 0:
		o.Attrs = append(o.Attrs, Attribute{Number: num, Value: value})
	case value == "":
		o.Attrs = slices.Delete(o.Attrs, i, i+1)
	default:
		o.Attrs[i].Value = value
	}
	o.LastMod = time.Now()
}

// Database is the whole world, keyed by dbref.
type Database struct {
	Version    int
	Size       int
	NextAttr   int
	Objects    map[DBRef]*Object
	AttrNames  map[int]*AttrDef
	AttrByName map[string]*AttrDef
}

func NewDatabase() *Database {
	return &Database{
		NextAttr:   A_USER_START,
		Objects:    make(map[DBRef]*Object),
		AttrNames:  make(map[int]*AttrDef),
		AttrByName: make(map[string]*AttrDef),
	}
}

// AddAttrDef registers a user attribute and advances NextAttr past it.
func (db *Database) AddAttrDef(num int, name string, flags int) *AttrDef {
	def := &AttrDef{Number: num, Name: name, Flags: flags}
	db.AttrNames[num] = def
	db.AttrByName[name] = def
	db.NextAttr = max(db.NextAttr, num+1)
	return def
}

// AttrNum resolves an attribute name, built-ins first. With create set an
// unknown name becomes a new user attribute; otherwise it is -1.
func (db *Database) AttrNum(name string, create bool) int {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case upper == "":
		return -1
	case wellKnownByName[upper] != 0:
		return wellKnownByName[upper]
	case db.AttrByName[upper] != nil:
		return db.AttrByName[upper].Number
	case create:
		return db.AddAttrDef(db.NextAttr, upper, 0).Number
	}
	return -1
}

// AttrByNameOn returns the named attribute of ref, or "".
func (db *Database) AttrByNameOn(ref DBRef, name string) string {
	obj, ok := db.Objects[ref]
	if !ok {
		return ""
	}
	if num := db.AttrNum(name, false); num >= 0 {
		return obj.Attr(num)
	}
	return ""
}

// SafeContents lists what loc holds, stopping at a dangling ref or a loop.
func (db *Database) SafeContents(loc DBRef) []DBRef {
	obj, ok := db.Objects[loc]
	if !ok {
		return nil
	}
	var out []DBRef
	seen := make(map[DBRef]bool)
	for next := obj.Contents; next != Nothing && !seen[next]; {
		seen[next] = true
		out = append(out, next)
		o, ok := db.Objects[next]
		if !ok {
			break
		}
		next = o.Next
	}
	return out
}

// Players returns every live character in ascending ref order.
func (db *Database) Players() []DBRef {
	refs := slices.Sorted(maps.Keys(db.Objects))
	return slices.DeleteFunc(refs, func(ref DBRef) bool { return !db.Objects[ref].IsCharacter() })
}
