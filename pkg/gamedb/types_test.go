package gamedb

import (
	"slices"
	"testing"
)

func TestSetAttr(t *testing.T) {
	o := &Object{DBRef: 1}
	o.SetAttr(A_DESC, "A narrow alley.")
	o.SetAttr(A_SHEET, "{}")
	o.SetAttr(A_DESC, "A narrow, rain-slick alley.")
	if got := o.Attr(A_DESC); got != "A narrow, rain-slick alley." {
		t.Errorf("DESC = %q", got)
	}
	o.SetAttr(A_DESC, "")
	if o.Attr(A_DESC) != "" || len(o.Attrs) != 1 {
		t.Errorf("attrs after clear = %+v", o.Attrs)
	}
	o.SetAttr(A_GROUPS, "")
	if len(o.Attrs) != 1 {
		t.Error("clearing an unset attribute added it")
	}
}

func TestAttrNum(t *testing.T) {
	db := NewDatabase()
	if n := db.AttrNum(" sheet ", false); n != A_SHEET {
		t.Errorf("sheet = %d", n)
	}
	if n := db.AttrNum("notes", false); n != -1 {
		t.Errorf("unknown without create = %d", n)
	}
	n := db.AttrNum("notes", true)
	if n != A_USER_START || db.NextAttr != A_USER_START+1 {
		t.Errorf("created %d, next %d", n, db.NextAttr)
	}
	if db.AttrNum("NOTES", false) != n {
		t.Error("created attr not found again")
	}
	if db.AttrNum("", true) != -1 {
		t.Error("empty name resolved")
	}
}

func TestSafeContentsStopsOnLoop(t *testing.T) {
	db := NewDatabase()
	db.Objects[0] = &Object{DBRef: 0, Contents: 1, Flags: [3]int{int(TypeRoom)}}
	db.Objects[1] = &Object{DBRef: 1, Next: 2, Flags: [3]int{int(TypePlayer)}}
	db.Objects[2] = &Object{DBRef: 2, Next: 1, Flags: [3]int{int(TypeThing)}}
	if got := db.SafeContents(0); !slices.Equal(got, []DBRef{1, 2}) {
		t.Errorf("contents = %v", got)
	}
	if db.SafeContents(42) != nil {
		t.Error("missing room has contents")
	}
}

func TestPlayers(t *testing.T) {
	db := NewDatabase()
	db.Objects[5] = &Object{DBRef: 5, Flags: [3]int{int(TypePlayer)}}
	db.Objects[2] = &Object{DBRef: 2, Flags: [3]int{int(TypePlayer)}}
	db.Objects[3] = &Object{DBRef: 3, Flags: [3]int{int(TypePlayer) | FlagGoing}}
	db.Objects[4] = &Object{DBRef: 4, Flags: [3]int{int(TypeThing)}}
	if got := db.Players(); !slices.Equal(got, []DBRef{2, 5}) {
		t.Errorf("Players = %v", got)
	}
	if TypePlayer.String() != "PLAYER" || ObjectType(6).String() != "UNKNOWN" {
		t.Error("type names")
	}
}
