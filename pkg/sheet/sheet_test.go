package sheet

import (
	"reflect"
	"testing"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

func newChar(db *gamedb.Database, ref gamedb.DBRef, name string) *gamedb.Object {
	obj := &gamedb.Object{
		DBRef: ref, Name: name, Location: 0, Owner: ref,
		Contents: gamedb.Nothing, Exits: gamedb.Nothing, Next: gamedb.Nothing,
	}
	obj.Flags[0] = int(gamedb.TypePlayer)
	db.Objects[ref] = obj
	return obj
}

func TestCategorizedSheet(t *testing.T) {
	db := gamedb.NewDatabase()
	obj := newChar(db, 5, "Anna")
	obj.SetAttr(gamedb.A_SHEET, `{
		"attributes":{"mental":{"Intelligence":3,"Wits":2},"social":{"Presence":"4"}},
		"skills":{"mental":{"Occult":2},"social":{"Animal Ken":1}},
		"merits":{"Contacts":3},
		"bio":{"Template":"Vampire","Clan":"Mekhet"},
		"groups":["Archivists"]
	}`)
	s := New(db, 5)

	if got := s.Attribute("intelligence"); got != 3 {
		t.Errorf("Attribute(intelligence) = %d, want 3", got)
	}
	if got := s.Attribute("Presence"); got != 4 {
		t.Errorf("Attribute(Presence) = %d, want 4", got)
	}
	if got := s.Attribute("strength"); got != 1 {
		t.Errorf("absent attribute = %d, want 1", got)
	}
	if got := s.Skill("occult"); got != 2 {
		t.Errorf("Skill(occult) = %d, want 2", got)
	}
	if got := s.Skill("animal_ken"); got != 1 {
		t.Errorf("Skill(animal_ken) = %d, want 1", got)
	}
	if got := s.Skill("firearms"); got != 0 {
		t.Errorf("absent skill = %d, want 0", got)
	}
	if got := s.Merit("contacts"); got != 3 {
		t.Errorf("Merit(contacts) = %d, want 3", got)
	}
	if got := s.Bio("clan"); got != "Mekhet" {
		t.Errorf("Bio(clan) = %q, want Mekhet", got)
	}
	if !s.InGroup("archivists") {
		t.Error("expected membership in archivists from JSON groups")
	}
	if s.Name() != "Anna" || s.Ref() != 5 {
		t.Errorf("identity = %s/%d", s.Name(), s.Ref())
	}
}

func TestFlatSheet(t *testing.T) {
	db := gamedb.NewDatabase()
	obj := newChar(db, 6, "Ben")
	obj.SetAttr(gamedb.A_SHEET, `{"wits":4,"investigation":3,"template":"Mortal"}`)
	s := New(db, 6)
	if got := s.Attribute("wits"); got != 4 {
		t.Errorf("Attribute(wits) = %d, want 4", got)
	}
	if got := s.Skill("investigation"); got != 3 {
		t.Errorf("Skill(investigation) = %d, want 3", got)
	}
	if got := s.Bio("template"); got != "Mortal" {
		t.Errorf("Bio(template) = %q, want Mortal", got)
	}
}

func TestIndividualAttrs(t *testing.T) {
	db := gamedb.NewDatabase()
	obj := newChar(db, 7, "Cass")
	obj.SetAttr(db.AttrNum("STAT_RESOLVE", true), "3")
	obj.SetAttr(db.AttrNum("STAT_ACADEMICS", true), "2")
	obj.SetAttr(db.AttrNum("MERIT_RESOURCES", true), "1")
	obj.SetAttr(db.AttrNum("BIO_TEMPLATE", true), "Mage")
	obj.SetAttr(gamedb.A_GROUPS, "Pentacle, Consilium")
	s := New(db, 7)
	if got := s.Attribute("resolve"); got != 3 {
		t.Errorf("Attribute(resolve) = %d, want 3", got)
	}
	if got := s.Skill("academics"); got != 2 {
		t.Errorf("Skill(academics) = %d, want 2", got)
	}
	if got := s.Merit("resources"); got != 1 {
		t.Errorf("Merit(resources) = %d, want 1", got)
	}
	if got := s.Bio("template"); got != "Mage" {
		t.Errorf("Bio(template) = %q, want Mage", got)
	}
	if !s.InGroup("consilium") || s.InGroup("seers") {
		t.Errorf("groups = %v", s.Groups())
	}
}

func TestInvalidSheetJSONFallsBack(t *testing.T) {
	db := gamedb.NewDatabase()
	obj := newChar(db, 8, "Dee")
	obj.SetAttr(gamedb.A_SHEET, `{not json`)
	obj.SetAttr(db.AttrNum("STAT_WITS", true), "2")
	if got := New(db, 8).Attribute("wits"); got != 2 {
		t.Errorf("Attribute(wits) = %d, want 2", got)
	}
}

func TestSetStatKeepsCategorizedShape(t *testing.T) {
	db := gamedb.NewDatabase()
	obj := newChar(db, 9, "Eve")
	obj.SetAttr(gamedb.A_SHEET, `{"attributes":{"mental":{"wits":1}}}`)
	if err := SetStat(db, 9, SectionAttributes, "Resolve", 3); err != nil {
		t.Fatal(err)
	}
	if err := SetStat(db, 9, SectionSkills, "Occult", 2); err != nil {
		t.Fatal(err)
	}
	if err := SetStat(db, 9, SectionBio, "template", "Werewolf"); err != nil {
		t.Fatal(err)
	}
	s := New(db, 9)
	if s.Attribute("resolve") != 3 || s.Skill("occult") != 2 || s.Bio("template") != "Werewolf" {
		t.Errorf("sheet after SetStat = %s", obj.Attr(gamedb.A_SHEET))
	}
	if err := SetStat(db, 9, SectionSkills, "Occult", nil); err != nil {
		t.Fatal(err)
	}
	if s.Skill("occult") != 0 {
		t.Errorf("skill not removed: %s", obj.Attr(gamedb.A_SHEET))
	}
	if err := SetStat(db, 9, "powers", "x", 1); err == nil {
		t.Error("expected error for unknown section")
	}
}

func TestMirror(t *testing.T) {
	db := gamedb.NewDatabase()
	obj := newChar(db, 10, "Fay")
	for _, c := range []string{"2", "1", "2"} {
		if err := RecordClue(obj, 3, c); err != nil {
			t.Fatal(err)
		}
	}
	if err := RecordClue(obj, 7, "1"); err != nil {
		t.Fatal(err)
	}
	want := map[int][]string{3: {"1", "2"}, 7: {"1"}}
	if got := RecordedClues(obj); !reflect.DeepEqual(got, want) {
		t.Fatalf("RecordedClues = %v, want %v", got, want)
	}
	if err := ForgetClue(obj, 3, "1"); err != nil {
		t.Fatal(err)
	}
	if err := ForgetMystery(obj, 7); err != nil {
		t.Fatal(err)
	}
	want = map[int][]string{3: {"2"}}
	if got := RecordedClues(obj); !reflect.DeepEqual(got, want) {
		t.Fatalf("after forget = %v, want %v", got, want)
	}
	if err := ForgetMystery(obj, 3); err != nil {
		t.Fatal(err)
	}
	if got := obj.Attr(gamedb.A_MYSTERYCLUES); got != "" {
		t.Errorf("mirror should be cleared, got %q", got)
	}
}
