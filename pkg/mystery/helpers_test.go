package mystery

import (
	"strings"
	"testing"

	"github.com/crystal-mush/chroniclemush/pkg/dice"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/sheet"
)

// fakeSheet is an in-memory sheet.Sheet.
type fakeSheet struct {
	ref    gamedb.DBRef
	name   string
	attrs  map[string]int
	skills map[string]int
	merits map[string]int
	bio    map[string]string
	groups []string
	loc    gamedb.DBRef
}

var _ sheet.Sheet = (*fakeSheet)(nil)

func newSheet(ref gamedb.DBRef, name string) *fakeSheet {
	return &fakeSheet{
		ref: ref, name: name,
		attrs: map[string]int{}, skills: map[string]int{}, merits: map[string]int{},
		bio: map[string]string{},
	}
}

func (f *fakeSheet) Ref() gamedb.DBRef      { return f.ref }
func (f *fakeSheet) Name() string           { return f.name }
func (f *fakeSheet) Location() gamedb.DBRef { return f.loc }
func (f *fakeSheet) Skill(n string) int     { return f.skills[sheet.Key(n)] }
func (f *fakeSheet) Merit(n string) int     { return f.merits[sheet.Key(n)] }
func (f *fakeSheet) Bio(n string) string    { return f.bio[sheet.Key(n)] }

func (f *fakeSheet) Attribute(n string) int {
	if v, ok := f.attrs[sheet.Key(n)]; ok {
		return v
	}
	return 1
}

func (f *fakeSheet) InGroup(n string) bool {
	for _, g := range f.groups {
		if strings.EqualFold(g, n) {
			return true
		}
	}
	return false
}

// poolRoller returns a fixed success count and records requested pools.
type poolRoller struct {
	successes int
	pools     []int
}

func (p *poolRoller) Roll(pool int) dice.Outcome {
	p.pools = append(p.pools, pool)
	return dice.Fixed(p.successes).Roll(pool)
}

func newMystery(t *testing.T, reg *Registry) *Mystery {
	t.Helper()
	m, err := reg.Create("The Drowned Bell", "A bell rings beneath the harbor.", "supernatural", 3, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m
}

func mustDiscover(t *testing.T, m *Mystery, s sheet.Sheet, id string) *Discovery {
	t.Helper()
	d, err := m.Discover(s, id, MethodSearch)
	if err != nil {
		t.Fatalf("Discover(%s): %v", id, err)
	}
	return d
}
