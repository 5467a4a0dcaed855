package mystery

import (
	"strings"
	"testing"
)

func TestAccessRulesAreOR(t *testing.T) {
	m := newMystery(t, NewRegistry())
	id := m.AddClue("Blood ledger", "accounts", nil, nil)
	m.SetAccessRules([]Rule{Bio("template", "vampire"), Group("conspirators")})

	vamp := newSheet(10, "Anna")
	vamp.bio["template"] = "Vampire"
	plotter := newSheet(11, "Ben")
	plotter.groups = []string{"Conspirators"}
	neither := newSheet(12, "Cass")
	neither.bio["template"] = "Mortal"

	for _, s := range []*fakeSheet{vamp, plotter} {
		if ok, why := m.CanDiscover(s, id); !ok {
			t.Errorf("%s denied: %q", s.name, why)
		}
	}
	ok, why := m.CanDiscover(neither, id)
	if ok {
		t.Fatal("character matching no rule was allowed")
	}
	if !strings.Contains(why, "conspirators") {
		t.Errorf("reason %q should mention the alternatives", why)
	}
}

func TestOpenRuleAdmitsEveryone(t *testing.T) {
	m := newMystery(t, NewRegistry())
	id := m.AddClue("A", "a", nil, nil)
	m.SetAccessRules([]Rule{Group("inner circle"), Open()})
	if ok, why := m.CanDiscover(newSheet(10, "Anna"), id); !ok {
		t.Errorf("open rule ignored: %q", why)
	}
}

func TestParseAccessRule(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"open", "open", false},
		{"group:Conspirators", "group:Conspirators", false},
		{"template:vampire", "template:vampire", false},
		{"Covenant: Invictus", "covenant:Invictus", false},
		{"skill:occult:3", "skill:occult:3", false},
		{"skill:Animal Ken:2", "skill:animal_ken:2", false},
		{"attribute:wits:4", "attribute:wits:4", false},
		{"merit:contacts:1", "merit:contacts:1", false},
		{"skill:occult", "", true},
		{"skill:occult:eleven", "", true},
		{"species:elf", "", true},
		{"template:", "", true},
		{"vampire", "", true},
	}
	for _, tt := range tests {
		r, err := ParseAccessRule(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("ParseAccessRule(%q) accepted", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAccessRule(%q): %v", tt.in, err)
			continue
		}
		if got := r.String(); got != tt.want {
			t.Errorf("ParseAccessRule(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRuleCombinators(t *testing.T) {
	s := newSheet(10, "Anna")
	s.skills["occult"] = 2
	s.merits["contacts"] = 1
	s.attrs["wits"] = 3

	if ok, _ := All().Eval(s); !ok {
		t.Error("empty All should pass")
	}
	if ok, _ := Any().Eval(s); ok {
		t.Error("empty Any should fail")
	}
	r := All(SkillAtLeast("occult", 2), Any(MeritAtLeast("contacts", 2), AttributeAtLeast("wits", 3)))
	if ok, why := r.Eval(s); !ok {
		t.Errorf("combined rule failed: %q", why)
	}
	r = All(SkillAtLeast("occult", 2), MeritAtLeast("contacts", 2))
	if ok, why := r.Eval(s); ok || !strings.Contains(why, "Contacts") {
		t.Errorf("merit gate = %v %q", ok, why)
	}
}

func TestParseConditions(t *testing.T) {
	c, err := ParseConditions(`{'access_level':'participant','skill_requirements':{'Occult':2},
		'bio_requirements':{'template':'Mage'},'skill_roll':{'skill':'occult','attribute':'wits','difficulty':2}}`)
	if err != nil {
		t.Fatal(err)
	}
	if c.AccessLevel != AccessParticipant || c.SkillRequirements["occult"] != 2 || c.BioRequirements["template"] != "Mage" {
		t.Errorf("parsed = %+v", c)
	}
	if c.SkillRoll == nil || c.SkillRoll.Attribute != "wits" || c.SkillRoll.Difficulty != 2 {
		t.Errorf("skill roll = %+v", c.SkillRoll)
	}
	if !strings.Contains(c.String(), "participants only") {
		t.Errorf("String() = %q", c.String())
	}

	bad := []string{
		`{"skill_requirments":{"occult":2}}`,
		`{"skill_requirements":{"occult":"lots"}}`,
		`{"access_level":"secret"}`,
		`{"skill_roll":{"skill":"occult"}}`,
		`{"skill_roll":{"skill":"occult","attribute":"wits","bonus":1}}`,
		`[1,2]`,
		`{not json`,
	}
	for _, in := range bad {
		if _, err := ParseConditions(in); err == nil {
			t.Errorf("ParseConditions(%q) accepted", in)
		}
	}
	if c, err := ParseConditions(""); err != nil || !c.IsZero() {
		t.Errorf("empty conditions = %+v, %v", c, err)
	}
}

func TestParseSkillRoll(t *testing.T) {
	sr, err := ParseSkillRoll("Occult/Wits/3")
	if err != nil || sr.Skill != "occult" || sr.Attribute != "wits" || sr.Difficulty != 3 {
		t.Errorf("ParseSkillRoll = %+v, %v", sr, err)
	}
	if _, err := ParseSkillRoll("occult"); err == nil {
		t.Error("single field accepted")
	}
	if _, err := ParseSkillRoll("occult/wits/hard"); err == nil {
		t.Error("non-numeric difficulty accepted")
	}
}
