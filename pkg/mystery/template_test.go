package mystery

import (
	"os"
	"path/filepath"
	"testing"
)

const bellTemplate = `
title: The Drowned Bell
description: A bell rings beneath the harbor.
category: supernatural
difficulty: 3
access: ["template:mage", "group:sentinels"]
clues:
  - key: bell
    name: Salt-crusted bell
    description: A church bell pulled from the harbor.
    type: physical
  - key: ledger
    name: Harbor ledger
    description: Shipping records mention the bell.
    type: academic
    prerequisites: [bell]
    skill_roll: academics/intelligence/2
  - key: hymn
    name: Drowned hymn
    description: A hymn sung under water.
    conditions: '{"access_level":"participant"}'
    revelation: The congregation never left.
triggers:
  - id: toll
    requires: [bell, ledger]
    revelation: The bell was rung for the drowned.
    unlocks: [hymn]
`

func TestInstantiateTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("bell", []byte(bellTemplate))
	if err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry()
	m, err := tmpl.Instantiate(reg, 1)
	if err != nil {
		t.Fatal(err)
	}
	sum := m.Summary()
	if sum.Title != "The Drowned Bell" || sum.Clues != 3 || sum.Difficulty != 3 || sum.Status != StatusActive {
		t.Errorf("summary = %+v", sum)
	}
	rules, _ := m.Access()
	if len(rules) != 2 {
		t.Errorf("access rules = %v", rules)
	}
	ledger, err := m.Clue("2")
	if err != nil {
		t.Fatal(err)
	}
	if len(ledger.Prerequisites) != 1 || ledger.Prerequisites[0] != "1" {
		t.Errorf("ledger prerequisites = %v", ledger.Prerequisites)
	}
	if !ledger.AllowsMethod(MethodResearch) || ledger.AllowsMethod(MethodExamine) {
		t.Errorf("ledger methods = %v", ledger.RequiredMethods)
	}
	if ledger.Conditions.SkillRoll == nil || ledger.Conditions.SkillRoll.Difficulty != 2 {
		t.Errorf("ledger skill roll = %+v", ledger.Conditions.SkillRoll)
	}
	hymn, _ := m.Clue("3")
	if hymn.Conditions.AccessLevel != AccessParticipant || hymn.Revelation == "" {
		t.Errorf("hymn = %+v", hymn)
	}
	trig := m.TriggerList()
	if len(trig) != 1 || trig[0].Unlocks[0] != "3" {
		t.Errorf("triggers = %+v", trig)
	}
}

func TestTemplateValidation(t *testing.T) {
	bad := map[string]string{
		"no title":       "clues: []",
		"unknown prereq": "title: x\nclues:\n  - {key: a, name: A, prerequisites: [zz]}",
		"duplicate key":  "title: x\nclues:\n  - {key: a, name: A}\n  - {key: a, name: B}",
		"bad type":       "title: x\nclues:\n  - {key: a, name: A, type: smell}",
		"bad access":     "title: x\naccess: [species:elf]",
		"bad difficulty": "title: x\ndifficulty: 8",
		"bad yaml":       "title: [unterminated",
	}
	for name, src := range bad {
		if _, err := ParseTemplate(name, []byte(src)); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestTemplateCycleRollsBack(t *testing.T) {
	src := "title: loop\nclues:\n  - {key: a, name: A, prerequisites: [b]}\n  - {key: b, name: B, prerequisites: [a]}\n"
	tmpl, err := ParseTemplate("loop", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry()
	if _, err := tmpl.Instantiate(reg, 1); err == nil {
		t.Fatal("cyclic template instantiated")
	}
	if len(reg.All()) != 0 {
		t.Errorf("partial mystery left behind: %d", len(reg.All()))
	}
}

func TestTemplateSetReload(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bell.yaml"), []byte(bellTemplate), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("clues: []"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	ts := NewTemplateSet(dir)
	n, err := ts.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("loaded %d templates, want 1", n)
	}
	if _, ok := ts.Get("BELL"); !ok {
		t.Error("Get is not case-insensitive")
	}
	if list := ts.List(); len(list) != 1 || list[0].Name != "bell" {
		t.Errorf("List = %+v", list)
	}

	missing := NewTemplateSet(filepath.Join(dir, "nope"))
	if n, err := missing.Reload(); n != 0 || err != nil {
		t.Errorf("missing dir = %d, %v", n, err)
	}
}
