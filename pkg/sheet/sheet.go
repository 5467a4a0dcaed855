// Package sheet exposes a character's Chronicles of Darkness statistics to
// the rest of the game behind one interface, whatever shape the sheet was
// stored in.
//
// Three storage shapes are found on older characters and all of them are
// read here:
//
//   - categorized JSON in the SHEET attribute:
//     {"attributes":{"mental":{"wits":3}},"skills":{"mental":{"occult":2}},"bio":{...}}
//   - flat JSON in the SHEET attribute:
//     {"attributes":{"wits":3},"skills":{"occult":2}} or {"wits":3,"occult":2}
//   - individual attributes on the object: STAT_WITS, BIO_TEMPLATE, MERIT_CONTACTS
package sheet

import (
	"strconv"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/tidwall/gjson"
)

// Sheet is the read-only view of a character used by investigation code.
type Sheet interface {
	Ref() gamedb.DBRef
	Name() string
	// Attribute returns the dots in an attribute. Every attribute starts
	// with one dot, so an absent attribute reads as 1.
	Attribute(name string) int
	// Skill returns the dots in a skill, 0 if untrained.
	Skill(name string) int
	Merit(name string) int
	Bio(field string) string
	InGroup(name string) bool
	Location() gamedb.DBRef
}

// Attribute categories of the CofD sheet.
var Categories = []string{"mental", "physical", "social"}

// KnownAttributes maps every attribute to its category.
var KnownAttributes = map[string]string{
	"intelligence": "mental", "wits": "mental", "resolve": "mental",
	"strength": "physical", "dexterity": "physical", "stamina": "physical",
	"presence": "social", "manipulation": "social", "composure": "social",
}

// KnownSkills maps every skill to its category.
var KnownSkills = map[string]string{
	"academics": "mental", "computer": "mental", "crafts": "mental", "investigation": "mental",
	"medicine": "mental", "occult": "mental", "politics": "mental", "science": "mental",
	"athletics": "physical", "brawl": "physical", "drive": "physical", "firearms": "physical",
	"larceny": "physical", "stealth": "physical", "survival": "physical", "weaponry": "physical",
	"animal_ken": "social", "empathy": "social", "expression": "social", "intimidation": "social",
	"persuasion": "social", "socialize": "social", "streetwise": "social", "subterfuge": "social",
}

// BioFields are the bio entries access rules may match against.
var BioFields = []string{
	"template", "clan", "tribe", "order", "kith", "seeming", "auspice", "covenant",
}

// Key normalizes a stat name: lower case, spaces and dashes become underscores.
func Key(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// ObjectSheet reads a character sheet from a gamedb object.
type ObjectSheet struct {
	db  *gamedb.Database
	ref gamedb.DBRef
}

// New returns the sheet of the object ref in db.
func New(db *gamedb.Database, ref gamedb.DBRef) *ObjectSheet {
	return &ObjectSheet{db: db, ref: ref}
}

var _ Sheet = (*ObjectSheet)(nil)

func (s *ObjectSheet) object() *gamedb.Object {
	return s.db.Objects[s.ref]
}

// Ref returns the character's dbref.
func (s *ObjectSheet) Ref() gamedb.DBRef { return s.ref }

// Name returns the character's name.
func (s *ObjectSheet) Name() string {
	if obj := s.object(); obj != nil {
		return obj.Name
	}
	return ""
}

// Location returns the room the character stands in.
func (s *ObjectSheet) Location() gamedb.DBRef {
	if obj := s.object(); obj != nil {
		return obj.Location
	}
	return gamedb.Nothing
}

// Raw returns the SHEET attribute JSON, or "" when absent or invalid.
func (s *ObjectSheet) Raw() string {
	obj := s.object()
	if obj == nil {
		return ""
	}
	raw := obj.Attr(gamedb.A_SHEET)
	if raw == "" || !gjson.Valid(raw) {
		return ""
	}
	return raw
}

// Attribute implements Sheet.
func (s *ObjectSheet) Attribute(name string) int {
	if v, ok := s.lookupNumber("attributes", name); ok {
		return v
	}
	return 1
}

// Skill implements Sheet.
func (s *ObjectSheet) Skill(name string) int {
	v, _ := s.lookupNumber("skills", name)
	return v
}

// Merit implements Sheet.
func (s *ObjectSheet) Merit(name string) int {
	v, _ := s.lookupNumber("merits", name)
	return v
}

// Bio implements Sheet.
func (s *ObjectSheet) Bio(field string) string {
	key := Key(field)
	if raw := s.Raw(); raw != "" {
		if r, ok := findKey(gjson.Get(raw, "bio"), key); ok && r.String() != "" {
			return r.String()
		}
		if r, ok := findKey(gjson.Parse(raw), key); ok && r.Type == gjson.String {
			return r.String()
		}
	}
	return s.db.AttrByNameOn(s.ref, "BIO_"+strings.ToUpper(key))
}

// Groups returns the character's group memberships.
func (s *ObjectSheet) Groups() []string {
	var groups []string
	if obj := s.object(); obj != nil {
		groups = append(groups, strings.FieldsFunc(obj.Attr(gamedb.A_GROUPS), func(r rune) bool {
			return r == ' ' || r == ','
		})...)
	}
	if raw := s.Raw(); raw != "" {
		for _, g := range gjson.Get(raw, "groups").Array() {
			groups = append(groups, g.String())
		}
	}
	return groups
}

// InGroup implements Sheet.
func (s *ObjectSheet) InGroup(name string) bool {
	for _, g := range s.Groups() {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}

// lookupNumber searches the three storage shapes for a numeric stat in
// section ("attributes", "skills" or "merits").
func (s *ObjectSheet) lookupNumber(section, name string) (int, bool) {
	key := Key(name)
	if raw := s.Raw(); raw != "" {
		sec := gjson.Get(raw, section)
		if r, ok := findKey(sec, key); ok && isNumeric(r) {
			return int(r.Int()), true
		}
		for _, cat := range Categories {
			if r, ok := findKey(sec.Get(cat), key); ok && isNumeric(r) {
				return int(r.Int()), true
			}
		}
		if r, ok := findKey(gjson.Parse(raw), key); ok && isNumeric(r) {
			return int(r.Int()), true
		}
	}
	prefix := "STAT_"
	if section == "merits" {
		prefix = "MERIT_"
	}
	if v := s.db.AttrByNameOn(s.ref, prefix+strings.ToUpper(key)); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// findKey looks up key in a JSON object, comparing normalized key names.
func findKey(obj gjson.Result, key string) (gjson.Result, bool) {
	if !obj.IsObject() {
		return gjson.Result{}, false
	}
	var found gjson.Result
	ok := false
	obj.ForEach(func(k, v gjson.Result) bool {
		if Key(k.String()) == key {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

func isNumeric(r gjson.Result) bool {
	switch r.Type {
	case gjson.Number:
		return true
	case gjson.String:
		_, err := strconv.Atoi(strings.TrimSpace(r.Str))
		return err == nil
	}
	return false
}
