package mystery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/sheet"
	"github.com/tidwall/gjson"
)

// AccessLevel controls who may see a clue beyond the mystery-level rules.
type AccessLevel string

const (
	AccessOpen        AccessLevel = "open"
	AccessParticipant AccessLevel = "participant"
)

// SkillRoll overrides the dice pool used by the resolver and, when
// Difficulty is set, the successes needed for this clue.
type SkillRoll struct {
	Skill      string
	Attribute  string
	Difficulty int
}

// DiscoveryConditions is the per-clue gate checked before any roll.
type DiscoveryConditions struct {
	AccessLevel       AccessLevel
	SkillRequirements map[string]int
	BioRequirements   map[string]string
	AttributeMinimum  map[string]int
	MeritRequired     map[string]int
	SkillRoll         *SkillRoll
}

// IsZero reports whether no condition is set.
func (c DiscoveryConditions) IsZero() bool {
	return (c.AccessLevel == "" || c.AccessLevel == AccessOpen) &&
		len(c.SkillRequirements) == 0 && len(c.BioRequirements) == 0 &&
		len(c.AttributeMinimum) == 0 && len(c.MeritRequired) == 0 && c.SkillRoll == nil
}

// Rule compiles the stat requirements into one AND rule. The access level
// and skill roll are handled separately by the mystery and the resolver.
func (c DiscoveryConditions) Rule() Rule {
	var rules []Rule
	for _, k := range sortedKeys(c.SkillRequirements) {
		rules = append(rules, SkillAtLeast(k, c.SkillRequirements[k]))
	}
	bioKeys := make([]string, 0, len(c.BioRequirements))
	for k := range c.BioRequirements {
		bioKeys = append(bioKeys, k)
	}
	sort.Strings(bioKeys)
	for _, k := range bioKeys {
		rules = append(rules, Bio(k, c.BioRequirements[k]))
	}
	for _, k := range sortedKeys(c.AttributeMinimum) {
		rules = append(rules, AttributeAtLeast(k, c.AttributeMinimum[k]))
	}
	for _, k := range sortedKeys(c.MeritRequired) {
		rules = append(rules, MeritAtLeast(k, c.MeritRequired[k]))
	}
	return All(rules...)
}

// String renders the conditions for staff display.
func (c DiscoveryConditions) String() string {
	if c.IsZero() {
		return "none"
	}
	var parts []string
	if c.AccessLevel == AccessParticipant {
		parts = append(parts, "participants only")
	}
	if r := c.Rule(); len(r.Children) > 0 {
		for _, ch := range r.Children {
			parts = append(parts, ch.String())
		}
	}
	if sr := c.SkillRoll; sr != nil {
		roll := label(sheet.Key(sr.Attribute)) + " + " + label(sheet.Key(sr.Skill))
		if sr.Difficulty > 0 {
			roll += fmt.Sprintf(" (difficulty %d)", sr.Difficulty)
		}
		parts = append(parts, "roll "+roll)
	}
	return strings.Join(parts, "; ")
}

func (c DiscoveryConditions) clone() DiscoveryConditions {
	cp := c
	cp.SkillRequirements = copyIntMap(c.SkillRequirements)
	cp.AttributeMinimum = copyIntMap(c.AttributeMinimum)
	cp.MeritRequired = copyIntMap(c.MeritRequired)
	if c.BioRequirements != nil {
		cp.BioRequirements = make(map[string]string, len(c.BioRequirements))
		for k, v := range c.BioRequirements {
			cp.BioRequirements[k] = v
		}
	}
	if c.SkillRoll != nil {
		sr := *c.SkillRoll
		cp.SkillRoll = &sr
	}
	return cp
}

var conditionKeys = map[string]bool{
	"access_level":       true,
	"skill_requirements": true,
	"bio_requirements":   true,
	"attribute_minimum":  true,
	"merit_required":     true,
	"skill_roll":         true,
}

// ParseConditions parses a JSON object such as
//
//	{"access_level":"participant","skill_requirements":{"occult":2},
//	 "bio_requirements":{"template":"mage"},
//	 "skill_roll":{"skill":"occult","attribute":"wits","difficulty":2}}
//
// Single-quoted input is accepted. Unknown keys and wrongly typed values
// are rejected rather than silently ignored.
func ParseConditions(s string) (DiscoveryConditions, error) {
	var c DiscoveryConditions
	s = strings.TrimSpace(s)
	if s == "" {
		return c, nil
	}
	if !gjson.Valid(s) {
		s = strings.ReplaceAll(s, "'", `"`)
	}
	if !gjson.Valid(s) {
		return c, fmt.Errorf("conditions: malformed JSON")
	}
	root := gjson.Parse(s)
	if !root.IsObject() {
		return c, fmt.Errorf("conditions: expected an object")
	}

	var err error
	root.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if !conditionKeys[key] {
			err = fmt.Errorf("conditions: unknown key %q", key)
			return false
		}
		switch key {
		case "access_level":
			switch AccessLevel(strings.ToLower(v.String())) {
			case AccessOpen:
				c.AccessLevel = AccessOpen
			case AccessParticipant:
				c.AccessLevel = AccessParticipant
			default:
				err = fmt.Errorf("conditions: access_level must be open or participant")
			}
		case "skill_requirements":
			c.SkillRequirements, err = parseLevels(key, v)
		case "attribute_minimum":
			c.AttributeMinimum, err = parseLevels(key, v)
		case "merit_required":
			c.MeritRequired, err = parseLevels(key, v)
		case "bio_requirements":
			if !v.IsObject() {
				err = fmt.Errorf("conditions: %s must be an object", key)
				break
			}
			c.BioRequirements = make(map[string]string)
			v.ForEach(func(bk, bv gjson.Result) bool {
				if bv.Type != gjson.String {
					err = fmt.Errorf("conditions: %s.%s must be a string", key, bk.String())
					return false
				}
				c.BioRequirements[sheet.Key(bk.String())] = bv.String()
				return true
			})
		case "skill_roll":
			c.SkillRoll, err = parseSkillRoll(v)
		}
		return err == nil
	})
	if err != nil {
		return DiscoveryConditions{}, err
	}
	return c, nil
}

func parseLevels(key string, v gjson.Result) (map[string]int, error) {
	if !v.IsObject() {
		return nil, fmt.Errorf("conditions: %s must be an object", key)
	}
	out := make(map[string]int)
	var err error
	v.ForEach(func(k, lvl gjson.Result) bool {
		if lvl.Type != gjson.Number || lvl.Int() < 0 || lvl.Int() > 10 {
			err = fmt.Errorf("conditions: %s.%s must be a number from 0 to 10", key, k.String())
			return false
		}
		out[sheet.Key(k.String())] = int(lvl.Int())
		return true
	})
	return out, err
}

func parseSkillRoll(v gjson.Result) (*SkillRoll, error) {
	if !v.IsObject() {
		return nil, fmt.Errorf("conditions: skill_roll must be an object")
	}
	sr := &SkillRoll{}
	var err error
	v.ForEach(func(k, f gjson.Result) bool {
		switch k.String() {
		case "skill":
			sr.Skill = sheet.Key(f.String())
		case "attribute":
			sr.Attribute = sheet.Key(f.String())
		case "difficulty":
			if f.Type != gjson.Number || f.Int() < 0 {
				err = fmt.Errorf("conditions: skill_roll.difficulty must be a non-negative number")
				return false
			}
			sr.Difficulty = int(f.Int())
		default:
			err = fmt.Errorf("conditions: unknown skill_roll key %q", k.String())
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if sr.Skill == "" || sr.Attribute == "" {
		return nil, fmt.Errorf("conditions: skill_roll needs both skill and attribute")
	}
	return sr, nil
}

// ParseSkillRoll parses "<skill>/<attribute>[/<difficulty>]".
func ParseSkillRoll(s string) (*SkillRoll, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("skill roll must be <skill>/<attribute>[/<difficulty>]")
	}
	sr := &SkillRoll{Skill: sheet.Key(parts[0]), Attribute: sheet.Key(parts[1])}
	if sr.Skill == "" || sr.Attribute == "" {
		return nil, fmt.Errorf("skill roll needs both skill and attribute")
	}
	if len(parts) == 3 {
		var d int
		if _, err := fmt.Sscanf(strings.TrimSpace(parts[2]), "%d", &d); err != nil || d < 0 {
			return nil, fmt.Errorf("invalid difficulty %q", parts[2])
		}
		sr.Difficulty = d
	}
	return sr, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
