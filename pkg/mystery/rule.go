package mystery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/sheet"
)

// RuleKind identifies the variant of a Rule.
type RuleKind int

const (
	RuleOpen      RuleKind = iota // always passes
	RuleGroup                     // Value: group name
	RuleBio                       // Field: bio field, Value: required value
	RuleSkill                     // Field: skill, Min: dots
	RuleAttribute                 // Field: attribute, Min: dots
	RuleMerit                     // Field: merit, Min: dots
	RuleAll                       // every child passes
	RuleAny                       // at least one child passes
)

// Rule is a predicate over a character sheet. Leaves test one fact about
// the character; RuleAll and RuleAny combine children.
type Rule struct {
	Kind     RuleKind
	Field    string
	Value    string
	Min      int
	Children []Rule
}

// Open returns a rule that admits everyone.
func Open() Rule { return Rule{Kind: RuleOpen} }

// Group requires membership in a group.
func Group(name string) Rule { return Rule{Kind: RuleGroup, Value: name} }

// Bio requires a bio field to equal value, ignoring case.
func Bio(field, value string) Rule { return Rule{Kind: RuleBio, Field: sheet.Key(field), Value: value} }

// SkillAtLeast requires min dots in a skill.
func SkillAtLeast(skill string, min int) Rule {
	return Rule{Kind: RuleSkill, Field: sheet.Key(skill), Min: min}
}

// AttributeAtLeast requires min dots in an attribute.
func AttributeAtLeast(attr string, min int) Rule {
	return Rule{Kind: RuleAttribute, Field: sheet.Key(attr), Min: min}
}

// MeritAtLeast requires min dots in a merit.
func MeritAtLeast(merit string, min int) Rule {
	return Rule{Kind: RuleMerit, Field: sheet.Key(merit), Min: min}
}

// All combines rules with AND. An empty All passes.
func All(rules ...Rule) Rule { return Rule{Kind: RuleAll, Children: rules} }

// Any combines rules with OR. An empty Any fails.
func Any(rules ...Rule) Rule { return Rule{Kind: RuleAny, Children: rules} }

// Eval tests the rule against s. When it fails, the reason says what was
// missing in terms a player can read.
func (r Rule) Eval(s sheet.Sheet) (bool, string) {
	switch r.Kind {
	case RuleOpen:
		return true, ""
	case RuleGroup:
		if s.InGroup(r.Value) {
			return true, ""
		}
		return false, fmt.Sprintf("Requires membership in %s.", r.Value)
	case RuleBio:
		if strings.EqualFold(strings.TrimSpace(s.Bio(r.Field)), strings.TrimSpace(r.Value)) {
			return true, ""
		}
		return false, fmt.Sprintf("Requires %s: %s.", label(r.Field), r.Value)
	case RuleSkill:
		if have := s.Skill(r.Field); have < r.Min {
			return false, fmt.Sprintf("Requires %s %d (you have %d).", label(r.Field), r.Min, have)
		}
		return true, ""
	case RuleAttribute:
		if have := s.Attribute(r.Field); have < r.Min {
			return false, fmt.Sprintf("Requires %s %d (you have %d).", label(r.Field), r.Min, have)
		}
		return true, ""
	case RuleMerit:
		if have := s.Merit(r.Field); have < r.Min {
			return false, fmt.Sprintf("Requires the %s merit at %d.", label(r.Field), r.Min)
		}
		return true, ""
	case RuleAll:
		for _, c := range r.Children {
			if ok, why := c.Eval(s); !ok {
				return false, why
			}
		}
		return true, ""
	case RuleAny:
		var reasons []string
		for _, c := range r.Children {
			ok, why := c.Eval(s)
			if ok {
				return true, ""
			}
			reasons = append(reasons, strings.TrimSuffix(why, "."))
		}
		if len(reasons) == 0 {
			return false, "Access restricted."
		}
		return false, "Access restricted. " + strings.Join(reasons, ", or ") + "."
	}
	return false, "Access restricted."
}

// String renders the rule in the same syntax ParseAccessRule accepts.
func (r Rule) String() string {
	switch r.Kind {
	case RuleOpen:
		return "open"
	case RuleGroup:
		return "group:" + r.Value
	case RuleBio:
		return r.Field + ":" + r.Value
	case RuleSkill:
		return fmt.Sprintf("skill:%s:%d", r.Field, r.Min)
	case RuleAttribute:
		return fmt.Sprintf("attribute:%s:%d", r.Field, r.Min)
	case RuleMerit:
		return fmt.Sprintf("merit:%s:%d", r.Field, r.Min)
	case RuleAll, RuleAny:
		parts := make([]string, len(r.Children))
		for i, c := range r.Children {
			parts[i] = c.String()
		}
		sep := " & "
		if r.Kind == RuleAny {
			sep = " | "
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	return "?"
}

// ParseAccessRule parses one access rule:
//
//	open
//	group:<name>
//	template|clan|tribe|order|kith|seeming|auspice|covenant:<value>
//	skill:<name>:<level>
//	attribute:<name>:<level>
//	merit:<name>:<level>
func ParseAccessRule(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "open") {
		return Open(), nil
	}
	kind, rest, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(rest) == "" {
		return Rule{}, fmt.Errorf("invalid access rule %q: expected <type>:<value>", s)
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	rest = strings.TrimSpace(rest)

	switch kind {
	case "group":
		return Group(rest), nil
	case "skill", "attribute", "merit":
		name, lvl, ok := strings.Cut(rest, ":")
		if !ok {
			return Rule{}, fmt.Errorf("invalid access rule %q: expected %s:<name>:<level>", s, kind)
		}
		min, err := strconv.Atoi(strings.TrimSpace(lvl))
		if err != nil || min < 0 || min > 10 {
			return Rule{}, fmt.Errorf("invalid level %q in access rule %q", lvl, s)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return Rule{}, fmt.Errorf("invalid access rule %q: missing name", s)
		}
		switch kind {
		case "skill":
			return SkillAtLeast(name, min), nil
		case "attribute":
			return AttributeAtLeast(name, min), nil
		}
		return MeritAtLeast(name, min), nil
	}
	for _, f := range sheet.BioFields {
		if kind == f {
			return Bio(kind, rest), nil
		}
	}
	return Rule{}, fmt.Errorf("invalid access rule type %q", kind)
}

// label turns a normalized stat key back into display form.
func label(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
