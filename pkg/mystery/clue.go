// Package mystery implements investigation storylines: mysteries made of
// clues, the rules that gate who may find them, the dice resolver that
// grants them and the revelations that fire as characters piece them
// together.
package mystery

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

var (
	ErrMysteryNotFound   = errors.New("mystery not found")
	ErrClueNotFound      = errors.New("clue not found")
	ErrAlreadyDiscovered = errors.New("already discovered")
	ErrNotDiscovered     = errors.New("clue not discovered")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidClueType   = errors.New("invalid clue type")
	ErrInvalidMethod     = errors.New("invalid investigation method")
	ErrCycle             = errors.New("clue ordering would form a cycle")
	ErrNotActive         = errors.New("mystery is not active")
)

// DeniedError reports why a character may not discover a clue. It is an
// expected outcome, not a fault.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }

// Method is an investigation method.
type Method string

const (
	MethodExamine   Method = "examine"
	MethodSearch    Method = "search"
	MethodInterview Method = "interview"
	MethodResearch  Method = "research"
	MethodOccult    Method = "occult"

	// Not investigation methods; recorded for clues obtained other ways.
	MethodShared Method = "shared"
	MethodStaff  Method = "staff"
)

// Methods lists the investigation methods in display order.
var Methods = []Method{MethodExamine, MethodSearch, MethodInterview, MethodResearch, MethodOccult}

// ParseMethod validates an investigation method name.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Methods {
		if m == v {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q (use examine, search, interview, research or occult)", ErrInvalidMethod, s)
}

// ClueType classifies a clue and implies the methods that can find it.
type ClueType string

const (
	ClueAcademic ClueType = "academic"
	ClueOccult   ClueType = "occult"
	CluePhysical ClueType = "physical"
	ClueHidden   ClueType = "hidden"
	ClueSocial   ClueType = "social"
	ClueGeneral  ClueType = "general"
)

var typeMethods = map[ClueType][]Method{
	ClueAcademic: {MethodResearch},
	ClueOccult:   {MethodOccult},
	CluePhysical: {MethodExamine},
	ClueHidden:   {MethodSearch},
	ClueSocial:   {MethodInterview},
	ClueGeneral:  nil,
}

// ParseClueType validates a clue type name.
func ParseClueType(s string) (ClueType, error) {
	t := ClueType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := typeMethods[t]; !ok {
		return "", fmt.Errorf("%w: %q (use academic, occult, physical, hidden, social or general)", ErrInvalidClueType, s)
	}
	return t, nil
}

// Methods returns the investigation methods implied by the type. General
// clues return nil: any method works.
func (t ClueType) Methods() []Method {
	return append([]Method(nil), typeMethods[t]...)
}

// Clue is one piece of evidence inside a Mystery.
type Clue struct {
	ID          string
	Name        string
	Description string
	Type        ClueType

	// RequiredMethods lists the methods that can discover the clue; empty
	// means any.
	RequiredMethods []Method
	Conditions      DiscoveryConditions

	Prerequisites []string // clue ids that must be found first
	LeadsTo       []string

	LocationHints []string
	SkillHints    []string
	Tags          []string

	DiscoveredBy []gamedb.DBRef
	Revelation   string // bonus text on exceptional success
}

// AllowsMethod reports whether m can discover the clue.
func (c *Clue) AllowsMethod(m Method) bool {
	if len(c.RequiredMethods) == 0 {
		return true
	}
	for _, rm := range c.RequiredMethods {
		if rm == m {
			return true
		}
	}
	return false
}

// HasTag reports whether the clue carries tag (case-insensitive).
func (c *Clue) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// MethodNames returns the required methods as strings, or "any".
func (c *Clue) MethodNames() string {
	if len(c.RequiredMethods) == 0 {
		return "any"
	}
	names := make([]string, len(c.RequiredMethods))
	for i, m := range c.RequiredMethods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func (c *Clue) clone() *Clue {
	cp := *c
	cp.RequiredMethods = append([]Method(nil), c.RequiredMethods...)
	cp.Prerequisites = append([]string(nil), c.Prerequisites...)
	cp.LeadsTo = append([]string(nil), c.LeadsTo...)
	cp.LocationHints = append([]string(nil), c.LocationHints...)
	cp.SkillHints = append([]string(nil), c.SkillHints...)
	cp.Tags = append([]string(nil), c.Tags...)
	cp.DiscoveredBy = append([]gamedb.DBRef(nil), c.DiscoveredBy...)
	cp.Conditions = c.Conditions.clone()
	return &cp
}

// sortClueIDs orders clue ids numerically, falling back to string order
// for ids that are not numbers.
func sortClueIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return ids[i] < ids[j]
	})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func containsRef(list []gamedb.DBRef, ref gamedb.DBRef) bool {
	for _, v := range list {
		if v == ref {
			return true
		}
	}
	return false
}

func removeRef(list []gamedb.DBRef, ref gamedb.DBRef) []gamedb.DBRef {
	out := list[:0]
	for _, v := range list {
		if v != ref {
			out = append(out, v)
		}
	}
	return out
}
