package mystery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/dice"
	"github.com/crystal-mush/chroniclemush/pkg/sheet"
)

// Default tiers of an investigation roll.
const (
	DefaultExceptionalAt  = 3
	DefaultExceptionalMax = 2
)

var (
	ErrTargetRequired = errors.New("that method needs a target")
	ErrTopicRequired  = errors.New("that method needs a topic")
)

// pair is the attribute + skill rolled for a method. When more than one
// attribute is listed the character's best one is used. The skill slot may
// name an attribute, as in the Resolve + Composure perception roll.
type pair struct {
	attributes []string
	skill      string
}

var methodPairs = map[Method]pair{
	MethodExamine:   {attributes: []string{"resolve"}, skill: "composure"},
	MethodSearch:    {attributes: []string{"wits"}, skill: "investigation"},
	MethodInterview: {attributes: []string{"presence", "manipulation"}, skill: "persuasion"},
	MethodResearch:  {attributes: []string{"intelligence"}, skill: "academics"},
	MethodOccult:    {attributes: []string{"intelligence"}, skill: "occult"},
}

// Request is one investigation attempt.
type Request struct {
	Sheet     sheet.Sheet
	Method    Method
	Target    string      // object examined or person interviewed
	Placed    *ClueObject // clue object being examined, if any
	Topic     string      // research or occult subject
	BonusDice int
	Helpers   []sheet.Sheet // teamwork: each helper's successes add a die
}

// HelperRoll is one teamwork contribution.
type HelperRoll struct {
	Name string
	Roll dice.Outcome
}

// Skipped is a clue attempted but not granted.
type Skipped struct {
	MysteryID int
	ClueID    string
	ClueName  string
	Reason    string
}

// Result is the outcome of Investigate.
type Result struct {
	Method      Method
	Candidates  int
	Rolled      bool
	Attribute   string
	Skill       string
	Pool        int
	Helpers     []HelperRoll
	Roll        dice.Outcome
	Exceptional bool
	Granted     []*Discovery
	Skipped     []Skipped
}

// Names returns the names of the granted clues.
func (r *Result) Names() []string {
	names := make([]string, len(r.Granted))
	for i, d := range r.Granted {
		names[i] = d.ClueName
	}
	return names
}

type candidate struct {
	m    *Mystery
	clue *Clue
}

// Resolver turns investigation actions into dice rolls and discoveries.
// Every command surface goes through it.
type Resolver struct {
	Registry       *Registry
	Roller         dice.Roller
	ExceptionalAt  int // successes for an exceptional result
	ExceptionalMax int // clues attempted on an exceptional result
}

// NewResolver returns a resolver over reg using roller for every roll.
func NewResolver(reg *Registry, roller dice.Roller) *Resolver {
	return &Resolver{
		Registry:       reg,
		Roller:         roller,
		ExceptionalAt:  DefaultExceptionalAt,
		ExceptionalMax: DefaultExceptionalMax,
	}
}

// Investigate finds the clues the character could uncover with this
// method across all active mysteries, rolls once and grants clues by
// success tier. No candidates means no roll.
func (r *Resolver) Investigate(req Request) (*Result, error) {
	if req.Sheet == nil {
		return nil, fmt.Errorf("investigate: no character")
	}
	method, err := ParseMethod(string(req.Method))
	if err != nil {
		return nil, err
	}
	req.Target = strings.TrimSpace(req.Target)
	req.Topic = strings.TrimSpace(req.Topic)
	switch method {
	case MethodExamine, MethodInterview:
		if req.Target == "" {
			return nil, ErrTargetRequired
		}
	case MethodResearch, MethodOccult:
		if req.Topic == "" {
			return nil, ErrTopicRequired
		}
	}

	res := &Result{Method: method}
	cands := r.candidates(req, method)
	res.Candidates = len(cands)
	if len(cands) == 0 {
		return res, nil
	}

	p := methodPairs[method]
	for _, c := range cands {
		if sr := c.clue.Conditions.SkillRoll; sr != nil {
			p = pair{attributes: []string{sr.Attribute}, skill: sr.Skill}
			break
		}
	}
	attr, attrDots := bestAttribute(req.Sheet, p.attributes)
	res.Attribute = attr
	res.Skill = p.skill

	bonus := req.BonusDice
	for _, h := range req.Helpers {
		_, hAttr := bestAttribute(h, p.attributes)
		roll := r.Roller.Roll(hAttr + statDots(h, p.skill))
		res.Helpers = append(res.Helpers, HelperRoll{Name: h.Name(), Roll: roll})
		bonus += roll.Successes
	}

	res.Pool = attrDots + statDots(req.Sheet, p.skill) + bonus
	res.Roll = r.Roller.Roll(res.Pool)
	res.Rolled = true

	successes := res.Roll.Successes
	if successes == 0 {
		return res, nil
	}
	attempts := 1
	if successes >= r.ExceptionalAt {
		res.Exceptional = true
		attempts = r.ExceptionalMax
	}
	if attempts > len(cands) {
		attempts = len(cands)
	}

	for _, c := range cands[:attempts] {
		if sr := c.clue.Conditions.SkillRoll; sr != nil && sr.Difficulty > 0 && successes < sr.Difficulty {
			res.Skipped = append(res.Skipped, Skipped{
				MysteryID: c.m.ID,
				ClueID:    c.clue.ID,
				ClueName:  c.clue.Name,
				Reason:    fmt.Sprintf("needs %d successes", sr.Difficulty),
			})
			continue
		}
		d, err := c.m.Discover(req.Sheet, c.clue.ID, method)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{
				MysteryID: c.m.ID,
				ClueID:    c.clue.ID,
				ClueName:  c.clue.Name,
				Reason:    err.Error(),
			})
			continue
		}
		if res.Exceptional {
			d.Bonus = c.clue.Revelation
		}
		res.Granted = append(res.Granted, d)
	}
	return res, nil
}

// candidates collects eligible clues in mystery id, then clue id order.
func (r *Resolver) candidates(req Request, method Method) []candidate {
	var out []candidate
	for _, m := range r.Registry.Active() {
		for _, id := range m.AvailableClues(req.Sheet) {
			c, err := m.Clue(id)
			if err != nil || !c.AllowsMethod(method) {
				continue
			}
			if !relevant(m.ID, c, method, req) {
				continue
			}
			out = append(out, candidate{m: m, clue: c})
		}
	}
	return out
}

// relevant applies the target and topic filters. A placed clue object
// always stands for its own clue.
func relevant(mysteryID int, c *Clue, method Method, req Request) bool {
	desc := strings.ToLower(c.Description)
	switch method {
	case MethodExamine:
		if p := req.Placed; p != nil && p.MysteryID == mysteryID && p.ClueID == c.ID {
			return true
		}
		return strings.Contains(desc, strings.ToLower(req.Target))
	case MethodInterview:
		return strings.Contains(desc, strings.ToLower(req.Target))
	case MethodResearch, MethodOccult:
		topic := strings.ToLower(req.Topic)
		return strings.Contains(desc, topic) || strings.Contains(strings.ToLower(c.Name), topic)
	}
	return true
}

// bestAttribute returns the highest of the listed attributes.
func bestAttribute(s sheet.Sheet, attrs []string) (string, int) {
	best, dots := "", -1
	for _, a := range attrs {
		if v := s.Attribute(a); v > dots {
			best, dots = a, v
		}
	}
	return best, dots
}

// statDots reads name as an attribute if it is one, otherwise as a skill.
func statDots(s sheet.Sheet, name string) int {
	if _, ok := sheet.KnownAttributes[sheet.Key(name)]; ok {
		return s.Attribute(name)
	}
	return s.Skill(name)
}
