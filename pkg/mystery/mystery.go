package mystery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/sheet"
)

// Status is the lifecycle state of a Mystery.
type Status string

const (
	StatusActive    Status = "active"
	StatusSolved    Status = "solved"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusActive, StatusSuspended, StatusSolved, StatusCancelled}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Statuses {
		if st == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %q (use active, suspended, solved or cancelled)", s)
}

// transitions lists the staff-driven moves out of each status. Solved and
// cancelled are terminal.
var transitions = map[Status][]Status{
	StatusActive:    {StatusSuspended, StatusCancelled, StatusSolved},
	StatusSuspended: {StatusActive, StatusCancelled},
}

// LegacyAccess is the older, list-based form of mystery access control.
// It is consulted only when AccessRules is empty.
type LegacyAccess struct {
	AllowedTemplates  []string
	AllowedCharacters []gamedb.DBRef
	RestrictedAreas   []gamedb.DBRef // rooms the clues can be found in
}

// Trigger fires a revelation once a character holds every required clue.
type Trigger struct {
	ID         string
	Required   []string
	Revelation string
	Unlocks    []string // clues whose prerequisites are cleared on firing
}

// Mystery is one investigation storyline. All methods are safe for
// concurrent use.
type Mystery struct {
	mu       sync.Mutex
	onStatus func(m *Mystery, from, to Status)

	ID          int
	Title       string
	Description string
	Category    string
	Difficulty  int
	Status      Status
	CreatedBy   gamedb.DBRef
	CreatedAt   time.Time

	Clues      map[string]*Clue
	NextClueID int

	// Discovered holds each character's clue ids in discovery order.
	Discovered    map[gamedb.DBRef][]string
	Triggers      map[string]*Trigger
	FiredTriggers map[gamedb.DBRef][]string

	AccessRules  []Rule
	Legacy       LegacyAccess
	Participants []gamedb.DBRef

	CompletionPct int
}

// New returns an active mystery with no clues.
func New(id int, title, description, category string, difficulty int, by gamedb.DBRef) *Mystery {
	m := &Mystery{
		ID:          id,
		Title:       title,
		Description: description,
		Category:    category,
		Difficulty:  difficulty,
		Status:      StatusActive,
		CreatedBy:   by,
		CreatedAt:   time.Now(),
		NextClueID:  1,
	}
	m.init()
	return m
}

// init fills nil maps, e.g. after decoding.
func (m *Mystery) init() {
	if m.Clues == nil {
		m.Clues = make(map[string]*Clue)
	}
	if m.Discovered == nil {
		m.Discovered = make(map[gamedb.DBRef][]string)
	}
	if m.Triggers == nil {
		m.Triggers = make(map[string]*Trigger)
	}
	if m.FiredTriggers == nil {
		m.FiredTriggers = make(map[gamedb.DBRef][]string)
	}
	if m.NextClueID < 1 {
		m.NextClueID = 1
	}
	if m.Status == "" {
		m.Status = StatusActive
	}
}

// Summary is a point-in-time copy of a mystery's headline fields.
type Summary struct {
	ID           int
	Title        string
	Description  string
	Category     string
	Difficulty   int
	Status       Status
	Clues        int
	Completion   int
	Participants int
	CreatedBy    gamedb.DBRef
	CreatedAt    time.Time
}

// Summary returns the mystery's headline fields.
func (m *Mystery) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Summary{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		Category:     m.Category,
		Difficulty:   m.Difficulty,
		Status:       m.Status,
		Clues:        len(m.Clues),
		Completion:   m.CompletionPct,
		Participants: len(m.Participants),
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt,
	}
}

// CurrentStatus returns the status under the lock.
func (m *Mystery) CurrentStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Status
}

// SetStatus performs a staff status change. A mystery resumed at full
// completion goes straight on to solved.
func (m *Mystery) SetStatus(to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Status == to {
		return nil
	}
	for _, ok := range transitions[m.Status] {
		if ok == to {
			m.setStatus(to)
			if to == StatusActive {
				m.maybeSolve()
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, m.Status, to)
}

// maybeSolve moves an active mystery at full completion to solved.
func (m *Mystery) maybeSolve() bool {
	if m.CompletionPct < 100 || m.Status != StatusActive {
		return false
	}
	m.setStatus(StatusSolved)
	return true
}

func (m *Mystery) setStatus(to Status) {
	from := m.Status
	m.Status = to
	if m.onStatus != nil {
		m.onStatus(m, from, to)
	}
}

// SetInfo edits one descriptive field: title, description, category or
// difficulty.
func (m *Mystery) SetInfo(field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	value = strings.TrimSpace(value)
	switch strings.ToLower(field) {
	case "title":
		if value == "" {
			return fmt.Errorf("title cannot be empty")
		}
		m.Title = value
	case "description", "desc":
		m.Description = value
	case "category":
		m.Category = value
	case "difficulty":
		d, err := ParseDifficulty(value)
		if err != nil {
			return err
		}
		m.Difficulty = d
	default:
		return fmt.Errorf("unknown field %q (use title, description, category or difficulty)", field)
	}
	return nil
}

// ParseDifficulty validates a 1-5 difficulty rating.
func ParseDifficulty(s string) (int, error) {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || d < 1 || d > 5 {
		return 0, fmt.Errorf("difficulty must be a number from 1 to 5")
	}
	return d, nil
}

// ---------- Clue registry ----------

// AddClue allocates the next clue id and stores a new clue.
func (m *Mystery) AddClue(name, description string, cond *DiscoveryConditions, tags []string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := strconv.Itoa(m.NextClueID)
	m.NextClueID++
	c := &Clue{
		ID:          id,
		Name:        name,
		Description: description,
		Type:        ClueGeneral,
		Tags:        append([]string(nil), tags...),
	}
	if cond != nil {
		c.Conditions = cond.clone()
	}
	m.Clues[id] = c
	m.recompute()
	return id
}

// Clue returns a copy of one clue.
func (m *Mystery) Clue(id string) (*Clue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Clues[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClueNotFound, id)
	}
	return c.clone(), nil
}

// ClueIDs returns every clue id in numeric order.
func (m *Mystery) ClueIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clueIDs()
}

func (m *Mystery) clueIDs() []string {
	ids := make([]string, 0, len(m.Clues))
	for id := range m.Clues {
		ids = append(ids, id)
	}
	sortClueIDs(ids)
	return ids
}

// ClueList returns copies of all clues in id order.
func (m *Mystery) ClueList() []*Clue {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Clue
	for _, id := range m.clueIDs() {
		out = append(out, m.Clues[id].clone())
	}
	return out
}

func (m *Mystery) clue(id string) (*Clue, error) {
	c, ok := m.Clues[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClueNotFound, id)
	}
	return c, nil
}

func (m *Mystery) checkIDs(ids []string) error {
	for _, id := range ids {
		if _, ok := m.Clues[id]; !ok {
			return fmt.Errorf("%w: %s", ErrClueNotFound, id)
		}
	}
	return nil
}

// SetCluePrerequisites replaces a clue's prerequisites. Unknown ids and
// orderings that could never be satisfied are rejected.
func (m *Mystery) SetCluePrerequisites(id string, prereqs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	if err := m.checkIDs(prereqs); err != nil {
		return err
	}
	old := c.Prerequisites
	c.Prerequisites = dedupe(prereqs)
	if m.hasCycle() {
		c.Prerequisites = old
		return fmt.Errorf("%w (clue %s)", ErrCycle, id)
	}
	return nil
}

// SetClueLeads replaces the clues a clue leads to.
func (m *Mystery) SetClueLeads(id string, leads []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	if err := m.checkIDs(leads); err != nil {
		return err
	}
	old := c.LeadsTo
	c.LeadsTo = dedupe(leads)
	if m.hasCycle() {
		c.LeadsTo = old
		return fmt.Errorf("%w (clue %s)", ErrCycle, id)
	}
	return nil
}

// hasCycle reports whether the combined ordering graph loops. A
// prerequisite P of C means P comes before C; a lead L of C means C comes
// before L.
func (m *Mystery) hasCycle() bool {
	after := make(map[string][]string)
	for id, c := range m.Clues {
		for _, p := range c.Prerequisites {
			after[p] = append(after[p], id)
		}
		for _, l := range c.LeadsTo {
			after[id] = append(after[id], l)
		}
	}
	const (
		unseen = iota
		visiting
		done
	)
	state := make(map[string]int)
	var visit func(string) bool
	visit = func(n string) bool {
		switch state[n] {
		case visiting:
			return true
		case done:
			return false
		}
		state[n] = visiting
		for _, next := range after[n] {
			if visit(next) {
				return true
			}
		}
		state[n] = done
		return false
	}
	for _, id := range m.clueIDs() {
		if visit(id) {
			return true
		}
	}
	return false
}

// SetClueType sets the clue type and replaces its required methods with
// the ones the type implies.
func (m *Mystery) SetClueType(id string, t ClueType) error {
	if _, err := ParseClueType(string(t)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	c.Type = t
	c.RequiredMethods = t.Methods()
	return nil
}

// SetClueRequiredMethods overrides the methods that can find a clue.
func (m *Mystery) SetClueRequiredMethods(id string, methods []Method) error {
	var valid []Method
	for _, meth := range methods {
		v, err := ParseMethod(string(meth))
		if err != nil {
			return err
		}
		if !containsMethod(valid, v) {
			valid = append(valid, v)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	c.RequiredMethods = valid
	return nil
}

// SetClueConditions replaces a clue's discovery conditions.
func (m *Mystery) SetClueConditions(id string, cond DiscoveryConditions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	c.Conditions = cond.clone()
	return nil
}

// SetClueSkillRoll sets or, with nil, clears the clue's skill roll.
func (m *Mystery) SetClueSkillRoll(id string, sr *SkillRoll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	if sr == nil {
		c.Conditions.SkillRoll = nil
		return nil
	}
	cp := *sr
	c.Conditions.SkillRoll = &cp
	return nil
}

// SetRevelation sets the bonus text shown on an exceptional discovery.
func (m *Mystery) SetRevelation(id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	c.Revelation = strings.TrimSpace(text)
	return nil
}

// EditClue changes one text field of a clue: name, description,
// revelation, tags, locationhints or skillhints. List fields take a
// comma-separated value.
func (m *Mystery) EditClue(id, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(field) {
	case "name":
		if value == "" {
			return fmt.Errorf("clue name cannot be empty")
		}
		c.Name = value
	case "description", "desc":
		c.Description = value
	case "revelation":
		c.Revelation = value
	case "tags":
		c.Tags = SplitList(value)
	case "locationhints", "locations":
		c.LocationHints = SplitList(value)
	case "skillhints", "skills":
		c.SkillHints = SplitList(value)
	default:
		return fmt.Errorf("unknown clue field %q (use name, description, revelation, tags, locationhints or skillhints)", field)
	}
	return nil
}

// RemoveClue deletes a clue and every reference to it. Removing the last
// undiscovered clue of an active mystery solves it.
func (m *Mystery) RemoveClue(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.clue(id); err != nil {
		return err
	}
	delete(m.Clues, id)
	for _, c := range m.Clues {
		c.Prerequisites = removeString(c.Prerequisites, id)
		c.LeadsTo = removeString(c.LeadsTo, id)
	}
	for tid, t := range m.Triggers {
		t.Required = removeString(t.Required, id)
		t.Unlocks = removeString(t.Unlocks, id)
		if len(t.Required) == 0 {
			delete(m.Triggers, tid)
		}
	}
	for ref, ids := range m.Discovered {
		if ids = removeString(ids, id); len(ids) == 0 {
			delete(m.Discovered, ref)
		} else {
			m.Discovered[ref] = ids
		}
	}
	m.recompute()
	m.maybeSolve()
	return nil
}

// ---------- Access ----------

// SetAccessRules replaces the access rules. An empty list restores the
// legacy checks.
func (m *Mystery) SetAccessRules(rules []Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AccessRules = append([]Rule(nil), rules...)
}

// Access returns a copy of the access rules and legacy settings.
func (m *Mystery) Access() ([]Rule, LegacyAccess) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := LegacyAccess{
		AllowedTemplates:  append([]string(nil), m.Legacy.AllowedTemplates...),
		AllowedCharacters: append([]gamedb.DBRef(nil), m.Legacy.AllowedCharacters...),
		RestrictedAreas:   append([]gamedb.DBRef(nil), m.Legacy.RestrictedAreas...),
	}
	return append([]Rule(nil), m.AccessRules...), l
}

// SetLegacyAccess replaces the legacy access lists.
func (m *Mystery) SetLegacyAccess(l LegacyAccess) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Legacy = l
}

// AddParticipant adds ref to the participant list.
func (m *Mystery) AddParticipant(ref gamedb.DBRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if containsRef(m.Participants, ref) {
		return false
	}
	m.Participants = append(m.Participants, ref)
	return true
}

// RemoveParticipant removes ref from the participant list.
func (m *Mystery) RemoveParticipant(ref gamedb.DBRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !containsRef(m.Participants, ref) {
		return false
	}
	m.Participants = removeRef(m.Participants, ref)
	return true
}

// ParticipantList returns the participants.
func (m *Mystery) ParticipantList() []gamedb.DBRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gamedb.DBRef(nil), m.Participants...)
}

// HasAccess applies the mystery-level access check alone.
func (m *Mystery) HasAccess(s sheet.Sheet) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasAccess(s)
}

// hasAccess applies the access rules, or the legacy template list when
// there are none, then the legacy character allow-list.
func (m *Mystery) hasAccess(s sheet.Sheet) (bool, string) {
	if len(m.AccessRules) > 0 {
		if ok, why := Any(m.AccessRules...).Eval(s); !ok {
			return false, why
		}
	} else if len(m.Legacy.AllowedTemplates) > 0 {
		tmpl := s.Bio("template")
		ok := false
		for _, t := range m.Legacy.AllowedTemplates {
			if strings.EqualFold(t, tmpl) {
				ok = true
				break
			}
		}
		if !ok {
			return false, fmt.Sprintf("This mystery is open only to %s characters.", strings.Join(m.Legacy.AllowedTemplates, ", "))
		}
	}
	if len(m.Legacy.AllowedCharacters) > 0 && !containsRef(m.Legacy.AllowedCharacters, s.Ref()) {
		return false, "You are not among the characters this mystery is open to."
	}
	return true, ""
}

// ---------- Discovery ----------

// CanDiscover reports whether the character may discover clue id, and if
// not, why. It has no side effects.
func (m *Mystery) CanDiscover(s sheet.Sheet, id string) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.canDiscover(s, id); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// canDiscover checks, in order: the clue exists, the character has not
// found it, its prerequisites are found, mystery access, the allow-list,
// the restricted areas and finally the clue's own conditions. The first
// failure wins.
func (m *Mystery) canDiscover(s sheet.Sheet, id string) error {
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	ref := s.Ref()
	found := m.Discovered[ref]
	if containsString(found, id) {
		return fmt.Errorf("%w: %s", ErrAlreadyDiscovered, c.Name)
	}
	for _, p := range c.Prerequisites {
		if !containsString(found, p) {
			name := p
			if pc, ok := m.Clues[p]; ok {
				name = pc.Name
			}
			return &DeniedError{Reason: fmt.Sprintf("You must first discover %s.", name)}
		}
	}
	if ok, why := m.hasAccess(s); !ok {
		return &DeniedError{Reason: why}
	}
	if len(m.Legacy.RestrictedAreas) > 0 && !containsRef(m.Legacy.RestrictedAreas, s.Location()) {
		return &DeniedError{Reason: "This clue cannot be found here."}
	}
	if c.Conditions.AccessLevel == AccessParticipant && !containsRef(m.Participants, ref) {
		return &DeniedError{Reason: "Only participants in this mystery can find this clue."}
	}
	if ok, why := c.Conditions.Rule().Eval(s); !ok {
		return &DeniedError{Reason: why}
	}
	return nil
}

// Discovery describes one clue granted to a character.
type Discovery struct {
	MysteryID    int
	MysteryTitle string
	Character    gamedb.DBRef
	ClueID       string
	ClueName     string
	Description  string
	Method       Method
	Revelations  []Revelation
	Completion   int
	Solved       bool // this discovery solved the mystery
	Bonus        string
}

// Discover grants clue id to the character if CanDiscover allows it.
// Discovering a clue twice returns ErrAlreadyDiscovered and changes
// nothing.
func (m *Mystery) Discover(s sheet.Sheet, id string, method Method) (*Discovery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.canDiscover(s, id); err != nil {
		return nil, err
	}
	return m.record(s.Ref(), id, method), nil
}

// Grant gives a clue to ref without any gating.
func (m *Mystery) Grant(ref gamedb.DBRef, id string) (*Discovery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return nil, err
	}
	if containsString(m.Discovered[ref], id) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDiscovered, c.Name)
	}
	return m.record(ref, id, MethodStaff), nil
}

// Share passes a clue from one character to another inside an active
// mystery. The giver must have found it and the receiver must have access.
func (m *Mystery) Share(from gamedb.DBRef, to sheet.Sheet, id string) (*Discovery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Status != StatusActive {
		return nil, fmt.Errorf("%w: %s", ErrNotActive, m.Status)
	}
	c, err := m.clue(id)
	if err != nil {
		return nil, err
	}
	if !containsString(m.Discovered[from], id) {
		return nil, fmt.Errorf("%w: %s", ErrNotDiscovered, c.Name)
	}
	if containsString(m.Discovered[to.Ref()], id) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDiscovered, c.Name)
	}
	if ok, why := m.hasAccess(to); !ok {
		return nil, &DeniedError{Reason: why}
	}
	return m.record(to.Ref(), id, MethodShared), nil
}

// record stores a discovery and runs the follow-on bookkeeping.
func (m *Mystery) record(ref gamedb.DBRef, id string, method Method) *Discovery {
	c := m.Clues[id]
	m.Discovered[ref] = append(m.Discovered[ref], id)
	if !containsRef(c.DiscoveredBy, ref) {
		c.DiscoveredBy = append(c.DiscoveredBy, ref)
	}
	d := &Discovery{
		MysteryID:    m.ID,
		MysteryTitle: m.Title,
		Character:    ref,
		ClueID:       id,
		ClueName:     c.Name,
		Description:  c.Description,
		Method:       method,
	}
	d.Revelations = m.checkTriggers(ref)
	m.recompute()
	d.Completion = m.CompletionPct
	d.Solved = m.maybeSolve()
	return d
}

// Revoke removes a discovered clue from ref. Status and fired revelations
// are left as they are.
func (m *Mystery) Revoke(ref gamedb.DBRef, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.clue(id)
	if err != nil {
		return err
	}
	if !containsString(m.Discovered[ref], id) {
		return fmt.Errorf("%w: %s", ErrNotDiscovered, c.Name)
	}
	if ids := removeString(m.Discovered[ref], id); len(ids) == 0 {
		delete(m.Discovered, ref)
	} else {
		m.Discovered[ref] = ids
	}
	c.DiscoveredBy = removeRef(c.DiscoveredBy, ref)
	m.recompute()
	return nil
}

// AvailableClues lists the clue ids the character could discover now.
func (m *Mystery) AvailableClues(s sheet.Sheet) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, id := range m.clueIDs() {
		if m.canDiscover(s, id) == nil {
			out = append(out, id)
		}
	}
	return out
}

// DiscoveredClues lists the clue ids ref has found, in discovery order.
func (m *Mystery) DiscoveredClues(ref gamedb.DBRef) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Discovered[ref]...)
}

// HasDiscovered reports whether ref has found clue id.
func (m *Mystery) HasDiscovered(ref gamedb.DBRef, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return containsString(m.Discovered[ref], id)
}

// Investigators returns every character with at least one discovery.
func (m *Mystery) Investigators() []gamedb.DBRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	refs := make([]gamedb.DBRef, 0, len(m.Discovered))
	for ref := range m.Discovered {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// ---------- Progress ----------

// recompute updates CompletionPct: the share of clues found by anyone,
// rounded down.
func (m *Mystery) recompute() {
	if len(m.Clues) == 0 {
		m.CompletionPct = 0
		return
	}
	union := make(map[string]bool)
	for _, ids := range m.Discovered {
		for _, id := range ids {
			if _, ok := m.Clues[id]; ok {
				union[id] = true
			}
		}
	}
	m.CompletionPct = len(union) * 100 / len(m.Clues)
}

// Completion returns the mystery-wide completion percentage.
func (m *Mystery) Completion() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CompletionPct
}

// Progress is one character's standing in a mystery.
type Progress struct {
	Found   int
	Total   int
	Percent int
}

// Progress returns how much of the mystery ref has uncovered.
func (m *Mystery) Progress(ref gamedb.DBRef) Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Progress{Total: len(m.Clues)}
	for _, id := range m.Discovered[ref] {
		if _, ok := m.Clues[id]; ok {
			p.Found++
		}
	}
	if p.Total > 0 {
		p.Percent = p.Found * 100 / p.Total
	}
	return p
}

// SplitList splits a comma-separated list, trimming entries and dropping
// blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SplitIDs splits a list of clue ids separated by commas or spaces.
func SplitIDs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}

func dedupe(ids []string) []string {
	var out []string
	for _, id := range ids {
		if !containsString(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func containsMethod(list []Method, m Method) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}
