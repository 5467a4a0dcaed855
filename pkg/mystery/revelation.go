package mystery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

// Revelation is a trigger that fired for a character.
type Revelation struct {
	TriggerID string
	Text      string
	Unlocked  []string // clue ids whose prerequisites were cleared
}

// AddRevelationTrigger adds or replaces a trigger. Every required and
// unlocked clue must exist.
func (m *Mystery) AddRevelationTrigger(id string, required []string, text string, unlocks []string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("trigger id cannot be empty")
	}
	if len(required) == 0 {
		return fmt.Errorf("trigger %s needs at least one required clue", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkIDs(required); err != nil {
		return err
	}
	if err := m.checkIDs(unlocks); err != nil {
		return err
	}
	m.Triggers[id] = &Trigger{
		ID:         id,
		Required:   dedupe(required),
		Revelation: text,
		Unlocks:    dedupe(unlocks),
	}
	return nil
}

// RemoveTrigger deletes a trigger.
func (m *Mystery) RemoveTrigger(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Triggers[id]; !ok {
		return fmt.Errorf("no revelation trigger %q", id)
	}
	delete(m.Triggers, id)
	return nil
}

// TriggerList returns copies of all triggers ordered by id.
func (m *Mystery) TriggerList() []Trigger {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Trigger, 0, len(m.Triggers))
	for _, id := range m.triggerIDs() {
		t := m.Triggers[id]
		out = append(out, Trigger{
			ID:         t.ID,
			Required:   append([]string(nil), t.Required...),
			Revelation: t.Revelation,
			Unlocks:    append([]string(nil), t.Unlocks...),
		})
	}
	return out
}

func (m *Mystery) triggerIDs() []string {
	ids := make([]string, 0, len(m.Triggers))
	for id := range m.Triggers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// checkTriggers fires every trigger ref has newly satisfied. Each trigger
// fires at most once per character; unlocking clears the prerequisites of
// the unlock clues, which is idempotent.
func (m *Mystery) checkTriggers(ref gamedb.DBRef) []Revelation {
	found := m.Discovered[ref]
	var out []Revelation
	for _, id := range m.triggerIDs() {
		t := m.Triggers[id]
		if containsString(m.FiredTriggers[ref], id) {
			continue
		}
		satisfied := true
		for _, req := range t.Required {
			if !containsString(found, req) {
				satisfied = false
				break
			}
		}
		if !satisfied {
			continue
		}
		m.FiredTriggers[ref] = append(m.FiredTriggers[ref], id)
		rev := Revelation{TriggerID: id, Text: t.Revelation}
		for _, cid := range t.Unlocks {
			if c, ok := m.Clues[cid]; ok && len(c.Prerequisites) > 0 {
				c.Prerequisites = nil
				rev.Unlocked = append(rev.Unlocked, cid)
			}
		}
		out = append(out, rev)
	}
	return out
}
