package mystery

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"gopkg.in/yaml.v3"
)

// Template describes a whole mystery in YAML so staff can stamp out
// prepared storylines:
//
//	title: The Drowned Bell
//	category: supernatural
//	difficulty: 3
//	access: ["template:mage", "group:sentinels"]
//	clues:
//	  - key: bell
//	    name: Salt-crusted bell
//	    description: A church bell pulled from the harbor.
//	    type: physical
//	  - key: ledger
//	    name: Harbor ledger
//	    description: Shipping records mention the bell.
//	    type: academic
//	    prerequisites: [bell]
//	triggers:
//	  - id: toll
//	    requires: [bell, ledger]
//	    revelation: The bell was rung for the drowned.
type Template struct {
	Name        string            `yaml:"-"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Category    string            `yaml:"category"`
	Difficulty  int               `yaml:"difficulty"`
	Access      []string          `yaml:"access"`
	Clues       []TemplateClue    `yaml:"clues"`
	Triggers    []TemplateTrigger `yaml:"triggers"`
}

// TemplateClue is one clue in a template, addressed by key.
type TemplateClue struct {
	Key           string   `yaml:"key"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Type          string   `yaml:"type"`
	Methods       []string `yaml:"methods"`
	Conditions    string   `yaml:"conditions"`
	SkillRoll     string   `yaml:"skill_roll"` // <skill>/<attribute>[/<difficulty>]
	Prerequisites []string `yaml:"prerequisites"`
	LeadsTo       []string `yaml:"leads_to"`
	Tags          []string `yaml:"tags"`
	Revelation    string   `yaml:"revelation"`
}

// TemplateTrigger is a revelation trigger in a template.
type TemplateTrigger struct {
	ID         string   `yaml:"id"`
	Requires   []string `yaml:"requires"`
	Revelation string   `yaml:"revelation"`
	Unlocks    []string `yaml:"unlocks"`
}

// ParseTemplate decodes and validates a template.
func ParseTemplate(name string, data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	t.Name = name
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTemplate reads a template file. The template name is the file name
// without its extension.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	return ParseTemplate(strings.TrimSuffix(base, filepath.Ext(base)), data)
}

// Validate checks keys, references and every parsed field without
// touching a registry.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("template %s: missing title", t.Name)
	}
	if t.Difficulty == 0 {
		t.Difficulty = 1
	}
	if t.Difficulty < 1 || t.Difficulty > 5 {
		return fmt.Errorf("template %s: difficulty must be 1 to 5", t.Name)
	}
	for _, a := range t.Access {
		if _, err := ParseAccessRule(a); err != nil {
			return fmt.Errorf("template %s: %w", t.Name, err)
		}
	}
	keys := make(map[string]bool)
	for i, c := range t.Clues {
		if c.Key == "" || c.Name == "" {
			return fmt.Errorf("template %s: clue %d needs a key and a name", t.Name, i+1)
		}
		if keys[c.Key] {
			return fmt.Errorf("template %s: duplicate clue key %q", t.Name, c.Key)
		}
		keys[c.Key] = true
		if c.Type != "" {
			if _, err := ParseClueType(c.Type); err != nil {
				return fmt.Errorf("template %s: clue %s: %w", t.Name, c.Key, err)
			}
		}
		for _, m := range c.Methods {
			if _, err := ParseMethod(m); err != nil {
				return fmt.Errorf("template %s: clue %s: %w", t.Name, c.Key, err)
			}
		}
		if _, err := ParseConditions(c.Conditions); err != nil {
			return fmt.Errorf("template %s: clue %s: %w", t.Name, c.Key, err)
		}
		if c.SkillRoll != "" {
			if _, err := ParseSkillRoll(c.SkillRoll); err != nil {
				return fmt.Errorf("template %s: clue %s: %w", t.Name, c.Key, err)
			}
		}
	}
	ref := func(where, key string) error {
		if !keys[key] {
			return fmt.Errorf("template %s: %s refers to unknown clue %q", t.Name, where, key)
		}
		return nil
	}
	for _, c := range t.Clues {
		for _, k := range append(append([]string(nil), c.Prerequisites...), c.LeadsTo...) {
			if err := ref("clue "+c.Key, k); err != nil {
				return err
			}
		}
	}
	for _, tr := range t.Triggers {
		if tr.ID == "" || len(tr.Requires) == 0 {
			return fmt.Errorf("template %s: triggers need an id and required clues", t.Name)
		}
		for _, k := range append(append([]string(nil), tr.Requires...), tr.Unlocks...) {
			if err := ref("trigger "+tr.ID, k); err != nil {
				return err
			}
		}
	}
	return nil
}

// Instantiate creates a mystery from the template in reg. On failure the
// partial mystery is removed again.
func (t *Template) Instantiate(reg *Registry, by gamedb.DBRef) (*Mystery, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	m, err := reg.Create(t.Title, t.Description, t.Category, t.Difficulty, by)
	if err != nil {
		return nil, err
	}
	if err := t.fill(m); err != nil {
		if _, _, derr := reg.Delete(m.ID); derr != nil {
			log.Printf("mystery: rolling back template %q as #%d: %v", t.Name, m.ID, derr)
		}
		return nil, err
	}
	return m, nil
}

func (t *Template) fill(m *Mystery) error {
	var rules []Rule
	for _, a := range t.Access {
		r, _ := ParseAccessRule(a)
		rules = append(rules, r)
	}
	m.SetAccessRules(rules)

	ids := make(map[string]string, len(t.Clues))
	for _, c := range t.Clues {
		cond, _ := ParseConditions(c.Conditions)
		id := m.AddClue(c.Name, c.Description, &cond, c.Tags)
		ids[c.Key] = id
		if c.Type != "" {
			if err := m.SetClueType(id, ClueType(strings.ToLower(c.Type))); err != nil {
				return err
			}
		}
		if len(c.Methods) > 0 {
			methods := make([]Method, len(c.Methods))
			for i, s := range c.Methods {
				methods[i] = Method(s)
			}
			if err := m.SetClueRequiredMethods(id, methods); err != nil {
				return err
			}
		}
		if c.SkillRoll != "" {
			sr, _ := ParseSkillRoll(c.SkillRoll)
			if err := m.SetClueSkillRoll(id, sr); err != nil {
				return err
			}
		}
		if c.Revelation != "" {
			if err := m.SetRevelation(id, c.Revelation); err != nil {
				return err
			}
		}
	}
	mapKeys := func(keys []string) []string {
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = ids[k]
		}
		return out
	}
	for _, c := range t.Clues {
		if len(c.Prerequisites) > 0 {
			if err := m.SetCluePrerequisites(ids[c.Key], mapKeys(c.Prerequisites)); err != nil {
				return fmt.Errorf("template %s: clue %s: %w", t.Name, c.Key, err)
			}
		}
		if len(c.LeadsTo) > 0 {
			if err := m.SetClueLeads(ids[c.Key], mapKeys(c.LeadsTo)); err != nil {
				return fmt.Errorf("template %s: clue %s: %w", t.Name, c.Key, err)
			}
		}
	}
	for _, tr := range t.Triggers {
		if err := m.AddRevelationTrigger(tr.ID, mapKeys(tr.Requires), tr.Revelation, mapKeys(tr.Unlocks)); err != nil {
			return err
		}
	}
	return nil
}

// TemplateSet caches the templates found in a directory.
type TemplateSet struct {
	mu        sync.RWMutex
	dir       string
	templates map[string]*Template
}

// NewTemplateSet returns a set reading from dir. Call Reload to fill it.
func NewTemplateSet(dir string) *TemplateSet {
	return &TemplateSet{dir: dir, templates: make(map[string]*Template)}
}

// Dir returns the template directory.
func (ts *TemplateSet) Dir() string { return ts.dir }

// Reload rereads every *.yaml and *.yml file. Files that fail to parse are
// logged and skipped. It returns the number of templates loaded.
func (ts *TemplateSet) Reload() (int, error) {
	if ts.dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(ts.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("templates: %w", err)
	}
	loaded := make(map[string]*Template)
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		t, err := LoadTemplate(filepath.Join(ts.dir, e.Name()))
		if err != nil {
			log.Printf("mystery: skipping template %s: %v", e.Name(), err)
			continue
		}
		loaded[strings.ToLower(t.Name)] = t
	}
	ts.mu.Lock()
	ts.templates = loaded
	ts.mu.Unlock()
	return len(loaded), nil
}

// Get returns a template by name, ignoring case.
func (ts *TemplateSet) Get(name string) (*Template, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.templates[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// List returns all templates ordered by name.
func (ts *TemplateSet) List() []*Template {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]*Template, 0, len(ts.templates))
	for _, t := range ts.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
