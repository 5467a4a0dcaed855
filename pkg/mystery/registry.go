package mystery

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

// ClueObject is a thing placed in the world that stands for a clue.
type ClueObject struct {
	Ref       gamedb.DBRef
	MysteryID int
	ClueID    string
}

// Registry owns every mystery, indexed by id and by status, along with
// the clue objects placed for them.
type Registry struct {
	mu         sync.RWMutex
	mysteries  map[int]*Mystery
	byStatus   map[Status]map[int]*Mystery
	placements map[gamedb.DBRef]ClueObject
	nextID     int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{
		mysteries:  make(map[int]*Mystery),
		byStatus:   make(map[Status]map[int]*Mystery),
		placements: make(map[gamedb.DBRef]ClueObject),
		nextID:     1,
	}
	for _, s := range Statuses {
		r.byStatus[s] = make(map[int]*Mystery)
	}
	return r
}

// Create adds a new active mystery with the next free id.
func (r *Registry) Create(title, description, category string, difficulty int, by gamedb.DBRef) (*Mystery, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("mystery title cannot be empty")
	}
	if difficulty < 1 || difficulty > 5 {
		return nil, fmt.Errorf("difficulty must be a number from 1 to 5")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := New(r.nextID, title, description, category, difficulty, by)
	r.attach(m)
	return m, nil
}

// attach indexes m and hooks its status changes. Caller holds r.mu.
func (r *Registry) attach(m *Mystery) {
	m.init()
	m.onStatus = r.moved
	r.mysteries[m.ID] = m
	if r.byStatus[m.Status] == nil {
		r.byStatus[m.Status] = make(map[int]*Mystery)
	}
	r.byStatus[m.Status][m.ID] = m
	if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
}

// moved keeps the status index in step with a mystery's status. It runs
// with the mystery's lock held, so it must not call back into m.
func (r *Registry) moved(m *Mystery, from, to Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mysteries[m.ID]; !ok {
		return
	}
	delete(r.byStatus[from], m.ID)
	if r.byStatus[to] == nil {
		r.byStatus[to] = make(map[int]*Mystery)
	}
	r.byStatus[to][m.ID] = m
}

// Load replaces the registry contents with stored mysteries and
// placements.
func (r *Registry) Load(ms []*Mystery, placements []ClueObject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mysteries = make(map[int]*Mystery)
	r.byStatus = make(map[Status]map[int]*Mystery)
	for _, s := range Statuses {
		r.byStatus[s] = make(map[int]*Mystery)
	}
	r.placements = make(map[gamedb.DBRef]ClueObject)
	for _, m := range ms {
		r.attach(m)
	}
	for _, p := range placements {
		if _, ok := r.mysteries[p.MysteryID]; ok {
			r.placements[p.Ref] = p
		}
	}
}

// Get returns the mystery with the given id.
func (r *Registry) Get(id int) (*Mystery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mysteries[id]
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ErrMysteryNotFound, id)
	}
	return m, nil
}

// Delete removes a mystery along with its clue placements. The removed
// mystery and placements are returned so callers can clean up the world
// objects and character records that referred to them.
func (r *Registry) Delete(id int) (*Mystery, []ClueObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mysteries[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: #%d", ErrMysteryNotFound, id)
	}
	delete(r.mysteries, id)
	for _, idx := range r.byStatus {
		delete(idx, id)
	}
	var removed []ClueObject
	for ref, p := range r.placements {
		if p.MysteryID == id {
			removed = append(removed, p)
			delete(r.placements, ref)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Ref < removed[j].Ref })
	return m, removed, nil
}

// Active returns the active mysteries ordered by id.
func (r *Registry) Active() []*Mystery {
	return r.ByStatus(StatusActive)
}

// ByStatus returns the mysteries in one status ordered by id.
func (r *Registry) ByStatus(s Status) []*Mystery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortMysteries(r.byStatus[s])
}

// All returns every mystery ordered by id.
func (r *Registry) All() []*Mystery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortMysteries(r.mysteries)
}

// Count returns the number of mysteries in each status.
func (r *Registry) Count() map[Status]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Status]int, len(r.byStatus))
	for s, idx := range r.byStatus {
		out[s] = len(idx)
	}
	return out
}

func sortMysteries(set map[int]*Mystery) []*Mystery {
	out := make([]*Mystery, 0, len(set))
	for _, m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---------- Clue objects ----------

// Place records that obj.Ref stands for a clue. The mystery and clue must
// exist.
func (r *Registry) Place(obj ClueObject) error {
	m, err := r.Get(obj.MysteryID)
	if err != nil {
		return err
	}
	if _, err := m.Clue(obj.ClueID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mysteries[obj.MysteryID]; !ok {
		return fmt.Errorf("%w: #%d", ErrMysteryNotFound, obj.MysteryID)
	}
	r.placements[obj.Ref] = obj
	return nil
}

// Unplace forgets the placement for ref.
func (r *Registry) Unplace(ref gamedb.DBRef) (ClueObject, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.placements[ref]
	if ok {
		delete(r.placements, ref)
	}
	return p, ok
}

// Placement returns the clue ref stands for.
func (r *Registry) Placement(ref gamedb.DBRef) (ClueObject, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.placements[ref]
	return p, ok
}

// Placements lists clue objects for one mystery, or all of them when
// mysteryID is 0, ordered by ref.
func (r *Registry) Placements(mysteryID int) []ClueObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ClueObject
	for _, p := range r.placements {
		if mysteryID == 0 || p.MysteryID == mysteryID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}
