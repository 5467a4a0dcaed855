package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS journal (
	id        TEXT PRIMARY KEY,
	at        INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	mystery   INTEGER NOT NULL,
	clue      TEXT NOT NULL DEFAULT '',
	character INTEGER NOT NULL,
	source    INTEGER NOT NULL,
	method    TEXT NOT NULL DEFAULT '',
	summary   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS journal_mystery_at ON journal(mystery, at);
`

// JournalEntry is one row of the investigation journal.
type JournalEntry struct {
	ID        string       `json:"id"`
	At        time.Time    `json:"at"`
	Kind      string       `json:"kind"`
	Mystery   int          `json:"mystery"`
	Clue      string       `json:"clue,omitempty"`
	Character gamedb.DBRef `json:"character"`
	Source    gamedb.DBRef `json:"source"`
	Method    string       `json:"method,omitempty"`
	Summary   string       `json:"summary"`
}

type journalOp struct {
	entry *JournalEntry
	done  chan struct{} // non-nil for a flush marker
}

// Journal is an append-only SQLite log of investigation events. It
// subscribes to the event bus as a global subscriber and writes from its
// own goroutine so command handlers never wait on disk.
type Journal struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	closed bool
	ops    chan journalOp
	wg     sync.WaitGroup
}

// OpenJournal opens (or creates) the journal database with WAL mode and a
// busy timeout, and starts the writer.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	// One connection keeps ":memory:" journals coherent across calls.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	j := &Journal{
		db:   db,
		path: path,
		ops:  make(chan journalOp, 256),
	}
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

// Path returns the filesystem path of the journal database.
func (j *Journal) Path() string { return j.path }

// Receive implements events.Subscriber. Only investigation events that
// carry a mystery id are kept.
func (j *Journal) Receive(ev events.Event) {
	e := journalEntry(ev)
	if e == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.ops <- journalOp{entry: e}:
	default:
		log.Printf("journal: queue full, dropped %s for mystery #%d", e.Kind, e.Mystery)
	}
}

// Closed implements events.Subscriber.
func (j *Journal) Closed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closed
}

var _ events.Subscriber = (*Journal)(nil)

func journalEntry(ev events.Event) *JournalEntry {
	if ev.Mystery == 0 {
		return nil
	}
	switch ev.Type {
	case events.EvDiscovery, events.EvRevelation, events.EvRevoke, events.EvMystery:
	default:
		return nil
	}
	e := &JournalEntry{
		ID:        uuid.NewString(),
		At:        time.Now(),
		Kind:      ev.Type.String(),
		Mystery:   ev.Mystery,
		Clue:      ev.Clue,
		Character: ev.Player,
		Source:    ev.Source,
	}
	if method, ok := ev.Data["method"].(string); ok {
		e.Method = method
	}
	if action, ok := ev.Data["action"].(string); ok && e.Method == "" {
		e.Method = action
	}
	summary, _, _ := strings.Cut(ev.Text, "\n")
	e.Summary = summary
	return e
}

func (j *Journal) writer() {
	defer j.wg.Done()
	for op := range j.ops {
		if op.entry != nil {
			if err := j.insert(op.entry); err != nil {
				log.Printf("journal: insert %s: %v", op.entry.ID, err)
			}
		}
		if op.done != nil {
			close(op.done)
		}
	}
}

func (j *Journal) insert(e *JournalEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO journal (id, at, kind, mystery, clue, character, source, method, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.UnixNano(), e.Kind, e.Mystery, e.Clue, int(e.Character), int(e.Source), e.Method, e.Summary)
	return err
}

// Flush waits until every entry queued so far has been written.
func (j *Journal) Flush() {
	done := make(chan struct{})
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.ops <- journalOp{done: done}
	j.mu.Unlock()
	<-done
}

// Recent returns up to limit entries for a mystery, newest first.
func (j *Journal) Recent(mysteryID, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, at, kind, mystery, clue, character, source, method, summary
		 FROM journal WHERE mystery = ? ORDER BY at DESC, rowid DESC LIMIT ?`,
		mysteryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var at int64
		var char, src int
		if err := rows.Scan(&e.ID, &at, &e.Kind, &e.Mystery, &e.Clue, &char, &src, &e.Method, &e.Summary); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, at)
		e.Character = gamedb.DBRef(char)
		e.Source = gamedb.DBRef(src)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close stops accepting events, drains the queue and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.ops)
	j.mu.Unlock()
	j.wg.Wait()
	return j.db.Close()
}
