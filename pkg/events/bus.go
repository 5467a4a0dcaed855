package events

import (
	"slices"
	"sync"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// watcher is a global subscriber and the event types it asked for. A nil
// set means every type.
type watcher struct {
	sub   Subscriber
	types map[EventType]bool
}

func (w watcher) wants(t EventType) bool {
	return w.types == nil || w.types[t]
}

// Bus routes events to the sessions of the character they concern, and to
// watchers (journal, metrics) that see everything of the types they chose.
type Bus struct {
	mu       sync.RWMutex
	players  map[gamedb.DBRef][]Subscriber
	watchers []watcher
}

func NewBus() *Bus {
	return &Bus{players: make(map[gamedb.DBRef][]Subscriber)}
}

// Subscribe adds sub to player's recipients.
func (b *Bus) Subscribe(player gamedb.DBRef, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.players[player] = append(b.players[player], sub)
}

// Unsubscribe removes sub from player's recipients.
func (b *Bus) Unsubscribe(player gamedb.DBRef, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setPlayer(player, slices.DeleteFunc(b.players[player], func(s Subscriber) bool { return s == sub }))
}

func (b *Bus) setPlayer(player gamedb.DBRef, subs []Subscriber) {
	if len(subs) == 0 {
		delete(b.players, player)
		return
	}
	b.players[player] = subs
}

// SubscribeGlobal registers sub for every event of the given types, whoever
// it is addressed to. With no types it receives everything.
func (b *Bus) SubscribeGlobal(sub Subscriber, types ...EventType) {
	w := watcher{sub: sub}
	if len(types) > 0 {
		w.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			w.types[t] = true
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchers = append(b.watchers, w)
}

func (b *Bus) recipients(player gamedb.DBRef) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.players[player])
}

func (b *Bus) notifyWatchers(ev Event) {
	b.mu.RLock()
	ws := slices.Clone(b.watchers)
	b.mu.RUnlock()
	for _, w := range ws {
		if w.wants(ev.Type) && !w.sub.Closed() {
			w.sub.Receive(ev)
		}
	}
}

func deliver(subs []Subscriber, ev Event) {
	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// Emit delivers ev to the sessions of ev.Player and to the watchers.
func (b *Bus) Emit(ev Event) {
	deliver(b.recipients(ev.Player), ev)
	b.notifyWatchers(ev)
}

// EmitToPlayer is Emit with the recipient overridden.
func (b *Bus) EmitToPlayer(player gamedb.DBRef, ev Event) {
	ev.Player = player
	b.Emit(ev)
}

// EmitToRoom delivers ev to every character in room.
func (b *Bus) EmitToRoom(db *gamedb.Database, room gamedb.DBRef, ev Event) {
	b.EmitToRoomExcept(db, room, gamedb.Nothing, ev)
}

// EmitToRoomExcept delivers ev to every character in room but except.
// Watchers get a single copy with Room set.
func (b *Bus) EmitToRoomExcept(db *gamedb.Database, room, except gamedb.DBRef, ev Event) {
	if _, ok := db.Objects[room]; !ok {
		return
	}
	ev.Room = room
	for _, ref := range db.SafeContents(room) {
		if ref == except {
			continue
		}
		each := ev
		each.Player = ref
		deliver(b.recipients(ref), each)
	}
	b.notifyWatchers(ev)
}

// PlayerSubscribers returns the number of sessions subscribed for player.
func (b *Bus) PlayerSubscribers(player gamedb.DBRef) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.players[player])
}

// Cleanup drops closed subscribers and watchers.
func (b *Bus) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	closed := func(s Subscriber) bool { return s.Closed() }
	for player, subs := range b.players {
		b.setPlayer(player, slices.DeleteFunc(subs, closed))
	}
	b.watchers = slices.DeleteFunc(b.watchers, func(w watcher) bool { return w.sub.Closed() })
}
