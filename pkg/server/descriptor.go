package server

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

// TransportType identifies how a Descriptor reaches its client.
type TransportType int

const (
	TransportTCP       TransportType = iota // telnet line protocol
	TransportWebSocket                      // JSON messages over /ws
	TransportAPI                            // one REST request; output captured
)

func (t TransportType) String() string {
	switch t {
	case TransportWebSocket:
		return "websocket"
	case TransportAPI:
		return "api"
	default:
		return "tcp"
	}
}

// ConnState tracks the state of a connection.
type ConnState int

const (
	ConnLogin     ConnState = iota // awaiting connect/create
	ConnConnected                  // bound to a character
)

// Descriptor is one client session. Every investigation command runs on
// behalf of a Descriptor, and it receives the bus events for its character.
type Descriptor struct {
	ID        int
	Conn      net.Conn
	State     ConnState
	Player    gamedb.DBRef
	Addr      string
	ConnTime  time.Time
	LastCmd   time.Time
	Retries   int
	CmdCount  int
	Transport TransportType

	// SendFunc replaces the line writer (WebSocket frames, captured REST
	// output, tests).
	SendFunc func(msg string)
	// ReceiveFunc replaces plain-text event delivery.
	ReceiveFunc func(ev events.Event)

	mu     sync.Mutex
	closed bool
}

// NewDescriptor wraps a telnet connection.
func NewDescriptor(id int, conn net.Conn) *Descriptor {
	now := time.Now()
	return &Descriptor{
		ID:       id,
		Conn:     conn,
		State:    ConnLogin,
		Player:   gamedb.Nothing,
		Addr:     conn.RemoteAddr().String(),
		ConnTime: now,
		LastCmd:  now,
		Retries:  3,
	}
}

// newCaptureDescriptor acts as player for a single REST request and
// collects everything sent to it.
func newCaptureDescriptor(player gamedb.DBRef, addr string) (*Descriptor, *[]string) {
	lines := []string{}
	now := time.Now()
	d := &Descriptor{
		ID:        -1,
		Conn:      nullConn{},
		State:     ConnConnected,
		Player:    player,
		Addr:      addr,
		ConnTime:  now,
		LastCmd:   now,
		Transport: TransportAPI,
	}
	d.SendFunc = func(msg string) { lines = append(lines, msg) }
	return d, &lines
}

// Send writes one line to the client.
func (d *Descriptor) Send(msg string) {
	if d.SendFunc != nil {
		d.SendFunc(msg)
		return
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\r\n"
	}
	d.SendNoNewline(msg)
}

// SendNoNewline writes msg as is. Used for the login banner.
func (d *Descriptor) SendNoNewline(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.Conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	d.Conn.Write([]byte(msg))
}

func (d *Descriptor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		d.Conn.Close()
	}
}

func (d *Descriptor) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Receive implements events.Subscriber. Events without text (pure data for
// web clients) are skipped on the line transports.
func (d *Descriptor) Receive(ev events.Event) {
	if d.ReceiveFunc != nil {
		d.ReceiveFunc(ev)
		return
	}
	if ev.Text != "" {
		d.Send(ev.Text)
	}
}

// Closed implements events.Subscriber.
func (d *Descriptor) Closed() bool {
	return d.IsClosed()
}

var _ events.Subscriber = (*Descriptor)(nil)

var errNoConn = errors.New("no connection")

// nullConn backs descriptors that have no socket of their own.
type nullConn struct{}

func (nullConn) Read([]byte) (int, error)         { return 0, errNoConn }
func (nullConn) Write(b []byte) (int, error)      { return len(b), nil }
func (nullConn) Close() error                     { return nil }
func (nullConn) LocalAddr() net.Addr              { return nil }
func (nullConn) RemoteAddr() net.Addr             { return &net.TCPAddr{} }
func (nullConn) SetDeadline(time.Time) error      { return nil }
func (nullConn) SetReadDeadline(time.Time) error  { return nil }
func (nullConn) SetWriteDeadline(time.Time) error { return nil }

// ConnManager tracks live sessions. A character may hold several at once;
// each one is subscribed to the character's events on login.
type ConnManager struct {
	mu          sync.RWMutex
	descriptors map[int]*Descriptor
	nextID      int
	byPlayer    map[gamedb.DBRef][]*Descriptor
	EventBus    *events.Bus // nil disables event delivery
}

func NewConnManager() *ConnManager {
	return &ConnManager{
		descriptors: make(map[int]*Descriptor),
		byPlayer:    make(map[gamedb.DBRef][]*Descriptor),
		nextID:      1,
	}
}

func (cm *ConnManager) Add(d *Descriptor) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.descriptors[d.ID] = d
}

// Remove forgets d and drops its event subscription.
func (cm *ConnManager) Remove(d *Descriptor) {
	if cm.EventBus != nil && d.Player != gamedb.Nothing {
		cm.EventBus.Unsubscribe(d.Player, d)
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.descriptors, d.ID)
	if d.Player == gamedb.Nothing {
		return
	}
	rest := slices.DeleteFunc(cm.byPlayer[d.Player], func(o *Descriptor) bool { return o.ID == d.ID })
	if len(rest) == 0 {
		delete(cm.byPlayer, d.Player)
	} else {
		cm.byPlayer[d.Player] = rest
	}
}

// Login binds d to player and subscribes it to the player's events.
func (cm *ConnManager) Login(d *Descriptor, player gamedb.DBRef) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	d.State = ConnConnected
	d.Player = player
	cm.byPlayer[player] = append(cm.byPlayer[player], d)

	if cm.EventBus != nil {
		cm.EventBus.Subscribe(player, d)
	}
}

func (cm *ConnManager) NextID() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	id := cm.nextID
	cm.nextID++
	return id
}

// GetByPlayer returns a copy of player's sessions.
func (cm *ConnManager) GetByPlayer(player gamedb.DBRef) []*Descriptor {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return slices.Clone(cm.byPlayer[player])
}

// IsConnected reports whether player has at least one session. Share and
// collaborate use it to tell an absent character from a wrong name.
func (cm *ConnManager) IsConnected(player gamedb.DBRef) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.byPlayer[player]) > 0
}

// ConnectedPlayers returns connected characters in ascending ref order.
func (cm *ConnManager) ConnectedPlayers() []gamedb.DBRef {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	players := make([]gamedb.DBRef, 0, len(cm.byPlayer))
	for p := range cm.byPlayer {
		players = append(players, p)
	}
	slices.Sort(players)
	return players
}

// AllDescriptors returns every session ordered by ID.
func (cm *ConnManager) AllDescriptors() []*Descriptor {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	descs := make([]*Descriptor, 0, len(cm.descriptors))
	for _, d := range cm.descriptors {
		descs = append(descs, d)
	}
	slices.SortFunc(descs, func(a, b *Descriptor) int { return a.ID - b.ID })
	return descs
}

// ByTransport counts logged-in sessions per transport.
func (cm *ConnManager) ByTransport() map[TransportType]int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make(map[TransportType]int)
	for _, d := range cm.descriptors {
		if d.State == ConnConnected {
			out[d.Transport]++
		}
	}
	return out
}

// Count returns the number of sessions, logged in or not.
func (cm *ConnManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.descriptors)
}

// SendToPlayer writes msg to every session of player.
func (cm *ConnManager) SendToPlayer(player gamedb.DBRef, msg string) {
	for _, d := range cm.GetByPlayer(player) {
		d.Send(msg)
	}
}

var idleUnits = []struct {
	secs   int
	suffix string
}{{86400, "d"}, {3600, "h"}, {60, "m"}}

// FormatIdleTime renders d in its largest whole unit: 42s, 5m, 3h, 2d.
func FormatIdleTime(d time.Duration) string {
	secs := int(d.Seconds())
	for _, u := range idleUnits {
		if secs >= u.secs {
			return fmt.Sprintf("%d%s", secs/u.secs, u.suffix)
		}
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatConnTime renders d as hh:mm.
func FormatConnTime(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", secs/3600, (secs%3600)/60)
}
