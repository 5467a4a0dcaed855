package server

import (
	"fmt"
	"log"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/boltstore"
	"github.com/crystal-mush/chroniclemush/pkg/dice"
	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
	"github.com/crystal-mush/chroniclemush/pkg/sheet"
)

// Game holds the world and every subsystem commands reach into.
//
// mu is the world lock. Commands, logins and web handlers all run under
// it, so handlers may read and write DB without further locking.
type Game struct {
	mu sync.Mutex

	DB        *gamedb.Database
	Conns     *ConnManager
	Commands  map[string]*Command
	NextRef   gamedb.DBRef
	Store     *boltstore.Store // nil = no bbolt persistence
	Conf      *GameConf
	EventBus  *events.Bus
	Mysteries *mystery.Registry
	Resolver  *mystery.Resolver
	Templates *mystery.TemplateSet
	Journal   *Journal // nil = no SQLite journal
	StartTime time.Time
}

// NewGame creates a new Game instance around db with a freshly seeded
// dice roller.
func NewGame(db *gamedb.Database) *Game {
	roller, err := dice.NewSecureRoller()
	if err != nil {
		log.Printf("dice: secure seed unavailable (%v), using clock seed", err)
		roller = dice.NewRoller(time.Now().UnixNano())
	}
	return NewGameWithRoller(db, roller)
}

// NewGameWithRoller is NewGame with an explicit dice roller.
func NewGameWithRoller(db *gamedb.Database, roller dice.Roller) *Game {
	// Nobody is connected at startup.
	maxRef := gamedb.DBRef(-1)
	for ref, obj := range db.Objects {
		if ref > maxRef {
			maxRef = ref
		}
		obj.Flags[1] &^= gamedb.Flag2Connected
	}
	bus := events.NewBus()
	cm := NewConnManager()
	cm.EventBus = bus
	reg := mystery.NewRegistry()
	return &Game{
		DB:        db,
		Conns:     cm,
		Commands:  InitCommands(),
		NextRef:   maxRef + 1,
		Conf:      DefaultGameConf(),
		EventBus:  bus,
		Mysteries: reg,
		Resolver:  mystery.NewResolver(reg, roller),
		Templates: mystery.NewTemplateSet(""),
		StartTime: time.Now(),
	}
}

// ApplyGameConf installs gc and pushes its settings into the subsystems.
func (g *Game) ApplyGameConf(gc *GameConf) {
	g.Conf = gc
	if gc.ExceptionalAt > 0 {
		g.Resolver.ExceptionalAt = gc.ExceptionalAt
	}
	if gc.ExceptionalMax > 0 {
		g.Resolver.ExceptionalMax = gc.ExceptionalMax
	}
	g.Templates = mystery.NewTemplateSet(gc.TemplateDir)
	if n, err := g.Templates.Reload(); err != nil {
		log.Printf("Game config: %v", err)
	} else if gc.TemplateDir != "" {
		log.Printf("Game config: %d mystery templates from %s", n, gc.TemplateDir)
	}
	log.Printf("Game config applied: mud_name=%q start_room=#%d exceptional=%d/%d",
		gc.MudName, gc.PlayerStartingRoom, g.Resolver.ExceptionalAt, g.Resolver.ExceptionalMax)
}

// StartingRoom returns the configured player starting room.
func (g *Game) StartingRoom() gamedb.DBRef {
	if g.Conf != nil {
		return gamedb.DBRef(g.Conf.PlayerStartingRoom)
	}
	return 0
}

// MudName returns the configured game name.
func (g *Game) MudName() string {
	if g.Conf != nil && g.Conf.MudName != "" {
		return g.Conf.MudName
	}
	return "ChronicleMUSH"
}

// ---------- Persistence ----------

// PersistObject writes a single object to the bolt store (no-op if Store is nil).
func (g *Game) PersistObject(obj *gamedb.Object) {
	if g.Store == nil || obj == nil {
		return
	}
	if err := g.Store.PutObject(obj); err != nil {
		log.Printf("ERROR: persist object #%d: %v", obj.DBRef, err)
	}
}

// PersistObjects writes multiple objects to the bolt store in one transaction.
func (g *Game) PersistObjects(objs ...*gamedb.Object) {
	if g.Store == nil {
		return
	}
	if err := g.Store.PutObjects(objs...); err != nil {
		log.Printf("ERROR: persist objects: %v", err)
	}
}

// PersistMystery writes a mystery through to the bolt store.
func (g *Game) PersistMystery(m *mystery.Mystery) {
	if g.Store == nil || m == nil {
		return
	}
	if err := g.Store.PutMystery(m); err != nil {
		log.Printf("ERROR: persist mystery #%d: %v", m.ID, err)
	}
}

// ---------- Names and matching ----------

// DisplayName returns the display name of an object (before the first semicolon).
func DisplayName(name string) string {
	if idx := strings.IndexByte(name, ';'); idx >= 0 {
		return name[:idx]
	}
	return name
}

// PlayerName returns the name of a player.
func (g *Game) PlayerName(player gamedb.DBRef) string {
	if obj, ok := g.DB.Objects[player]; ok {
		return DisplayName(obj.Name)
	}
	return "Unknown"
}

// PlayerLocation returns the location of a player.
func (g *Game) PlayerLocation(player gamedb.DBRef) gamedb.DBRef {
	if obj, ok := g.DB.Objects[player]; ok {
		return obj.Location
	}
	return gamedb.Nothing
}

// ObjName renders an object as Name(#ref).
func (g *Game) ObjName(ref gamedb.DBRef) string {
	return fmt.Sprintf("%s(#%d)", g.PlayerName(ref), ref)
}

func parseDBRef(s string) (gamedb.DBRef, bool) {
	if len(s) < 2 || s[0] != '#' {
		return gamedb.Nothing, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return gamedb.Nothing, false
	}
	return gamedb.DBRef(n), true
}

// wordPrefix reports whether sub begins at a word boundary of src. Both
// are lowercase; sub may span words ("old d" matches "old desk").
func wordPrefix(src, sub string) bool {
	if sub == "" {
		return false
	}
	for i := range len(src) {
		if (i == 0 || !isAlnumByte(src[i-1])) && strings.HasPrefix(src[i:], sub) {
			return true
		}
	}
	return false
}

func isAlnumByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

type matchRank int

const (
	noMatch matchRank = iota
	wordMatch
	exactMatch
)

// rankName scores want against each ;-separated alias of name.
func rankName(name, want string) matchRank {
	best := noMatch
	for alias := range strings.SplitSeq(strings.ToLower(name), ";") {
		alias = strings.TrimSpace(alias)
		switch {
		case alias == want:
			return exactMatch
		case wordPrefix(alias, want):
			best = wordMatch
		}
	}
	return best
}

// bestMatch returns the first exact match in refs, else the first word
// match.
func (g *Game) bestMatch(refs []gamedb.DBRef, want string) gamedb.DBRef {
	found := gamedb.Nothing
	for _, ref := range refs {
		obj, ok := g.DB.Objects[ref]
		if !ok || obj.IsGoing() {
			continue
		}
		switch rankName(obj.Name, want) {
		case exactMatch:
			return ref
		case wordMatch:
			if found == gamedb.Nothing {
				found = ref
			}
		}
	}
	return found
}

// MatchObject resolves what player calls name: me, here, #ref, *player,
// or something in the room, then something carried.
func (g *Game) MatchObject(player gamedb.DBRef, name string) gamedb.DBRef {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return gamedb.Nothing
	case strings.EqualFold(name, "me"):
		return player
	case strings.EqualFold(name, "here"):
		return g.PlayerLocation(player)
	case name[0] == '*':
		return LookupPlayer(g.DB, strings.TrimSpace(name[1:]))
	case name[0] == '#':
		if ref, ok := parseDBRef(name); ok && g.DB.Objects[ref] != nil {
			return ref
		}
		return gamedb.Nothing
	}

	obj, ok := g.DB.Objects[player]
	if !ok {
		return gamedb.Nothing
	}
	want := strings.ToLower(name)
	if found := g.bestMatch(g.DB.SafeContents(obj.Location), want); found != gamedb.Nothing {
		return found
	}
	return g.bestMatch(g.DB.SafeContents(player), want)
}

// FindCharacter resolves "me", "#ref" or a player name anywhere in the
// game to a player dbref.
func (g *Game) FindCharacter(actor gamedb.DBRef, name string) gamedb.DBRef {
	name = strings.TrimPrefix(strings.TrimSpace(name), "*")
	if name == "" {
		return gamedb.Nothing
	}
	if strings.EqualFold(name, "me") {
		return actor
	}
	if ref, ok := parseDBRef(name); ok {
		if obj, exists := g.DB.Objects[ref]; exists && obj.IsCharacter() {
			return ref
		}
		return gamedb.Nothing
	}
	if g.Store != nil {
		if ref, ok := g.Store.LookupPlayer(name); ok {
			if obj, exists := g.DB.Objects[ref]; exists && !obj.IsGoing() {
				return ref
			}
		}
	}
	return LookupPlayer(g.DB, name)
}

// Sheet returns the character sheet of ref.
func (g *Game) Sheet(ref gamedb.DBRef) *sheet.ObjectSheet {
	return sheet.New(g.DB, ref)
}

// ---------- World ----------

// CreateObject allocates a new object of objType owned by owner.
func (g *Game) CreateObject(name string, objType gamedb.ObjectType, owner gamedb.DBRef) gamedb.DBRef {
	ref := g.NextRef
	g.NextRef++

	now := time.Now()
	obj := &gamedb.Object{
		DBRef:      ref,
		Name:       name,
		Location:   gamedb.Nothing,
		Contents:   gamedb.Nothing,
		Exits:      gamedb.Nothing,
		Link:       gamedb.Nothing,
		Next:       gamedb.Nothing,
		Owner:      owner,
		Flags:      [3]int{int(objType), 0, 0},
		LastAccess: now,
		LastMod:    now,
	}
	g.DB.Objects[ref] = obj
	if int(ref) >= g.DB.Size {
		g.DB.Size = int(ref) + 1
	}
	g.PersistObject(obj)
	return ref
}

// DestroyObject removes ref from its location and from the database.
func (g *Game) DestroyObject(ref gamedb.DBRef) {
	obj, ok := g.DB.Objects[ref]
	if !ok {
		return
	}
	loc := obj.Location
	g.RemoveFromContents(loc, ref)
	delete(g.DB.Objects, ref)
	if g.Store == nil {
		return
	}
	if locObj, ok := g.DB.Objects[loc]; ok {
		g.PersistObject(locObj)
	}
	if err := g.Store.DeleteObject(ref); err != nil {
		log.Printf("ERROR: delete object #%d: %v", ref, err)
	}
}

// RemoveFromContents unlinks obj from loc's contents chain.
func (g *Game) RemoveFromContents(loc, obj gamedb.DBRef) {
	locObj, ok := g.DB.Objects[loc]
	o, found := g.DB.Objects[obj]
	if !ok || !found {
		return
	}
	prev := locObj
	for _, ref := range g.DB.SafeContents(loc) {
		if ref == obj {
			if prev == locObj {
				locObj.Contents = o.Next
			} else {
				prev.Next = o.Next
			}
			o.Next = gamedb.Nothing
			return
		}
		if prev = g.DB.Objects[ref]; prev == nil {
			return
		}
	}
}

// AddToContents puts obj at the head of dest's contents unless it is
// already there.
func (g *Game) AddToContents(dest, obj gamedb.DBRef) {
	destObj, ok := g.DB.Objects[dest]
	o, found := g.DB.Objects[obj]
	if !ok || !found || slices.Contains(g.DB.SafeContents(dest), obj) {
		return
	}
	o.Location = dest
	o.Next = destObj.Contents
	destObj.Contents = obj
}

// exitNames lists the visible exits of room.
func (g *Game) exitNames(room *gamedb.Object) []string {
	var names []string
	seen := make(map[gamedb.DBRef]bool)
	for ex := room.Exits; ex != gamedb.Nothing && !seen[ex]; {
		seen[ex] = true
		exObj, ok := g.DB.Objects[ex]
		if !ok {
			break
		}
		if !exObj.HasFlag(gamedb.FlagDark) {
			names = append(names, DisplayName(exObj.Name))
		}
		ex = exObj.Next
	}
	return names
}

// ShowRoom displays a room to a player.
func (g *Game) ShowRoom(d *Descriptor, room gamedb.DBRef) {
	roomObj, ok := g.DB.Objects[room]
	if !ok {
		d.Send("You see nothing special.")
		return
	}
	if IsStaff(g, d.Player) {
		d.Send(g.ObjName(room))
	} else {
		d.Send(DisplayName(roomObj.Name))
	}
	if desc := roomObj.Attr(gamedb.A_DESC); desc != "" {
		d.Send(desc)
	}

	var players, things []string
	for _, ref := range g.DB.SafeContents(room) {
		obj, ok := g.DB.Objects[ref]
		if !ok || ref == d.Player || obj.IsGoing() {
			continue
		}
		switch obj.ObjType() {
		case gamedb.TypePlayer:
			if obj.HasFlag2(gamedb.Flag2Connected) {
				players = append(players, DisplayName(obj.Name))
			}
		case gamedb.TypeThing:
			if !obj.HasFlag(gamedb.FlagDark) {
				things = append(things, DisplayName(obj.Name))
			}
		}
	}
	if len(players) > 0 {
		d.Send("Players: " + strings.Join(players, ", "))
	}
	if len(things) > 0 {
		d.Send("Contents:")
		for _, name := range things {
			d.Send("  " + name)
		}
	}

	exits := g.exitNames(roomObj)
	if len(exits) > 0 {
		d.Send("Obvious exits: " + strings.Join(exits, " "))
	}
}

// ShowObject displays one object's name and description. Placed clue
// objects hint that they can be examined.
func (g *Game) ShowObject(d *Descriptor, ref gamedb.DBRef) {
	obj, ok := g.DB.Objects[ref]
	if !ok {
		d.Send("I don't see that here.")
		return
	}
	if IsStaff(g, d.Player) {
		d.Send(g.ObjName(ref))
	} else {
		d.Send(DisplayName(obj.Name))
	}
	if desc := obj.Attr(gamedb.A_DESC); desc != "" {
		d.Send(desc)
	} else {
		d.Send("You see nothing special.")
	}
	if obj.HasFlag2(gamedb.Flag2ClueObject) {
		d.Send(fmt.Sprintf("Something about it deserves a closer look. (+mystery/examine %s)", DisplayName(obj.Name)))
	}
}

type whoLine struct {
	name  string
	onFor time.Duration
	idle  time.Duration
	loc   gamedb.DBRef
	cmds  int
	host  string
}

// ShowWho lists connected sessions by name. Staff also see location,
// command count and host.
func (g *Game) ShowWho(d *Descriptor) {
	staff := d.State == ConnConnected && IsStaff(g, d.Player)
	now := time.Now()

	var lines []whoLine
	for _, dd := range g.Conns.AllDescriptors() {
		if dd.State != ConnConnected {
			continue
		}
		host, _, err := net.SplitHostPort(dd.Addr)
		if err != nil {
			host = dd.Addr
		}
		lines = append(lines, whoLine{
			name:  g.PlayerName(dd.Player),
			onFor: now.Sub(dd.ConnTime),
			idle:  now.Sub(dd.LastCmd),
			loc:   g.PlayerLocation(dd.Player),
			cmds:  dd.CmdCount,
			host:  host,
		})
	}
	slices.SortStableFunc(lines, func(a, b whoLine) int { return strings.Compare(a.name, b.name) })

	if staff {
		d.Send("Player Name        On For Idle   Room    Cmds   Host")
	} else {
		d.Send(fmt.Sprintf("%-16s%9s %4s", "Player Name", "On For", "Idle"))
	}
	for _, l := range lines {
		row := fmt.Sprintf("%-16s%9s %4s", l.name, FormatConnTime(l.onFor), FormatIdleTime(l.idle))
		if staff {
			row += fmt.Sprintf("   #%-6d%5d   %-25s", l.loc, l.cmds, l.host)
		}
		d.Send(row)
	}
	d.Send(fmt.Sprintf("%d Players logged in.", len(lines)))
}

// DisconnectPlayer announces the departure, clears CONNECTED on the last
// connection and closes d.
func (g *Game) DisconnectPlayer(d *Descriptor) {
	if d.State == ConnConnected {
		name := g.PlayerName(d.Player)
		loc := g.PlayerLocation(d.Player)
		if len(g.Conns.GetByPlayer(d.Player)) <= 1 {
			if obj, ok := g.DB.Objects[d.Player]; ok {
				obj.Flags[1] &^= gamedb.Flag2Connected
			}
		}
		g.EmitRoomExcept(loc, d.Player, events.Event{
			Type:   events.EvDisconnect,
			Source: d.Player,
			Text:   fmt.Sprintf("%s has disconnected.", name),
			Data:   map[string]any{"player": name},
		})
	}
	d.Close()
}

// ---------- Events ----------

// Emit delivers an event to one player and the global subscribers.
func (g *Game) Emit(player gamedb.DBRef, ev events.Event) {
	g.EventBus.EmitToPlayer(player, ev)
}

// EmitRoom delivers an event to everyone in room.
func (g *Game) EmitRoom(room gamedb.DBRef, ev events.Event) {
	g.EventBus.EmitToRoom(g.DB, room, ev)
}

// EmitRoomExcept delivers an event to everyone in room but except.
func (g *Game) EmitRoomExcept(room gamedb.DBRef, except gamedb.DBRef, ev events.Event) {
	g.EventBus.EmitToRoomExcept(g.DB, room, except, ev)
}

// NotifyStaff sends msg to every connected staff member.
func (g *Game) NotifyStaff(msg string) {
	for _, ref := range g.Conns.ConnectedPlayers() {
		if IsStaff(g, ref) {
			g.Conns.SendToPlayer(ref, msg)
		}
	}
}
