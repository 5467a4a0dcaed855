package server

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mushcrypt "github.com/crystal-mush/chroniclemush/pkg/crypt"
	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

// ParseConnect parses a login-screen command into (command, user, password).
// Handles: "connect name password", "create name password" and quoted
// names with spaces.
func ParseConnect(msg string) (command, user, password string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", "", ""
	}

	parts := strings.SplitN(msg, " ", 2)
	command = strings.ToLower(parts[0])
	if len(parts) < 2 {
		return command, "", ""
	}

	rest := strings.TrimSpace(parts[1])
	if rest == "" {
		return command, "", ""
	}

	if rest[0] == '"' {
		if end := strings.Index(rest[1:], "\""); end >= 0 {
			user = rest[1 : end+1]
			password = strings.TrimSpace(rest[end+2:])
			return
		}
	}

	parts = strings.SplitN(rest, " ", 2)
	user = parts[0]
	if len(parts) > 1 {
		password = strings.TrimSpace(parts[1])
	}
	return
}

// LookupPlayer finds a player by name or ALIAS in the database.
func LookupPlayer(db *gamedb.Database, name string) gamedb.DBRef {
	name = strings.TrimSpace(name)
	if name == "" {
		return gamedb.Nothing
	}
	for _, ref := range db.Players() {
		obj := db.Objects[ref]
		if strings.EqualFold(DisplayName(obj.Name), name) {
			return ref
		}
		for _, alias := range strings.Split(obj.Attr(gamedb.A_ALIAS), ";") {
			if alias = strings.TrimSpace(alias); alias != "" && strings.EqualFold(alias, name) {
				return ref
			}
		}
	}
	return gamedb.Nothing
}

// CheckPassword verifies a password against the PASS attribute of player.
// It reports whether the stored hash is a legacy DES hash so the caller
// can upgrade it.
func CheckPassword(db *gamedb.Database, player gamedb.DBRef, password string) (ok, legacy bool) {
	obj, exists := db.Objects[player]
	if !exists {
		return false, false
	}
	stored := obj.Attr(gamedb.A_PASS)
	if stored == "" {
		return false, false
	}
	if !mushcrypt.CheckPassword(password, stored) {
		return false, false
	}
	return true, mushcrypt.IsLegacy(stored)
}

var errBadCredentials = errors.New("invalid credentials")

// authenticate resolves name and checks password for every login surface:
// telnet, WebSocket and the REST token endpoint. A legacy DES hash is
// rewritten as bcrypt on the first good login. Caller holds the world lock.
func (g *Game) authenticate(name, password string) (gamedb.DBRef, error) {
	player := g.FindCharacter(gamedb.Nothing, name)
	if player == gamedb.Nothing {
		return gamedb.Nothing, errBadCredentials
	}
	ok, legacy := CheckPassword(g.DB, player, password)
	if !ok {
		return gamedb.Nothing, errBadCredentials
	}
	if legacy {
		if err := SetPassword(g.DB, player, password); err != nil {
			log.Printf("login: password upgrade for #%d: %v", player, err)
		} else {
			g.PersistObject(g.DB.Objects[player])
			log.Printf("login: upgraded legacy password hash for #%d", player)
		}
	}
	return player, nil
}

// SetPassword stores a bcrypt hash of password on player.
func SetPassword(db *gamedb.Database, player gamedb.DBRef, password string) error {
	obj, ok := db.Objects[player]
	if !ok {
		return nil
	}
	hash, err := mushcrypt.Hash(password)
	if err != nil {
		return err
	}
	obj.SetAttr(gamedb.A_PASS, hash)
	return nil
}

// loginScreen handles one line from a session that has not connected yet.
// Caller holds the world lock.
func (s *Server) loginScreen(d *Descriptor, input string) {
	input = strings.TrimSpace(input)
	switch strings.ToUpper(input) {
	case "":
		return
	case "QUIT":
		d.Send("Goodbye!")
		d.Close()
		return
	case "WHO":
		s.Game.ShowWho(d)
		return
	}

	command, user, password := ParseConnect(input)
	switch {
	case strings.HasPrefix(command, "co"):
		s.connectCharacter(d, user, password)
	case strings.HasPrefix(command, "cr"):
		s.createCharacter(d, user, password)
	default:
		d.Send(fmt.Sprintf("Welcome to %s. Commands: connect, create, WHO, QUIT", s.Game.MudName()))
	}
}

func (s *Server) connectCharacter(d *Descriptor, user, password string) {
	if user == "" {
		d.Send("Usage: connect <name> <password>")
		return
	}
	g := s.Game
	player, err := g.authenticate(user, password)
	if err != nil {
		log.Printf("[%d] Failed login for %s from %s", d.ID, user, d.Addr)
		d.Send("Either that player does not exist, or has a different password.")
		if d.Retries--; d.Retries <= 0 {
			d.Send("Too many failed attempts. Disconnecting.")
			d.Close()
		}
		return
	}
	obj := g.DB.Objects[player]
	g.loginPlayer(d, player)
	log.Printf("[%d] Player %s(#%d) connected from %s", d.ID, obj.Name, player, d.Addr)
	d.Send(fmt.Sprintf("Welcome back, %s!", DisplayName(obj.Name)))
	g.ShowRoom(d, obj.Location)
	g.announceMysteries(d)
}

// characterNameProblem explains why name cannot be used for a new
// character, or returns "".
func (g *Game) characterNameProblem(name string) string {
	switch {
	case len(name) < 2:
		return "That name is too short."
	case strings.ContainsAny(name, "\";#*=/"):
		return "That name contains illegal characters."
	case g.FindCharacter(gamedb.Nothing, name) != gamedb.Nothing:
		return "That name is already taken."
	}
	return ""
}

func (s *Server) createCharacter(d *Descriptor, user, password string) {
	g := s.Game
	if g.Conf != nil && !g.Conf.AllowCreate {
		d.Send("Character creation is closed. Please contact staff.")
		return
	}
	if user == "" || password == "" {
		d.Send("Usage: create <name> <password>")
		return
	}
	if msg := g.characterNameProblem(user); msg != "" {
		d.Send(msg)
		return
	}

	ref := g.CreateObject(user, gamedb.TypePlayer, gamedb.Nothing)
	obj := g.DB.Objects[ref]
	obj.Owner = ref
	if err := SetPassword(g.DB, ref, password); err != nil {
		log.Printf("[%d] create %s: %v", d.ID, user, err)
		g.DestroyObject(ref)
		d.Send("Could not create that character. Please try again.")
		return
	}
	start := g.StartingRoom()
	obj.Link = start
	g.AddToContents(start, ref)
	g.PersistObjects(obj, g.DB.Objects[start])
	if g.Store != nil {
		g.Store.PutMeta()
		g.Store.UpdatePlayerIndex(obj, "")
	}
	log.Printf("[%d] New player %s(#%d) created from %s", d.ID, user, ref, d.Addr)

	g.loginPlayer(d, ref)
	d.Send(fmt.Sprintf("Welcome to %s, %s! Your character has been created as #%d.", g.MudName(), user, ref))
	d.Send("Set your sheet with +stat, then try +mystery to see what is stirring.")
	g.ShowRoom(d, start)
}

// loginPlayer binds d to player, marks the character connected and tells
// the room. Every transport logs in through here.
func (g *Game) loginPlayer(d *Descriptor, player gamedb.DBRef) {
	g.Conns.Login(d, player)
	obj := g.DB.Objects[player]
	obj.Flags[1] |= gamedb.Flag2Connected
	obj.LastAccess = time.Now()
	obj.SetAttr(gamedb.A_LAST, obj.LastAccess.Format(time.RFC1123))
	g.PersistObject(obj)
	name := DisplayName(obj.Name)
	g.EmitRoomExcept(obj.Location, player, events.Event{
		Type:   events.EvConnect,
		Source: player,
		Text:   name + " has connected.",
		Data:   map[string]any{"player": name},
	})
}

// announceMysteries counts the active mysteries open to the character.
func (g *Game) announceMysteries(d *Descriptor) {
	sh := g.Sheet(d.Player)
	n := 0
	for _, m := range g.Mysteries.Active() {
		if ok, _ := m.HasAccess(sh); ok {
			n++
		}
	}
	if n > 0 {
		d.Send(fmt.Sprintf("There are %d active mysteries open to you. Type +mystery to see them.", n))
	}
}

// WelcomeText is the default welcome screen shown to new connections.
const WelcomeText = `
   ___ _                   _    _     __  __ _   _ ___ _  _
  / __| |_  _ _ ___ _ _  (_)__| |___|  \/  | | | / __| || |
 | (__| ' \| '_/ _ \ ' \ | / _| / -_) |\/| | |_| \__ \ __ |
  \___|_||_|_| \___/_||_||_\__|_\___|_|  |_|\___/|___/_||_|

      Every city keeps its secrets. Some of them keep you.

"connect <name> <password>" to connect to your existing character.
"create <name> <password>" to create a new character.
"WHO" to see who is connected.
"QUIT" to disconnect.

`
