package server

import (
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

// CommandHandler is the function signature for command implementations.
// Handlers run under the world lock.
type CommandHandler func(g *Game, d *Descriptor, args string, switches []string)

// Command represents a registered game command.
type Command struct {
	Name    string
	Handler CommandHandler
	Help    string
}

const msgInternalError = "An internal error occurred; please contact staff."

// InitCommands registers all available game commands.
func InitCommands() map[string]*Command {
	cmds := make(map[string]*Command)

	register := func(name, help string, handler CommandHandler) {
		cmds[strings.ToLower(name)] = &Command{Name: name, Handler: handler, Help: help}
	}

	// Communication
	register("say", "say <message>", cmdSay)
	register("pose", "pose <action>", cmdPose)

	// Information
	register("look", "look [<object>]", cmdLook)
	register("WHO", "WHO", cmdWho)
	register("help", "help [<command>]", cmdHelp)
	register("@version", "@version", cmdVersion)

	// Session
	register("QUIT", "QUIT", cmdQuit)

	// Building and administration
	register("@set", "@set <object>=[!]<flag> or @set <object>=<attr>:<value>", cmdSet)
	register("@desc", "@desc <object>=<description>", cmdDesc)

	// Character sheets
	register("+stat", "+stat <character>/<stat>=<value>", cmdStat)
	register("+sheet", "+sheet [<character>]", cmdSheet)

	// Investigation
	register("+mystery", "+mystery[/<switch>] [<args>]  (help +mystery for switches)", cmdMystery)
	register("+clueobj", "+clueobj[/create|edit|list|delete] [<args>]", cmdClueObj)

	return cmds
}

// DispatchCommand parses and executes a player command. A panic inside a
// handler is logged with its stack and reported to the player as an
// internal error; the connection and other players are unaffected.
func DispatchCommand(g *Game, d *Descriptor, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in command (player=#%d input=%q): %v\n%s", d.Player, input, r, debug.Stack())
			d.Send(msgInternalError)
		}
	}()

	// Single-character prefixes: " for say, : for pose
	switch input[0] {
	case '"':
		cmdSay(g, d, input[1:], nil)
		return
	case ':':
		cmdPose(g, d, input[1:], nil)
		return
	}

	var cmdName, args string
	if spaceIdx := strings.IndexByte(input, ' '); spaceIdx >= 0 {
		cmdName = input[:spaceIdx]
		args = strings.TrimSpace(input[spaceIdx+1:])
	} else {
		cmdName = input
	}

	// Parse /switches from command name (e.g. "+mystery/view" -> "+mystery", ["view"])
	var switches []string
	if slashIdx := strings.IndexByte(cmdName, '/'); slashIdx >= 0 {
		parts := strings.Split(cmdName, "/")
		cmdName = parts[0]
		for _, sw := range parts[1:] {
			if sw != "" {
				switches = append(switches, sw)
			}
		}
	}

	lower := strings.ToLower(cmdName)
	if cmd, ok := g.Commands[lower]; ok {
		cmd.Handler(g, d, args, switches)
		return
	}

	// Unique prefix abbreviations for @ and + commands (e.g. +myst, @se).
	if len(lower) > 1 && (lower[0] == '@' || lower[0] == '+') {
		var matched *Command
		count := 0
		for name, cmd := range g.Commands {
			if strings.HasPrefix(name, lower) {
				matched = cmd
				count++
			}
		}
		if count == 1 {
			matched.Handler(g, d, args, switches)
			return
		}
	}

	d.Send("Huh?  (Type \"help\" for help.)")
}

// HasSwitch checks if a switch list contains a specific switch (case-insensitive).
func HasSwitch(switches []string, name string) bool {
	for _, s := range switches {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// splitEq splits "left=right", trimming both halves.
func splitEq(args string) (left, right string, ok bool) {
	left, right, ok = strings.Cut(args, "=")
	return strings.TrimSpace(left), strings.TrimSpace(right), ok
}

// --- Communication ---

func cmdSay(g *Game, d *Descriptor, args string, _ []string) {
	args = strings.TrimSpace(args)
	if args == "" {
		d.Send("Say what?")
		return
	}
	name := g.PlayerName(d.Player)
	loc := g.PlayerLocation(d.Player)
	data := map[string]any{"message": args, "speaker": name}

	g.Emit(d.Player, events.Event{
		Type:   events.EvSay,
		Source: d.Player,
		Room:   loc,
		Text:   fmt.Sprintf("You say \"%s\"", args),
		Data:   data,
	})
	g.EmitRoomExcept(loc, d.Player, events.Event{
		Type:   events.EvSay,
		Source: d.Player,
		Text:   fmt.Sprintf("%s says \"%s\"", name, args),
		Data:   data,
	})
}

func cmdPose(g *Game, d *Descriptor, args string, _ []string) {
	args = strings.TrimSpace(args)
	name := g.PlayerName(d.Player)
	loc := g.PlayerLocation(d.Player)
	g.EmitRoom(loc, events.Event{
		Type:   events.EvPose,
		Source: d.Player,
		Text:   fmt.Sprintf("%s %s", name, args),
		Data:   map[string]any{"pose": args, "player": name},
	})
}

// --- Information ---

func cmdLook(g *Game, d *Descriptor, args string, _ []string) {
	if args == "" || strings.EqualFold(args, "here") {
		g.ShowRoom(d, g.PlayerLocation(d.Player))
		return
	}
	target := g.MatchObject(d.Player, args)
	if target == gamedb.Nothing {
		d.Send("I don't see that here.")
		return
	}
	if obj := g.DB.Objects[target]; obj.ObjType() == gamedb.TypeRoom {
		g.ShowRoom(d, target)
		return
	}
	g.ShowObject(d, target)
}

func cmdWho(g *Game, d *Descriptor, _ string, _ []string) {
	g.ShowWho(d)
}

func cmdHelp(g *Game, d *Descriptor, args string, _ []string) {
	topic := strings.ToLower(strings.TrimSpace(args))
	if topic == "" {
		names := make([]string, 0, len(g.Commands))
		for _, cmd := range g.Commands {
			names = append(names, cmd.Name)
		}
		sort.Strings(names)
		d.Send("Commands: " + strings.Join(names, ", "))
		d.Send("Type \"help <command>\" for usage.")
		return
	}
	if topic == "+mystery" || topic == "mystery" {
		for _, line := range mysteryHelp(IsStaff(g, d.Player)) {
			d.Send(line)
		}
		return
	}
	cmd, ok := g.Commands[topic]
	if !ok {
		d.Send(fmt.Sprintf("No help available for '%s'.", args))
		return
	}
	d.Send("Usage: " + cmd.Help)
}

func cmdVersion(g *Game, d *Descriptor, _ string, _ []string) {
	d.Send(fmt.Sprintf("%s  (up %s)", VersionString(), FormatConnTime(time.Since(g.StartTime))))
}

func cmdQuit(g *Game, d *Descriptor, _ string, _ []string) {
	d.Send("Goodbye!")
	g.DisconnectPlayer(d)
}

// --- Building ---

// settableFlags maps flag names to (word, bit). Only wizards may set
// WIZARD or ROYALTY; other flags need staff.
var settableFlags = map[string]struct {
	word int
	bit  int
}{
	"WIZARD":      {0, gamedb.FlagWizard},
	"ROYALTY":     {0, gamedb.FlagRoyalty},
	"DARK":        {0, gamedb.FlagDark},
	"STAFF":       {1, gamedb.Flag2Staff},
	"STORYTELLER": {1, gamedb.Flag2Storyteller},
}

func cmdSet(g *Game, d *Descriptor, args string, _ []string) {
	if !requireStaff(g, d) {
		return
	}
	objName, value, ok := splitEq(args)
	if !ok || objName == "" || value == "" {
		d.Send("Usage: @set <object>=[!]<flag>  or  @set <object>=<attr>:<value>")
		return
	}
	target := g.MatchObject(d.Player, objName)
	if target == gamedb.Nothing {
		target = g.FindCharacter(d.Player, objName)
	}
	obj, exists := g.DB.Objects[target]
	if !exists {
		d.Send("I don't see that here.")
		return
	}

	if attr, val, isAttr := strings.Cut(value, ":"); isAttr {
		name := strings.ToUpper(strings.TrimSpace(attr))
		num := g.DB.AttrNum(name, true)
		if num < 0 {
			d.Send("Invalid attribute name.")
			return
		}
		if num == gamedb.A_PASS || num == gamedb.A_MYSTERYCLUES || num == gamedb.A_CLUEREF {
			d.Send("That attribute is maintained by the game.")
			return
		}
		if def, ok := g.DB.AttrNames[num]; ok && g.Store != nil {
			g.Store.PutAttrDef(def)
		}
		obj.SetAttr(num, strings.TrimSpace(val))
		g.PersistObject(obj)
		if strings.TrimSpace(val) == "" {
			d.Send(fmt.Sprintf("%s - %s cleared.", DisplayName(obj.Name), name))
		} else {
			d.Send(fmt.Sprintf("%s - %s set.", DisplayName(obj.Name), name))
		}
		return
	}

	negate := strings.HasPrefix(value, "!")
	flagName := strings.ToUpper(strings.TrimPrefix(value, "!"))
	f, known := settableFlags[flagName]
	if !known {
		d.Send("I don't understand that flag.")
		return
	}
	if (flagName == "WIZARD" || flagName == "ROYALTY") && !Wizard(g, d.Player) {
		d.Send("Permission denied: wizard only.")
		return
	}
	if negate {
		obj.Flags[f.word] &^= f.bit
		d.Send(fmt.Sprintf("%s - %s removed.", DisplayName(obj.Name), flagName))
	} else {
		obj.Flags[f.word] |= f.bit
		d.Send(fmt.Sprintf("%s - %s set.", DisplayName(obj.Name), flagName))
	}
	g.PersistObject(obj)
	log.Printf("@set: #%d %s %s on #%d", d.Player, value, flagName, target)
}

func cmdDesc(g *Game, d *Descriptor, args string, _ []string) {
	objName, desc, ok := splitEq(args)
	if !ok || objName == "" {
		d.Send("Usage: @desc <object>=<description>")
		return
	}
	target := g.MatchObject(d.Player, objName)
	obj, exists := g.DB.Objects[target]
	if !exists {
		d.Send("I don't see that here.")
		return
	}
	if target != d.Player && obj.Owner != d.Player && !IsStaff(g, d.Player) {
		d.Send("Permission denied.")
		return
	}
	obj.SetAttr(gamedb.A_DESC, desc)
	g.PersistObject(obj)
	d.Send("Description set.")
}
