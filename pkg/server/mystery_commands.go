package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
	"github.com/crystal-mush/chroniclemush/pkg/sheet"
)

// cmdMystery handles +mystery with switch routing. list and view show the
// staff versions to staff.
func cmdMystery(g *Game, d *Descriptor, args string, switches []string) {
	args = strings.TrimSpace(args)
	if len(switches) == 0 {
		if args != "" {
			mysteryView(g, d, args)
			return
		}
		mysteryList(g, d)
		return
	}

	sw := strings.ToLower(switches[0])
	switch sw {
	// Player switches
	case "list":
		if IsStaff(g, d.Player) {
			staffList(g, d, args)
			return
		}
		mysteryList(g, d)
	case "view":
		if IsStaff(g, d.Player) {
			staffView(g, d, args)
			return
		}
		mysteryView(g, d, args)
	case "progress":
		mysteryProgress(g, d, args)
	case "examine":
		mysteryExamine(g, d, args)
	case "search":
		g.investigate(d, mystery.Request{Method: mystery.MethodSearch})
	case "interview":
		mysteryInterview(g, d, args)
	case "research":
		g.investigate(d, mystery.Request{Method: mystery.MethodResearch, Topic: args})
	case "occult":
		g.investigate(d, mystery.Request{Method: mystery.MethodOccult, Topic: args})
	case "share":
		mysteryShare(g, d, args)
	case "collaborate", "collab":
		mysteryCollaborate(g, d, args)
	case "clue":
		mysteryClue(g, d, args)
	case "help":
		for _, line := range mysteryHelp(IsStaff(g, d.Player)) {
			d.Send(line)
		}

	default:
		if h, ok := staffSwitches[sw]; ok {
			if !requireStaff(g, d) {
				return
			}
			h(g, d, args)
			return
		}
		d.Send(fmt.Sprintf("+mystery: Unknown switch /%s.", sw))
	}
}

// mysteryHelp returns the switch summary for +mystery.
func mysteryHelp(staff bool) []string {
	lines := []string{
		"+mystery                          List mysteries open to you",
		"+mystery/view <id>                Show a mystery and the clues you hold",
		"+mystery/progress [<id>]          Show how far you have come",
		"+mystery/examine <object>         Study something in the room",
		"+mystery/search                   Search the area",
		"+mystery/interview <person>       Question someone in the room",
		"+mystery/research <topic>         Look something up",
		"+mystery/occult <topic>           Delve into occult lore",
		"+mystery/share <player>=<id>/<clue>   Pass a clue on",
		"+mystery/collaborate <method> [<target>]=<helpers>   Investigate as a team",
		"+mystery/clue <id>/<clue>         Review a clue you have found",
	}
	if !staff {
		return lines
	}
	return append(lines,
		"--- Staff ---",
		"+mystery/create <title>=<description>",
		"+mystery/list [<status>]   /view <id>   /delete <id>",
		"+mystery/edit <id>/<title|description|category|difficulty>=<value>",
		"+mystery/status <id>=<active|suspended|solved|cancelled>",
		"+mystery/addclue <id>=<name>/<description>",
		"+mystery/editclue <id>/<clue>/<field>=<value>   /delclue <id>/<clue>",
		"+mystery/prereq <id>/<clue>=<ids>   /leads <id>/<clue>=<ids>",
		"+mystery/cluetype <id>/<clue>=<type>   /methods <id>/<clue>=<methods>",
		"+mystery/conditions <id>/<clue>=<json>   /skillroll <id>/<clue>=<skill>/<attr>[/<diff>]",
		"+mystery/revelation <id>/<clue>=<text>",
		"+mystery/trigger <id>/<name>=<clue ids>|<text>[|<unlocks>]",
		"+mystery/access <id>=<rule>,...   /access <id>/<templates|characters|areas>=<list>",
		"+mystery/participant <id>=[!]<character>",
		"+mystery/discovered <id>   /grant <id>/<clue>=<character>   /revoke <id>/<clue>=<character>",
		"+mystery/templates   /template <name>",
		"+mystery/staffprogress <id>   /journal <id>",
	)
}

// lookupMystery resolves "#3" or "3".
func lookupMystery(g *Game, arg string) (*mystery.Mystery, error) {
	arg = strings.TrimPrefix(strings.TrimSpace(arg), "#")
	id, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("'%s' is not a mystery number", arg)
	}
	return g.Mysteries.Get(id)
}

// lookupMysteryClue resolves "<mystery>/<clue>".
func lookupMysteryClue(g *Game, arg string) (*mystery.Mystery, *mystery.Clue, error) {
	mid, cid, ok := strings.Cut(arg, "/")
	if !ok || strings.TrimSpace(cid) == "" {
		return nil, nil, fmt.Errorf("expected <mystery>/<clue>")
	}
	m, err := lookupMystery(g, mid)
	if err != nil {
		return nil, nil, err
	}
	c, err := m.Clue(strings.TrimSpace(cid))
	if err != nil {
		return nil, nil, err
	}
	return m, c, nil
}

// visibleTo reports whether a player may look at m: it is active and open
// to them, or they already hold one of its clues.
func visibleTo(g *Game, m *mystery.Mystery, player gamedb.DBRef) bool {
	if len(m.DiscoveredClues(player)) > 0 {
		return true
	}
	if m.CurrentStatus() != mystery.StatusActive {
		return false
	}
	ok, _ := m.HasAccess(g.Sheet(player))
	return ok
}

func mysteryList(g *Game, d *Descriptor) {
	var shown int
	for _, m := range g.Mysteries.All() {
		if !visibleTo(g, m, d.Player) {
			continue
		}
		if shown == 0 {
			d.Send(fmt.Sprintf("%-5s %-36s %-10s %s", "ID", "Title", "Status", "Progress"))
		}
		sum := m.Summary()
		p := m.Progress(d.Player)
		d.Send(fmt.Sprintf("#%-4d %-36s %-10s %d/%d (%d%%)", sum.ID, truncate(sum.Title, 36), sum.Status, p.Found, p.Total, p.Percent))
		shown++
	}
	if shown == 0 {
		d.Send("There are no mysteries open to you right now.")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func mysteryView(g *Game, d *Descriptor, args string) {
	if args == "" {
		d.Send("Usage: +mystery/view <id>")
		return
	}
	m, err := lookupMystery(g, args)
	if err != nil || !visibleTo(g, m, d.Player) {
		d.Send("You know of no such mystery.")
		return
	}
	sum := m.Summary()
	p := m.Progress(d.Player)
	d.Send(fmt.Sprintf("=== Mystery #%d: %s ===", sum.ID, sum.Title))
	if sum.Description != "" {
		d.Send(sum.Description)
	}
	d.Send(fmt.Sprintf("Category: %s  Difficulty: %d  Status: %s", sum.Category, sum.Difficulty, sum.Status))
	d.Send(fmt.Sprintf("Your progress: %d of %d clues (%d%%)", p.Found, p.Total, p.Percent))
	found := m.DiscoveredClues(d.Player)
	if len(found) == 0 {
		d.Send("You have not uncovered anything yet.")
		return
	}
	d.Send("Clues you hold:")
	for _, id := range found {
		if c, err := m.Clue(id); err == nil {
			d.Send(fmt.Sprintf("  [%s] %s", c.ID, c.Name))
		}
	}
}

func mysteryProgress(g *Game, d *Descriptor, args string) {
	if args != "" {
		m, err := lookupMystery(g, args)
		if err != nil || !visibleTo(g, m, d.Player) {
			d.Send("You know of no such mystery.")
			return
		}
		sum := m.Summary()
		p := m.Progress(d.Player)
		d.Send(fmt.Sprintf("Mystery #%d '%s': you hold %d of %d clues (%d%%). Overall: %d%%.",
			sum.ID, sum.Title, p.Found, p.Total, p.Percent, sum.Completion))
		if avail := m.AvailableClues(g.Sheet(d.Player)); len(avail) > 0 {
			d.Send(fmt.Sprintf("There are %d leads you could still pursue.", len(avail)))
		}
		return
	}
	var found bool
	for _, m := range g.Mysteries.All() {
		p := m.Progress(d.Player)
		if p.Found == 0 {
			continue
		}
		sum := m.Summary()
		d.Send(fmt.Sprintf("#%-4d %-36s %d/%d (%d%%) %s", sum.ID, truncate(sum.Title, 36), p.Found, p.Total, p.Percent, sum.Status))
		found = true
	}
	if !found {
		d.Send("You have not uncovered any clues yet.")
	}
}

func mysteryExamine(g *Game, d *Descriptor, args string) {
	if args == "" {
		d.Send("Usage: +mystery/examine <object>")
		return
	}
	target := g.MatchObject(d.Player, args)
	obj, ok := g.DB.Objects[target]
	if !ok || target == d.Player {
		d.Send("I don't see that here.")
		return
	}
	req := mystery.Request{Method: mystery.MethodExamine, Target: DisplayName(obj.Name)}
	if p, placed := g.Mysteries.Placement(target); placed {
		req.Placed = &p
	}
	g.investigate(d, req)
}

func mysteryInterview(g *Game, d *Descriptor, args string) {
	if args == "" {
		d.Send("Usage: +mystery/interview <person>")
		return
	}
	target := g.MatchObject(d.Player, args)
	obj, ok := g.DB.Objects[target]
	if !ok || target == d.Player || obj.Location != g.PlayerLocation(d.Player) {
		d.Send("There is nobody here by that name.")
		return
	}
	if t := obj.ObjType(); t != gamedb.TypePlayer && t != gamedb.TypeThing {
		d.Send("You can't interview that.")
		return
	}
	g.investigate(d, mystery.Request{Method: mystery.MethodInterview, Target: DisplayName(obj.Name)})
}

// mysteryShare handles +mystery/share <player>=<mystery>/<clue>. Both
// characters must be in the same room.
func mysteryShare(g *Game, d *Descriptor, args string) {
	who, ref, ok := splitEq(args)
	if !ok || who == "" || ref == "" {
		d.Send("Usage: +mystery/share <player>=<mystery>/<clue>")
		return
	}
	target := g.FindCharacter(d.Player, who)
	if target == gamedb.Nothing {
		d.Send("No such character.")
		return
	}
	if target == d.Player {
		d.Send("You already know what you know.")
		return
	}
	if g.PlayerLocation(target) != g.PlayerLocation(d.Player) {
		d.Send(fmt.Sprintf("%s is not here.", g.PlayerName(target)))
		return
	}
	m, c, err := lookupMysteryClue(g, ref)
	if err != nil {
		d.Send(err.Error())
		return
	}
	disc, err := m.Share(d.Player, g.Sheet(target), c.ID)
	if err != nil {
		var denied *mystery.DeniedError
		switch {
		case errors.Is(err, mystery.ErrNotActive):
			d.Send(fmt.Sprintf("Mystery #%d is not active.", m.ID))
		case errors.Is(err, mystery.ErrNotDiscovered):
			d.Send("You have not found that clue.")
		case errors.Is(err, mystery.ErrAlreadyDiscovered):
			d.Send(fmt.Sprintf("%s already knows that.", g.PlayerName(target)))
		case errors.As(err, &denied):
			d.Send(fmt.Sprintf("%s cannot make sense of it: %s", g.PlayerName(target), denied.Reason))
		default:
			d.Send(err.Error())
		}
		return
	}
	d.Send(fmt.Sprintf("You share '%s' with %s.", c.Name, g.PlayerName(target)))
	g.recordDiscovery(disc, d.Player)
}

// mysteryCollaborate handles
// +mystery/collaborate <method> [<target or topic>]=<helper>[,<helper>...].
// Helpers must be connected and in the same room; each one rolls and
// their successes join the leader's pool.
func mysteryCollaborate(g *Game, d *Descriptor, args string) {
	left, right, ok := splitEq(args)
	if !ok || left == "" || right == "" {
		d.Send("Usage: +mystery/collaborate <method> [<target or topic>]=<helper>[,<helper>...]")
		return
	}
	methodName, subject, _ := strings.Cut(left, " ")
	method, err := mystery.ParseMethod(methodName)
	if err != nil {
		d.Send(err.Error())
		return
	}
	subject = strings.TrimSpace(subject)

	here := g.PlayerLocation(d.Player)
	var helpers []sheet.Sheet
	seen := map[gamedb.DBRef]bool{d.Player: true}
	for _, name := range mystery.SplitList(right) {
		ref := g.FindCharacter(d.Player, name)
		if ref == gamedb.Nothing {
			d.Send(fmt.Sprintf("No such character: %s", name))
			return
		}
		if seen[ref] {
			continue
		}
		if g.PlayerLocation(ref) != here || !g.Conns.IsConnected(ref) {
			d.Send(fmt.Sprintf("%s is not here to help.", g.PlayerName(ref)))
			return
		}
		seen[ref] = true
		helpers = append(helpers, g.Sheet(ref))
	}
	if len(helpers) == 0 {
		d.Send("Nobody to collaborate with.")
		return
	}

	req := mystery.Request{Method: method, Helpers: helpers}
	switch method {
	case mystery.MethodExamine:
		target := g.MatchObject(d.Player, subject)
		obj, ok := g.DB.Objects[target]
		if subject == "" || !ok {
			d.Send("I don't see that here.")
			return
		}
		req.Target = DisplayName(obj.Name)
		if p, placed := g.Mysteries.Placement(target); placed {
			req.Placed = &p
		}
	case mystery.MethodInterview:
		target := g.MatchObject(d.Player, subject)
		obj, ok := g.DB.Objects[target]
		if subject == "" || !ok || obj.Location != here {
			d.Send("There is nobody here by that name.")
			return
		}
		req.Target = DisplayName(obj.Name)
	case mystery.MethodResearch, mystery.MethodOccult:
		req.Topic = subject
	}
	g.investigate(d, req)
}

func mysteryClue(g *Game, d *Descriptor, args string) {
	if args == "" {
		d.Send("Usage: +mystery/clue <mystery>/<clue>")
		return
	}
	m, c, err := lookupMysteryClue(g, args)
	if err != nil || (!m.HasDiscovered(d.Player, c.ID) && !IsStaff(g, d.Player)) {
		d.Send("You have not found that clue.")
		return
	}
	d.Send(fmt.Sprintf("=== Mystery #%d, clue [%s]: %s ===", m.ID, c.ID, c.Name))
	if c.Description != "" {
		d.Send(c.Description)
	}
	var leads []string
	for _, id := range c.LeadsTo {
		if lc, err := m.Clue(id); err == nil {
			leads = append(leads, lc.Name)
		}
	}
	if len(leads) > 0 {
		d.Send("It points toward: " + strings.Join(leads, ", "))
	}
	if len(c.LocationHints) > 0 {
		d.Send("Places worth a look: " + strings.Join(c.LocationHints, ", "))
	}
	if len(c.SkillHints) > 0 {
		d.Send("Useful expertise: " + strings.Join(c.SkillHints, ", "))
	}
}
