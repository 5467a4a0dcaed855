package server

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
	"github.com/crystal-mush/chroniclemush/pkg/sheet"
)

type staffHandler func(g *Game, d *Descriptor, args string)

// staffSwitches are the +mystery switches only staff may use. list and
// view are routed separately because players have their own versions.
var staffSwitches = map[string]staffHandler{
	"create":        staffCreate,
	"edit":          staffEdit,
	"delete":        staffDelete,
	"status":        staffStatus,
	"addclue":       staffAddClue,
	"editclue":      staffEditClue,
	"delclue":       staffDelClue,
	"prereq":        staffPrereq,
	"leads":         staffLeads,
	"cluetype":      staffClueType,
	"methods":       staffMethods,
	"conditions":    staffConditions,
	"skillroll":     staffSkillRoll,
	"revelation":    staffRevelation,
	"trigger":       staffTrigger,
	"access":        staffAccess,
	"participant":   staffParticipant,
	"discovered":    staffDiscovered,
	"grant":         staffGrant,
	"revoke":        staffRevoke,
	"templates":     staffTemplates,
	"template":      staffTemplate,
	"staffprogress": staffProgress,
	"journal":       staffJournal,
}

// emitChange publishes a staff edit so the journal and web clients see it.
func (g *Game) emitChange(m *mystery.Mystery, by gamedb.DBRef, action, detail string) {
	g.PersistMystery(m)
	g.EventBus.Emit(events.Event{
		Type:    events.EvMystery,
		Player:  gamedb.Nothing,
		Source:  by,
		Mystery: m.ID,
		Text:    fmt.Sprintf("%s: %s", action, detail),
		Data:    map[string]any{"mystery": m.ID, "action": action},
	})
}

// --- Mystery lifecycle ---

func staffCreate(g *Game, d *Descriptor, args string) {
	title, desc, _ := splitEq(args)
	if title == "" {
		d.Send("Usage: +mystery/create <title>=<description>")
		return
	}
	m, err := g.Mysteries.Create(title, desc, "general", 3, d.Player)
	if err != nil {
		d.Send(err.Error())
		return
	}
	g.emitChange(m, d.Player, "created", title)
	log.Printf("mystery: #%d '%s' created by #%d", m.ID, title, d.Player)
	d.Send(fmt.Sprintf("Mystery #%d '%s' created.", m.ID, title))
}

func staffList(g *Game, d *Descriptor, args string) {
	var list []*mystery.Mystery
	if args == "" {
		list = g.Mysteries.All()
	} else {
		st, err := mystery.ParseStatus(args)
		if err != nil {
			d.Send(err.Error())
			return
		}
		list = g.Mysteries.ByStatus(st)
	}
	if len(list) == 0 {
		d.Send("No mysteries found.")
		return
	}
	d.Send(fmt.Sprintf("%-5s %-32s %-12s %-10s %5s %5s %4s", "ID", "Title", "Category", "Status", "Clues", "Done", "Inv"))
	for _, m := range list {
		sum := m.Summary()
		d.Send(fmt.Sprintf("#%-4d %-32s %-12s %-10s %5d %4d%% %4d",
			sum.ID, truncate(sum.Title, 32), truncate(sum.Category, 12), sum.Status, sum.Clues, sum.Completion, len(m.Investigators())))
	}
	counts := g.Mysteries.Count()
	d.Send(fmt.Sprintf("Active: %d  Suspended: %d  Solved: %d  Cancelled: %d",
		counts[mystery.StatusActive], counts[mystery.StatusSuspended], counts[mystery.StatusSolved], counts[mystery.StatusCancelled]))
}

func staffView(g *Game, d *Descriptor, args string) {
	if args == "" {
		d.Send("Usage: +mystery/view <id>")
		return
	}
	m, err := lookupMystery(g, args)
	if err != nil {
		d.Send(err.Error())
		return
	}
	sum := m.Summary()
	d.Send(fmt.Sprintf("=== Mystery #%d: %s [%s] ===", sum.ID, sum.Title, sum.Status))
	if sum.Description != "" {
		d.Send(sum.Description)
	}
	d.Send(fmt.Sprintf("Category: %s  Difficulty: %d  Completion: %d%%  Created by %s on %s",
		sum.Category, sum.Difficulty, sum.Completion, g.PlayerName(sum.CreatedBy), sum.CreatedAt.Format("2006-01-02")))

	rules, legacy := m.Access()
	if len(rules) > 0 {
		names := make([]string, len(rules))
		for i, r := range rules {
			names[i] = r.String()
		}
		d.Send("Access: " + strings.Join(names, " OR "))
	} else {
		d.Send("Access: " + describeLegacy(g, legacy))
	}
	if parts := m.ParticipantList(); len(parts) > 0 {
		names := make([]string, len(parts))
		for i, ref := range parts {
			names[i] = g.PlayerName(ref)
		}
		d.Send("Participants: " + strings.Join(names, ", "))
	}

	d.Send("Clues:")
	for _, c := range m.ClueList() {
		d.Send(fmt.Sprintf("  [%s] %s (%s; methods: %s; found by %d)", c.ID, c.Name, c.Type, c.MethodNames(), len(c.DiscoveredBy)))
		if len(c.Prerequisites) > 0 {
			d.Send("      requires: " + strings.Join(c.Prerequisites, ", "))
		}
		if len(c.LeadsTo) > 0 {
			d.Send("      leads to: " + strings.Join(c.LeadsTo, ", "))
		}
		if !c.Conditions.IsZero() {
			d.Send("      conditions: " + c.Conditions.String())
		}
		if len(c.Tags) > 0 {
			d.Send("      tags: " + strings.Join(c.Tags, ", "))
		}
	}
	if trigs := m.TriggerList(); len(trigs) > 0 {
		d.Send("Triggers:")
		for _, t := range trigs {
			line := fmt.Sprintf("  %s: needs %s", t.ID, strings.Join(t.Required, ", "))
			if len(t.Unlocks) > 0 {
				line += "; unlocks " + strings.Join(t.Unlocks, ", ")
			}
			d.Send(line)
		}
	}
	if placed := g.Mysteries.Placements(m.ID); len(placed) > 0 {
		d.Send("Clue objects:")
		for _, p := range placed {
			d.Send(fmt.Sprintf("  %s in %s -> clue %s", g.ObjName(p.Ref), g.ObjName(g.PlayerLocation(p.Ref)), p.ClueID))
		}
	}
}

func describeLegacy(g *Game, l mystery.LegacyAccess) string {
	var parts []string
	if len(l.AllowedTemplates) > 0 {
		parts = append(parts, "templates "+strings.Join(l.AllowedTemplates, ", "))
	}
	if len(l.AllowedCharacters) > 0 {
		names := make([]string, len(l.AllowedCharacters))
		for i, ref := range l.AllowedCharacters {
			names[i] = g.PlayerName(ref)
		}
		parts = append(parts, "characters "+strings.Join(names, ", "))
	}
	if len(l.RestrictedAreas) > 0 {
		rooms := make([]string, len(l.RestrictedAreas))
		for i, ref := range l.RestrictedAreas {
			rooms[i] = g.ObjName(ref)
		}
		parts = append(parts, "areas "+strings.Join(rooms, ", "))
	}
	if len(parts) == 0 {
		return "open to all"
	}
	return strings.Join(parts, "; ")
}

func staffEdit(g *Game, d *Descriptor, args string) {
	left, value, ok := splitEq(args)
	mid, field, hasField := strings.Cut(left, "/")
	if !ok || !hasField {
		d.Send("Usage: +mystery/edit <id>/<title|description|category|difficulty>=<value>")
		return
	}
	m, err := lookupMystery(g, mid)
	if err != nil {
		d.Send(err.Error())
		return
	}
	if err := m.SetInfo(strings.TrimSpace(field), value); err != nil {
		d.Send(err.Error())
		return
	}
	g.emitChange(m, d.Player, "edited", field)
	d.Send(fmt.Sprintf("Mystery #%d %s updated.", m.ID, strings.ToLower(field)))
}

func staffDelete(g *Game, d *Descriptor, args string) {
	if args == "" {
		d.Send("Usage: +mystery/delete <id>")
		return
	}
	m, err := lookupMystery(g, args)
	if err != nil {
		d.Send(err.Error())
		return
	}
	if _, err := g.deleteMystery(m.ID, d.Player); err != nil {
		d.Send(err.Error())
		return
	}
	d.Send(fmt.Sprintf("Mystery #%d '%s' deleted.", m.ID, m.Summary().Title))
}

func staffStatus(g *Game, d *Descriptor, args string) {
	mid, value, ok := splitEq(args)
	if !ok || value == "" {
		d.Send("Usage: +mystery/status <id>=<active|suspended|solved|cancelled>")
		return
	}
	m, err := lookupMystery(g, mid)
	if err != nil {
		d.Send(err.Error())
		return
	}
	to, err := mystery.ParseStatus(value)
	if err != nil {
		d.Send(err.Error())
		return
	}
	from := m.CurrentStatus()
	if err := m.SetStatus(to); err != nil {
		d.Send(err.Error())
		return
	}
	if from == to {
		d.Send(fmt.Sprintf("Mystery #%d is already %s.", m.ID, to))
		return
	}
	g.notifyStatus(m, d.Player, from, to)
	log.Printf("mystery: #%d %s -> %s by #%d", m.ID, from, to, d.Player)
	d.Send(fmt.Sprintf("Mystery #%d is now %s.", m.ID, to))
	g.noteAutoSolve(m, d.Player, to)
}

// --- Clues ---

func staffAddClue(g *Game, d *Descriptor, args string) {
	mid, rest, ok := splitEq(args)
	name, desc, _ := strings.Cut(rest, "/")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		d.Send("Usage: +mystery/addclue <id>=<name>/<description>")
		return
	}
	m, err := lookupMystery(g, mid)
	if err != nil {
		d.Send(err.Error())
		return
	}
	id := m.AddClue(name, strings.TrimSpace(desc), nil, nil)
	g.emitChange(m, d.Player, "clue added", id)
	d.Send(fmt.Sprintf("Clue [%s] '%s' added to mystery #%d.", id, name, m.ID))
}

// clueEdit parses "<id>/<clue>=<value>" and runs apply against the clue.
func clueEdit(g *Game, d *Descriptor, args, usage string, apply func(m *mystery.Mystery, clueID, value string) error) (*mystery.Mystery, string, bool) {
	left, value, ok := splitEq(args)
	if !ok {
		d.Send("Usage: " + usage)
		return nil, "", false
	}
	m, c, err := lookupMysteryClue(g, left)
	if err != nil {
		d.Send(err.Error())
		return nil, "", false
	}
	if err := apply(m, c.ID, value); err != nil {
		d.Send(err.Error())
		return nil, "", false
	}
	return m, c.ID, true
}

func staffEditClue(g *Game, d *Descriptor, args string) {
	left, value, ok := splitEq(args)
	parts := strings.SplitN(left, "/", 3)
	if !ok || len(parts) != 3 {
		d.Send("Usage: +mystery/editclue <id>/<clue>/<field>=<value>")
		return
	}
	m, c, err := lookupMysteryClue(g, parts[0]+"/"+parts[1])
	if err != nil {
		d.Send(err.Error())
		return
	}
	field := strings.TrimSpace(parts[2])
	if err := m.EditClue(c.ID, field, value); err != nil {
		d.Send(err.Error())
		return
	}
	g.emitChange(m, d.Player, "clue edited", c.ID+"/"+field)
	d.Send(fmt.Sprintf("Clue [%s] %s updated.", c.ID, strings.ToLower(field)))
}

func staffDelClue(g *Game, d *Descriptor, args string) {
	m, c, err := lookupMysteryClue(g, args)
	if err != nil {
		d.Send("Usage: +mystery/delclue <id>/<clue> (" + err.Error() + ")")
		return
	}
	holders := m.Investigators()
	before := m.CurrentStatus()
	if err := m.RemoveClue(c.ID); err != nil {
		d.Send(err.Error())
		return
	}
	for _, ref := range holders {
		if obj, ok := g.DB.Objects[ref]; ok {
			if err := sheet.ForgetClue(obj, m.ID, c.ID); err != nil {
				log.Printf("mystery: unmirror clue %d/%s on #%d: %v", m.ID, c.ID, ref, err)
				continue
			}
			g.PersistObject(obj)
		}
	}
	for _, p := range g.Mysteries.Placements(m.ID) {
		if p.ClueID == c.ID {
			g.removeClueObject(p.Ref)
		}
	}
	g.emitChange(m, d.Player, "clue removed", c.ID)
	d.Send(fmt.Sprintf("Clue [%s] '%s' removed from mystery #%d.", c.ID, c.Name, m.ID))
	g.noteAutoSolve(m, d.Player, before)
}

func staffPrereq(g *Game, d *Descriptor, args string) {
	m, id, ok := clueEdit(g, d, args, "+mystery/prereq <id>/<clue>=<clue ids>",
		func(m *mystery.Mystery, id, v string) error { return m.SetCluePrerequisites(id, mystery.SplitIDs(v)) })
	if !ok {
		return
	}
	g.emitChange(m, d.Player, "prerequisites", id)
	d.Send(fmt.Sprintf("Prerequisites for clue [%s] set.", id))
}

func staffLeads(g *Game, d *Descriptor, args string) {
	m, id, ok := clueEdit(g, d, args, "+mystery/leads <id>/<clue>=<clue ids>",
		func(m *mystery.Mystery, id, v string) error { return m.SetClueLeads(id, mystery.SplitIDs(v)) })
	if !ok {
		return
	}
	g.emitChange(m, d.Player, "leads", id)
	d.Send(fmt.Sprintf("Leads for clue [%s] set.", id))
}

func staffClueType(g *Game, d *Descriptor, args string) {
	m, id, ok := clueEdit(g, d, args, "+mystery/cluetype <id>/<clue>=<type>",
		func(m *mystery.Mystery, id, v string) error {
			t, err := mystery.ParseClueType(v)
			if err != nil {
				return err
			}
			return m.SetClueType(id, t)
		})
	if !ok {
		return
	}
	c, _ := m.Clue(id)
	g.emitChange(m, d.Player, "clue type", id)
	d.Send(fmt.Sprintf("Clue [%s] is now %s (methods: %s).", id, c.Type, c.MethodNames()))
}

func staffMethods(g *Game, d *Descriptor, args string) {
	m, id, ok := clueEdit(g, d, args, "+mystery/methods <id>/<clue>=<method>[,<method>...]",
		func(m *mystery.Mystery, id, v string) error {
			var methods []mystery.Method
			for _, name := range mystery.SplitIDs(v) {
				meth, err := mystery.ParseMethod(name)
				if err != nil {
					return err
				}
				methods = append(methods, meth)
			}
			return m.SetClueRequiredMethods(id, methods)
		})
	if !ok {
		return
	}
	c, _ := m.Clue(id)
	g.emitChange(m, d.Player, "methods", id)
	d.Send(fmt.Sprintf("Clue [%s] methods: %s.", id, c.MethodNames()))
}

func staffConditions(g *Game, d *Descriptor, args string) {
	m, id, ok := clueEdit(g, d, args, "+mystery/conditions <id>/<clue>=<json>|none",
		func(m *mystery.Mystery, id, v string) error {
			if v == "" || strings.EqualFold(v, "none") {
				return m.SetClueConditions(id, mystery.DiscoveryConditions{})
			}
			cond, err := mystery.ParseConditions(v)
			if err != nil {
				return err
			}
			return m.SetClueConditions(id, cond)
		})
	if !ok {
		return
	}
	c, _ := m.Clue(id)
	g.emitChange(m, d.Player, "conditions", id)
	d.Send(fmt.Sprintf("Clue [%s] conditions: %s.", id, c.Conditions.String()))
}

func staffSkillRoll(g *Game, d *Descriptor, args string) {
	m, id, ok := clueEdit(g, d, args, "+mystery/skillroll <id>/<clue>=<skill>/<attribute>[/<difficulty>]|none",
		func(m *mystery.Mystery, id, v string) error {
			if v == "" || strings.EqualFold(v, "none") {
				return m.SetClueSkillRoll(id, nil)
			}
			sr, err := mystery.ParseSkillRoll(v)
			if err != nil {
				return err
			}
			return m.SetClueSkillRoll(id, sr)
		})
	if !ok {
		return
	}
	c, _ := m.Clue(id)
	g.emitChange(m, d.Player, "skill roll", id)
	d.Send(fmt.Sprintf("Clue [%s] conditions: %s.", id, c.Conditions.String()))
}

func staffRevelation(g *Game, d *Descriptor, args string) {
	m, id, ok := clueEdit(g, d, args, "+mystery/revelation <id>/<clue>=<text>",
		func(m *mystery.Mystery, id, v string) error { return m.SetRevelation(id, v) })
	if !ok {
		return
	}
	g.emitChange(m, d.Player, "revelation", id)
	d.Send(fmt.Sprintf("Exceptional-success revelation for clue [%s] set.", id))
}

// staffTrigger handles +mystery/trigger <id>/<name>=<required>|<text>[|<unlocks>].
// An empty right-hand side removes the trigger.
func staffTrigger(g *Game, d *Descriptor, args string) {
	left, value, ok := splitEq(args)
	mid, tid, hasName := strings.Cut(left, "/")
	tid = strings.TrimSpace(tid)
	if !ok || !hasName || tid == "" {
		d.Send("Usage: +mystery/trigger <id>/<name>=<clue ids>|<revelation>[|<unlock ids>]")
		return
	}
	m, err := lookupMystery(g, mid)
	if err != nil {
		d.Send(err.Error())
		return
	}
	if value == "" {
		if err := m.RemoveTrigger(tid); err != nil {
			d.Send(err.Error())
			return
		}
		g.emitChange(m, d.Player, "trigger removed", tid)
		d.Send(fmt.Sprintf("Trigger '%s' removed.", tid))
		return
	}
	parts := strings.SplitN(value, "|", 3)
	if len(parts) < 2 {
		d.Send("Usage: +mystery/trigger <id>/<name>=<clue ids>|<revelation>[|<unlock ids>]")
		return
	}
	var unlocks []string
	if len(parts) == 3 {
		unlocks = mystery.SplitIDs(parts[2])
	}
	if err := m.AddRevelationTrigger(tid, mystery.SplitIDs(parts[0]), strings.TrimSpace(parts[1]), unlocks); err != nil {
		d.Send(err.Error())
		return
	}
	g.emitChange(m, d.Player, "trigger set", tid)
	d.Send(fmt.Sprintf("Trigger '%s' set on mystery #%d.", tid, m.ID))
}

// --- Access ---

// staffAccess sets the rule list, or one of the legacy lists with
// +mystery/access <id>/<templates|characters|areas>=<list>.
func staffAccess(g *Game, d *Descriptor, args string) {
	left, value, ok := splitEq(args)
	if !ok {
		d.Send("Usage: +mystery/access <id>=<rule>[,<rule>...]  or  +mystery/access <id>/<templates|characters|areas>=<list>")
		return
	}
	mid, kind, legacy := strings.Cut(left, "/")
	m, err := lookupMystery(g, mid)
	if err != nil {
		d.Send(err.Error())
		return
	}
	if legacy {
		setLegacyAccess(g, d, m, strings.ToLower(strings.TrimSpace(kind)), value)
		return
	}

	var rules []mystery.Rule
	for _, s := range mystery.SplitList(value) {
		r, err := mystery.ParseAccessRule(s)
		if err != nil {
			d.Send(err.Error())
			return
		}
		rules = append(rules, r)
	}
	m.SetAccessRules(rules)
	g.emitChange(m, d.Player, "access", value)
	if len(rules) == 0 {
		d.Send(fmt.Sprintf("Access rules for mystery #%d cleared.", m.ID))
		return
	}
	d.Send(fmt.Sprintf("Access rules for mystery #%d set.", m.ID))
}

func setLegacyAccess(g *Game, d *Descriptor, m *mystery.Mystery, kind, value string) {
	_, l := m.Access()
	switch kind {
	case "templates", "template":
		l.AllowedTemplates = nil
		for _, t := range mystery.SplitList(value) {
			l.AllowedTemplates = append(l.AllowedTemplates, strings.ToLower(t))
		}
	case "characters", "chars":
		l.AllowedCharacters = nil
		for _, name := range mystery.SplitList(value) {
			ref := g.FindCharacter(d.Player, name)
			if ref == gamedb.Nothing {
				d.Send(fmt.Sprintf("No such character: %s", name))
				return
			}
			l.AllowedCharacters = append(l.AllowedCharacters, ref)
		}
	case "areas", "rooms":
		l.RestrictedAreas = nil
		for _, s := range mystery.SplitIDs(value) {
			ref := g.MatchObject(d.Player, s)
			obj, ok := g.DB.Objects[ref]
			if !ok || obj.ObjType() != gamedb.TypeRoom {
				d.Send(fmt.Sprintf("Not a room: %s", s))
				return
			}
			l.RestrictedAreas = append(l.RestrictedAreas, ref)
		}
	default:
		d.Send("Legacy access lists are templates, characters and areas.")
		return
	}
	m.SetLegacyAccess(l)
	g.emitChange(m, d.Player, "legacy access", kind)
	d.Send(fmt.Sprintf("Mystery #%d %s list set.", m.ID, kind))
}

func staffParticipant(g *Game, d *Descriptor, args string) {
	mid, who, ok := splitEq(args)
	if !ok || who == "" {
		d.Send("Usage: +mystery/participant <id>=[!]<character>")
		return
	}
	m, err := lookupMystery(g, mid)
	if err != nil {
		d.Send(err.Error())
		return
	}
	remove := strings.HasPrefix(who, "!")
	ref := g.FindCharacter(d.Player, strings.TrimPrefix(who, "!"))
	if ref == gamedb.Nothing {
		d.Send("No such character.")
		return
	}
	name := g.PlayerName(ref)
	if remove {
		if !m.RemoveParticipant(ref) {
			d.Send(fmt.Sprintf("%s is not a participant.", name))
			return
		}
		g.emitChange(m, d.Player, "participant removed", name)
		d.Send(fmt.Sprintf("%s removed from mystery #%d.", name, m.ID))
		return
	}
	if !m.AddParticipant(ref) {
		d.Send(fmt.Sprintf("%s is already a participant.", name))
		return
	}
	g.emitChange(m, d.Player, "participant added", name)
	d.Send(fmt.Sprintf("%s added to mystery #%d.", name, m.ID))
}

// --- Discoveries ---

func staffDiscovered(g *Game, d *Descriptor, args string) {
	m, err := lookupMystery(g, args)
	if err != nil {
		d.Send(err.Error())
		return
	}
	d.Send(fmt.Sprintf("=== Discoveries for mystery #%d ===", m.ID))
	for _, c := range m.ClueList() {
		if len(c.DiscoveredBy) == 0 {
			d.Send(fmt.Sprintf("  [%s] %s: undiscovered", c.ID, c.Name))
			continue
		}
		names := make([]string, len(c.DiscoveredBy))
		for i, ref := range c.DiscoveredBy {
			names[i] = g.PlayerName(ref)
		}
		d.Send(fmt.Sprintf("  [%s] %s: %s", c.ID, c.Name, strings.Join(names, ", ")))
	}
}

// grantTarget parses "<id>/<clue>=<character>".
func grantTarget(g *Game, d *Descriptor, args, usage string) (*mystery.Mystery, *mystery.Clue, gamedb.DBRef, bool) {
	left, who, ok := splitEq(args)
	if !ok || who == "" {
		d.Send("Usage: " + usage)
		return nil, nil, gamedb.Nothing, false
	}
	m, c, err := lookupMysteryClue(g, left)
	if err != nil {
		d.Send(err.Error())
		return nil, nil, gamedb.Nothing, false
	}
	ref := g.FindCharacter(d.Player, who)
	if ref == gamedb.Nothing {
		d.Send("No such character.")
		return nil, nil, gamedb.Nothing, false
	}
	return m, c, ref, true
}

func staffGrant(g *Game, d *Descriptor, args string) {
	m, c, ref, ok := grantTarget(g, d, args, "+mystery/grant <id>/<clue>=<character>")
	if !ok {
		return
	}
	disc, err := m.Grant(ref, c.ID)
	if err != nil {
		if errors.Is(err, mystery.ErrAlreadyDiscovered) {
			d.Send(fmt.Sprintf("%s already has that clue.", g.PlayerName(ref)))
			return
		}
		d.Send(err.Error())
		return
	}
	g.recordDiscovery(disc, d.Player)
	log.Printf("mystery: #%d clue %s granted to #%d by #%d", m.ID, c.ID, ref, d.Player)
	d.Send(fmt.Sprintf("Granted '%s' to %s.", c.Name, g.PlayerName(ref)))
}

func staffRevoke(g *Game, d *Descriptor, args string) {
	m, c, ref, ok := grantTarget(g, d, args, "+mystery/revoke <id>/<clue>=<character>")
	if !ok {
		return
	}
	if err := g.revokeClue(m, ref, c.ID, d.Player); err != nil {
		if errors.Is(err, mystery.ErrNotDiscovered) {
			d.Send(fmt.Sprintf("%s does not have that clue.", g.PlayerName(ref)))
			return
		}
		d.Send(err.Error())
		return
	}
	log.Printf("mystery: #%d clue %s revoked from #%d by #%d", m.ID, c.ID, ref, d.Player)
	d.Send(fmt.Sprintf("Revoked '%s' from %s.", c.Name, g.PlayerName(ref)))
}

// --- Templates ---

func staffTemplates(g *Game, d *Descriptor, _ string) {
	list := g.Templates.List()
	if len(list) == 0 {
		d.Send("No mystery templates are loaded.")
		return
	}
	for _, t := range list {
		d.Send(fmt.Sprintf("  %-20s %s (%s, difficulty %d, %d clues)", t.Name, t.Title, t.Category, t.Difficulty, len(t.Clues)))
	}
}

func staffTemplate(g *Game, d *Descriptor, args string) {
	if args == "" {
		d.Send("Usage: +mystery/template <name>")
		return
	}
	t, ok := g.Templates.Get(args)
	if !ok {
		d.Send(fmt.Sprintf("No template named '%s'.", args))
		return
	}
	m, err := t.Instantiate(g.Mysteries, d.Player)
	if err != nil {
		d.Send(err.Error())
		return
	}
	g.emitChange(m, d.Player, "created", "template "+t.Name)
	log.Printf("mystery: #%d created from template %s by #%d", m.ID, t.Name, d.Player)
	d.Send(fmt.Sprintf("Mystery #%d '%s' created from template %s.", m.ID, m.Summary().Title, t.Name))
}

// --- Reports ---

func staffProgress(g *Game, d *Descriptor, args string) {
	m, err := lookupMystery(g, args)
	if err != nil {
		d.Send(err.Error())
		return
	}
	sum := m.Summary()
	d.Send(fmt.Sprintf("=== Progress for mystery #%d: %s (%d%% overall) ===", sum.ID, sum.Title, sum.Completion))
	inv := m.Investigators()
	if len(inv) == 0 {
		d.Send("Nobody has found anything yet.")
		return
	}
	for _, ref := range inv {
		p := m.Progress(ref)
		d.Send(fmt.Sprintf("  %-20s %d/%d (%d%%)  clues: %s",
			g.PlayerName(ref), p.Found, p.Total, p.Percent, strings.Join(m.DiscoveredClues(ref), ", ")))
	}
}

func staffJournal(g *Game, d *Descriptor, args string) {
	if g.Journal == nil {
		d.Send("The investigation journal is not enabled.")
		return
	}
	m, err := lookupMystery(g, args)
	if err != nil {
		d.Send(err.Error())
		return
	}
	limit := 20
	if g.Conf != nil && g.Conf.JournalLimit > 0 {
		limit = g.Conf.JournalLimit
	}
	entries, err := g.Journal.Recent(m.ID, limit)
	if err != nil {
		log.Printf("journal: recent #%d: %v", m.ID, err)
		d.Send(msgInternalError)
		return
	}
	if len(entries) == 0 {
		d.Send(fmt.Sprintf("No journal entries for mystery #%d.", m.ID))
		return
	}
	d.Send(fmt.Sprintf("=== Journal for mystery #%d (latest %d) ===", m.ID, len(entries)))
	for _, e := range entries {
		who := ""
		if e.Character != gamedb.Nothing {
			who = g.PlayerName(e.Character) + " "
		}
		d.Send(fmt.Sprintf("%s %-10s %s%s", e.At.Format("2006-01-02 15:04"), e.Kind, who, e.Summary))
	}
}
