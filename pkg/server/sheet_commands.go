package server

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/sheet"
	"github.com/tidwall/gjson"
)

// cmdStat handles +stat <character>/<stat>=<value>. Attributes, skills
// and bio fields are recognized by name; merits take a "merit:" prefix
// and "groups" sets the group list. An empty value removes the stat.
func cmdStat(g *Game, d *Descriptor, args string, _ []string) {
	if !requireStaff(g, d) {
		return
	}
	left, value, ok := splitEq(args)
	who, stat, hasStat := strings.Cut(left, "/")
	stat = strings.TrimSpace(stat)
	if !ok || !hasStat || stat == "" {
		d.Send("Usage: +stat <character>/<stat>=<value>")
		return
	}
	target := g.FindCharacter(d.Player, who)
	if target == gamedb.Nothing {
		d.Send("No such character.")
		return
	}
	obj := g.DB.Objects[target]
	name := g.PlayerName(target)

	if strings.EqualFold(stat, "groups") {
		obj.SetAttr(gamedb.A_GROUPS, value)
		g.PersistObject(obj)
		d.Send(fmt.Sprintf("%s groups set to: %s", name, value))
		return
	}

	section, key := statSection(stat)
	if section == "" {
		d.Send(fmt.Sprintf("Unknown stat '%s'. Use an attribute, skill, bio field (%s) or merit:<name>.",
			stat, strings.Join(sheet.BioFields, ", ")))
		return
	}

	var v any
	switch {
	case value == "":
	case section == sheet.SectionBio:
		v = value
	default:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 10 {
			d.Send("Dots must be a number from 0 to 10.")
			return
		}
		v = n
	}
	if err := sheet.SetStat(g.DB, target, section, key, v); err != nil {
		d.Send(err.Error())
		return
	}
	g.PersistObject(obj)
	log.Printf("+stat: #%d set %s.%s=%q on #%d", d.Player, section, key, value, target)
	if v == nil {
		d.Send(fmt.Sprintf("%s: %s removed.", name, statLabel(key)))
		return
	}
	d.Send(fmt.Sprintf("%s: %s set to %v.", name, statLabel(key), v))
}

// statSection works out which sheet section a stat name belongs to.
func statSection(stat string) (section, key string) {
	if rest, ok := strings.CutPrefix(strings.ToLower(stat), "merit:"); ok {
		return sheet.SectionMerits, sheet.Key(rest)
	}
	key = sheet.Key(stat)
	if _, ok := sheet.KnownAttributes[key]; ok {
		return sheet.SectionAttributes, key
	}
	if _, ok := sheet.KnownSkills[key]; ok {
		return sheet.SectionSkills, key
	}
	for _, f := range sheet.BioFields {
		if f == key {
			return sheet.SectionBio, key
		}
	}
	return "", key
}

// cmdSheet shows a character sheet. Staff may view anyone's.
func cmdSheet(g *Game, d *Descriptor, args string, _ []string) {
	target := d.Player
	if args = strings.TrimSpace(args); args != "" {
		target = g.FindCharacter(d.Player, args)
		if target == gamedb.Nothing {
			d.Send("No such character.")
			return
		}
		if target != d.Player && !IsStaff(g, d.Player) {
			d.Send("You can only view your own sheet.")
			return
		}
	}
	sh := g.Sheet(target)
	d.Send(fmt.Sprintf("=== %s ===", sh.Name()))

	var bio []string
	for _, f := range sheet.BioFields {
		if v := sh.Bio(f); v != "" {
			bio = append(bio, fmt.Sprintf("%s: %s", statLabel(f), v))
		}
	}
	if len(bio) > 0 {
		d.Send(strings.Join(bio, "  "))
	}

	d.Send("--- Attributes ---")
	for _, cat := range sheet.Categories {
		d.Send(fmt.Sprintf("%-9s %s", statLabel(cat)+":", strings.Join(statsIn(sheet.KnownAttributes, cat, sh.Attribute, true), "  ")))
	}
	d.Send("--- Skills ---")
	for _, cat := range sheet.Categories {
		if row := statsIn(sheet.KnownSkills, cat, sh.Skill, false); len(row) > 0 {
			d.Send(fmt.Sprintf("%-9s %s", statLabel(cat)+":", strings.Join(row, "  ")))
		}
	}

	if merits := sheetMerits(sh.Raw()); len(merits) > 0 {
		d.Send("--- Merits ---")
		d.Send(strings.Join(merits, "  "))
	}
	if groups := sh.Groups(); len(groups) > 0 {
		d.Send("Groups: " + strings.Join(groups, ", "))
	}
}

// statsIn lists "Name N" for the stats of one category, skipping zero
// values unless all is set.
func statsIn(known map[string]string, cat string, dots func(string) int, all bool) []string {
	var names []string
	for name, c := range known {
		if c == cat {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	var out []string
	for _, name := range names {
		n := dots(name)
		if n == 0 && !all {
			continue
		}
		out = append(out, fmt.Sprintf("%s %d", statLabel(name), n))
	}
	return out
}

// sheetMerits reads the merits section of a SHEET JSON blob.
func sheetMerits(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	gjson.Get(raw, "merits").ForEach(func(k, v gjson.Result) bool {
		out = append(out, fmt.Sprintf("%s %d", statLabel(k.String()), v.Int()))
		return true
	})
	sort.Strings(out)
	return out
}
