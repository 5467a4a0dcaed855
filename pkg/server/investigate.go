package server

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/dice"
	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
	"github.com/crystal-mush/chroniclemush/pkg/sheet"
)

// recordDiscovery mirrors a discovery onto the character, persists the
// mystery and tells the character (and any global subscribers) about it.
// by is who caused it: the character, a sharing player or staff.
func (g *Game) recordDiscovery(disc *mystery.Discovery, by gamedb.DBRef) {
	if obj, ok := g.DB.Objects[disc.Character]; ok {
		if err := sheet.RecordClue(obj, disc.MysteryID, disc.ClueID); err != nil {
			log.Printf("mystery: mirror clue %d/%s on #%d: %v", disc.MysteryID, disc.ClueID, disc.Character, err)
		}
		g.PersistObject(obj)
	}
	if m, err := g.Mysteries.Get(disc.MysteryID); err == nil {
		g.PersistMystery(m)
	}

	var text string
	switch disc.Method {
	case mystery.MethodStaff:
		text = fmt.Sprintf("[Mystery #%d: %s] You have learned of a clue: %s", disc.MysteryID, disc.MysteryTitle, disc.ClueName)
	case mystery.MethodShared:
		text = fmt.Sprintf("[Mystery #%d: %s] %s shares a clue with you: %s", disc.MysteryID, disc.MysteryTitle, g.PlayerName(by), disc.ClueName)
	default:
		text = fmt.Sprintf("[Mystery #%d: %s] You discover a clue: %s", disc.MysteryID, disc.MysteryTitle, disc.ClueName)
	}
	if disc.Description != "" {
		text += "\n  " + disc.Description
	}
	if disc.Bonus != "" {
		text += "\n  Exceptional insight: " + disc.Bonus
	}
	g.Emit(disc.Character, events.Event{
		Type:    events.EvDiscovery,
		Source:  by,
		Mystery: disc.MysteryID,
		Clue:    disc.ClueID,
		Text:    text,
		Data: map[string]any{
			"mystery":    disc.MysteryID,
			"title":      disc.MysteryTitle,
			"clue":       disc.ClueID,
			"name":       disc.ClueName,
			"method":     string(disc.Method),
			"completion": disc.Completion,
			"by":         int(by),
		},
	})

	for _, rev := range disc.Revelations {
		g.Emit(disc.Character, events.Event{
			Type:    events.EvRevelation,
			Source:  by,
			Mystery: disc.MysteryID,
			Clue:    rev.TriggerID,
			Text:    fmt.Sprintf("REVELATION [Mystery #%d]: %s", disc.MysteryID, rev.Text),
			Data: map[string]any{
				"mystery":  disc.MysteryID,
				"trigger":  rev.TriggerID,
				"unlocked": rev.Unlocked,
			},
		})
	}

	if disc.Solved {
		msg := fmt.Sprintf("Mystery #%d '%s' has been solved!", disc.MysteryID, disc.MysteryTitle)
		g.Emit(disc.Character, events.Event{
			Type:    events.EvMystery,
			Source:  by,
			Mystery: disc.MysteryID,
			Text:    msg,
			Data:    map[string]any{"mystery": disc.MysteryID, "status": string(mystery.StatusSolved)},
		})
		g.NotifyStaff("[Mystery] " + msg)
		log.Printf("mystery: #%d solved by discovery of %s by #%d", disc.MysteryID, disc.ClueID, disc.Character)
	}
}

// formatRoll renders "Wits + Investigation (5 dice): 10 8 3 2 1 = 2 successes".
func formatRoll(attr, skill string, roll dice.Outcome) string {
	faces := make([]string, len(roll.Dice))
	for i, f := range roll.Dice {
		faces[i] = strconv.Itoa(f)
	}
	pool := fmt.Sprintf("%d dice", roll.Pool)
	if roll.Chance {
		pool = "chance die"
	}
	plural := "es"
	if roll.Successes == 1 {
		plural = ""
	}
	return fmt.Sprintf("%s + %s (%s): %s = %d success%s",
		statLabel(attr), statLabel(skill), pool, strings.Join(faces, " "), roll.Successes, plural)
}

func statLabel(name string) string {
	words := strings.Split(sheet.Key(name), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// investigate runs one investigation for d's character through the shared
// resolver and reports every step to the player.
func (g *Game) investigate(d *Descriptor, req mystery.Request) {
	req.Sheet = g.Sheet(d.Player)
	res, err := g.Resolver.Investigate(req)
	if err != nil {
		switch {
		case errors.Is(err, mystery.ErrTargetRequired):
			d.Send(fmt.Sprintf("Usage: +mystery/%s <target>", req.Method))
		case errors.Is(err, mystery.ErrTopicRequired):
			d.Send(fmt.Sprintf("Usage: +mystery/%s <topic>", req.Method))
		default:
			d.Send(err.Error())
		}
		return
	}

	if !res.Rolled {
		d.Send(noLeadsMessage(req))
		return
	}

	name := g.PlayerName(d.Player)
	for _, h := range res.Helpers {
		d.Send(fmt.Sprintf("%s assists: %d success(es).", h.Name, h.Roll.Successes))
	}
	rollText := formatRoll(res.Attribute, res.Skill, res.Roll)
	g.Emit(d.Player, events.Event{
		Type:   events.EvRoll,
		Source: d.Player,
		Text:   fmt.Sprintf("You %s: %s", methodVerb(res.Method), rollText),
		Data: map[string]any{
			"method":      string(res.Method),
			"pool":        res.Pool,
			"dice":        res.Roll.Dice,
			"successes":   res.Roll.Successes,
			"exceptional": res.Exceptional,
			"candidates":  res.Candidates,
		},
	})
	g.EmitRoomExcept(g.PlayerLocation(d.Player), d.Player, events.Event{
		Type:   events.EvPose,
		Source: d.Player,
		Text:   fmt.Sprintf("%s %s.", name, methodPose(res.Method)),
	})

	if res.Roll.Successes == 0 {
		d.Send("You find nothing of note.")
		return
	}
	if res.Exceptional {
		d.Send("*** Exceptional success! ***")
	}
	for _, disc := range res.Granted {
		g.recordDiscovery(disc, d.Player)
	}
	for _, sk := range res.Skipped {
		log.Printf("[%d] investigate: #%d missed %d/%s: %s", d.ID, d.Player, sk.MysteryID, sk.ClueID, sk.Reason)
	}
	if len(res.Granted) == 0 {
		d.Send("You sense there is more here, but it slips past you.")
	}
}

func noLeadsMessage(req mystery.Request) string {
	switch req.Method {
	case mystery.MethodExamine:
		return fmt.Sprintf("You examine %s closely but find nothing that bears on any mystery.", req.Target)
	case mystery.MethodInterview:
		return fmt.Sprintf("%s has nothing to tell you that bears on any mystery.", req.Target)
	case mystery.MethodResearch, mystery.MethodOccult:
		return fmt.Sprintf("Your inquiries into '%s' turn up nothing useful.", req.Topic)
	}
	return "You search the area but find nothing of interest."
}

func methodVerb(m mystery.Method) string {
	switch m {
	case mystery.MethodExamine:
		return "examine"
	case mystery.MethodSearch:
		return "search"
	case mystery.MethodInterview:
		return "interview"
	case mystery.MethodResearch:
		return "research"
	case mystery.MethodOccult:
		return "delve into occult lore"
	}
	return string(m)
}

func methodPose(m mystery.Method) string {
	switch m {
	case mystery.MethodExamine:
		return "examines something closely"
	case mystery.MethodSearch:
		return "searches the area carefully"
	case mystery.MethodInterview:
		return "asks a few pointed questions"
	case mystery.MethodResearch:
		return "pores over notes and references"
	case mystery.MethodOccult:
		return "mutters over arcane notes"
	}
	return "investigates"
}

// deleteMystery removes a mystery and everything hanging off it: placed
// clue objects, character mirrors and the stored record.
func (g *Game) deleteMystery(id int, by gamedb.DBRef) (*mystery.Mystery, error) {
	m, placements, err := g.Mysteries.Delete(id)
	if err != nil {
		return nil, err
	}
	for _, p := range placements {
		g.DestroyObject(p.Ref)
	}
	for _, ref := range g.DB.Players() {
		obj := g.DB.Objects[ref]
		if _, has := sheet.RecordedClues(obj)[id]; !has {
			continue
		}
		if err := sheet.ForgetMystery(obj, id); err != nil {
			log.Printf("mystery: forget #%d on #%d: %v", id, ref, err)
			continue
		}
		g.PersistObject(obj)
	}
	if g.Store != nil {
		if err := g.Store.DeleteMystery(id); err != nil {
			log.Printf("ERROR: delete mystery #%d: %v", id, err)
		}
	}
	sum := m.Summary()
	g.EventBus.Emit(events.Event{
		Type:    events.EvMystery,
		Player:  gamedb.Nothing,
		Source:  by,
		Mystery: id,
		Text:    fmt.Sprintf("Mystery #%d '%s' deleted.", id, sum.Title),
		Data:    map[string]any{"mystery": id, "action": "deleted", "clues": sum.Clues, "placements": len(placements)},
	})
	log.Printf("mystery: #%d '%s' deleted by #%d (%d clue objects destroyed)", id, sum.Title, by, len(placements))
	return m, nil
}

// revokeClue takes a clue back from a character and updates the mirror.
func (g *Game) revokeClue(m *mystery.Mystery, ref gamedb.DBRef, clueID string, by gamedb.DBRef) error {
	c, err := m.Clue(clueID)
	if err != nil {
		return err
	}
	if err := m.Revoke(ref, clueID); err != nil {
		return err
	}
	if obj, ok := g.DB.Objects[ref]; ok {
		if err := sheet.ForgetClue(obj, m.ID, clueID); err != nil {
			log.Printf("mystery: unmirror clue %d/%s on #%d: %v", m.ID, clueID, ref, err)
		}
		g.PersistObject(obj)
	}
	g.PersistMystery(m)
	g.Emit(ref, events.Event{
		Type:    events.EvRevoke,
		Source:  by,
		Mystery: m.ID,
		Clue:    clueID,
		Text:    fmt.Sprintf("[Mystery #%d] Your knowledge of '%s' has been withdrawn by staff.", m.ID, c.Name),
		Data:    map[string]any{"mystery": m.ID, "clue": clueID, "by": int(by)},
	})
	return nil
}

// noteAutoSolve reports a mystery that a staff edit carried to full
// completion. was is the status the edit left it in.
func (g *Game) noteAutoSolve(m *mystery.Mystery, by gamedb.DBRef, was mystery.Status) {
	if was != mystery.StatusActive || m.CurrentStatus() != mystery.StatusSolved {
		return
	}
	g.notifyStatus(m, by, mystery.StatusActive, mystery.StatusSolved)
	g.NotifyStaff(fmt.Sprintf("[Mystery] Mystery #%d '%s' has been solved!", m.ID, m.Summary().Title))
	log.Printf("mystery: #%d solved at full completion after staff edit by #%d", m.ID, by)
}

// notifyStatus tells staff about a status change and emits it for the journal.
func (g *Game) notifyStatus(m *mystery.Mystery, by gamedb.DBRef, from, to mystery.Status) {
	g.PersistMystery(m)
	title := m.Summary().Title
	g.EventBus.Emit(events.Event{
		Type:    events.EvMystery,
		Player:  gamedb.Nothing,
		Source:  by,
		Mystery: m.ID,
		Text:    fmt.Sprintf("Mystery #%d '%s' is now %s.", m.ID, title, to),
		Data:    map[string]any{"mystery": m.ID, "action": "status", "from": string(from), "to": string(to)},
	})
}
