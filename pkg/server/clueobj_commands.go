package server

import (
	"fmt"
	"log"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/events"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
)

// cmdClueObj handles +clueobj: placing things in rooms that stand for clues.
func cmdClueObj(g *Game, d *Descriptor, args string, switches []string) {
	if !requireStaff(g, d) {
		return
	}
	args = strings.TrimSpace(args)
	if len(switches) == 0 {
		clueObjList(g, d, args)
		return
	}
	sw := strings.ToLower(switches[0])
	switch sw {
	case "create":
		clueObjCreate(g, d, args)
	case "edit":
		clueObjEdit(g, d, args)
	case "list":
		clueObjList(g, d, args)
	case "delete", "destroy":
		clueObjDelete(g, d, args)
	default:
		d.Send(fmt.Sprintf("+clueobj: Unknown switch /%s.", sw))
	}
}

// placeClueObject marks obj as standing for m/clueID and records it.
func (g *Game) placeClueObject(obj *gamedb.Object, m *mystery.Mystery, clueID string) error {
	co := mystery.ClueObject{Ref: obj.DBRef, MysteryID: m.ID, ClueID: clueID}
	if err := g.Mysteries.Place(co); err != nil {
		return err
	}
	obj.Flags[1] |= gamedb.Flag2ClueObject
	obj.SetAttr(gamedb.A_CLUEREF, fmt.Sprintf("%d/%s", m.ID, clueID))
	g.PersistObject(obj)
	if g.Store != nil {
		if err := g.Store.PutClueObject(co); err != nil {
			log.Printf("ERROR: persist clue object #%d: %v", obj.DBRef, err)
		}
	}
	return nil
}

// removeClueObject forgets the placement and destroys the thing.
func (g *Game) removeClueObject(ref gamedb.DBRef) {
	g.Mysteries.Unplace(ref)
	if g.Store != nil {
		if err := g.Store.DeleteClueObject(ref); err != nil {
			log.Printf("ERROR: delete clue object #%d: %v", ref, err)
		}
	}
	g.DestroyObject(ref)
}

// matchClueObject finds a placed clue object by name in the room or by #ref.
func matchClueObject(g *Game, d *Descriptor, name string) (gamedb.DBRef, mystery.ClueObject, bool) {
	ref := g.MatchObject(d.Player, name)
	if ref == gamedb.Nothing {
		d.Send("I don't see that here.")
		return gamedb.Nothing, mystery.ClueObject{}, false
	}
	p, ok := g.Mysteries.Placement(ref)
	if !ok {
		d.Send(fmt.Sprintf("%s is not a clue object.", g.ObjName(ref)))
		return gamedb.Nothing, mystery.ClueObject{}, false
	}
	return ref, p, true
}

// clueObjCreate handles +clueobj/create <name>=<mystery>/<clue>.
func clueObjCreate(g *Game, d *Descriptor, args string) {
	name, ref, ok := splitEq(args)
	if !ok || name == "" || ref == "" {
		d.Send("Usage: +clueobj/create <name>=<mystery>/<clue>")
		return
	}
	m, c, err := lookupMysteryClue(g, ref)
	if err != nil {
		d.Send(err.Error())
		return
	}
	room := g.PlayerLocation(d.Player)
	if _, ok := g.DB.Objects[room]; !ok {
		d.Send("You are nowhere.")
		return
	}
	thing := g.CreateObject(name, gamedb.TypeThing, d.Player)
	obj := g.DB.Objects[thing]
	obj.Link = room
	g.AddToContents(room, thing)
	if roomObj, ok := g.DB.Objects[room]; ok {
		g.PersistObjects(obj, roomObj)
	}
	if err := g.placeClueObject(obj, m, c.ID); err != nil {
		g.DestroyObject(thing)
		d.Send(err.Error())
		return
	}
	g.EmitRoomExcept(room, d.Player, events.Event{
		Type:   events.EvText,
		Source: d.Player,
		Text:   fmt.Sprintf("%s sets down %s.", g.PlayerName(d.Player), name),
	})
	log.Printf("clueobj: %s created for %d/%s by #%d", g.ObjName(thing), m.ID, c.ID, d.Player)
	d.Send(fmt.Sprintf("Clue object %s created for mystery #%d clue [%s] '%s'.", g.ObjName(thing), m.ID, c.ID, c.Name))
}

// clueObjEdit handles +clueobj/edit <object>=<mystery>/<clue>.
func clueObjEdit(g *Game, d *Descriptor, args string) {
	name, ref, ok := splitEq(args)
	if !ok || name == "" || ref == "" {
		d.Send("Usage: +clueobj/edit <object>=<mystery>/<clue>")
		return
	}
	thing, _, ok := matchClueObject(g, d, name)
	if !ok {
		return
	}
	m, c, err := lookupMysteryClue(g, ref)
	if err != nil {
		d.Send(err.Error())
		return
	}
	if err := g.placeClueObject(g.DB.Objects[thing], m, c.ID); err != nil {
		d.Send(err.Error())
		return
	}
	d.Send(fmt.Sprintf("%s now stands for mystery #%d clue [%s] '%s'.", g.ObjName(thing), m.ID, c.ID, c.Name))
}

// clueObjList handles +clueobj/list [<mystery>].
func clueObjList(g *Game, d *Descriptor, args string) {
	id := 0
	if args != "" {
		m, err := lookupMystery(g, args)
		if err != nil {
			d.Send(err.Error())
			return
		}
		id = m.ID
	}
	placed := g.Mysteries.Placements(id)
	if len(placed) == 0 {
		d.Send("No clue objects placed.")
		return
	}
	for _, p := range placed {
		clue := p.ClueID
		if m, err := g.Mysteries.Get(p.MysteryID); err == nil {
			if c, err := m.Clue(p.ClueID); err == nil {
				clue = fmt.Sprintf("[%s] %s", c.ID, c.Name)
			}
		}
		d.Send(fmt.Sprintf("  %-24s in %-24s mystery #%d %s",
			g.ObjName(p.Ref), g.ObjName(g.PlayerLocation(p.Ref)), p.MysteryID, clue))
	}
	d.Send(fmt.Sprintf("%d clue objects.", len(placed)))
}

// clueObjDelete handles +clueobj/delete <object>.
func clueObjDelete(g *Game, d *Descriptor, args string) {
	if args == "" {
		d.Send("Usage: +clueobj/delete <object>")
		return
	}
	thing, _, ok := matchClueObject(g, d, args)
	if !ok {
		return
	}
	label := g.ObjName(thing)
	g.removeClueObject(thing)
	log.Printf("clueobj: %s destroyed by #%d", label, d.Player)
	d.Send(fmt.Sprintf("%s destroyed.", label))
}
