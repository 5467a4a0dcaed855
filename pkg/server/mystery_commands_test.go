package server

import (
	"slices"
	"testing"

	"github.com/crystal-mush/chroniclemush/pkg/dice"
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/crystal-mush/chroniclemush/pkg/mystery"
	"github.com/crystal-mush/chroniclemush/pkg/sheet"
)

func mirrored(g *Game, ref gamedb.DBRef, mysteryID int) []string {
	return sheet.RecordedClues(g.DB.Objects[ref])[mysteryID]
}

func TestMysteryStaffSwitchesRequireStaff(t *testing.T) {
	e := newTestEnv(t)
	for _, cmd := range []string{
		"+mystery/create Murder=Someone died",
		"+mystery/grant 1/1=Bob",
		"+mystery/delete 1",
		"+clueobj/create Letter=1/1",
	} {
		out := e.bob.run(e.game, cmd)
		assertContains(t, out, msgStaffOnly)
	}
	if n := len(e.game.Mysteries.All()); n != 0 {
		t.Errorf("mysteries = %d, want 0", n)
	}
}

func TestMysteryUnknownSwitch(t *testing.T) {
	e := newTestEnv(t)
	out := e.wiz.run(e.game, "+mystery/frobnicate")
	assertContains(t, out, "+mystery: Unknown switch /frobnicate.")
}

func TestMysteryCreateAndAddClue(t *testing.T) {
	e := newTestEnv(t)
	out := e.wiz.run(e.game, "+mystery/create The Hollow Man=Bodies turn up drained.")
	assertContains(t, out, "Mystery #1 'The Hollow Man' created.")

	out = e.wiz.run(e.game, "+mystery/addclue 1=Bloody Knife/A knife crusted with dried blood.")
	assertContains(t, out, "Clue [1] 'Bloody Knife' added to mystery #1.")

	m, err := e.game.Mysteries.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	sum := m.Summary()
	if sum.Category != "general" || sum.Difficulty != 3 {
		t.Errorf("defaults = %q/%d, want general/3", sum.Category, sum.Difficulty)
	}
	if sum.Clues != 1 {
		t.Errorf("clues = %d, want 1", sum.Clues)
	}
}

func TestMysteryListRespectsAccess(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Hunters Only", "Silver Bullet", "A bullet of pure silver.")
	m.SetAccessRules([]mystery.Rule{mystery.Group("hunters")})

	out := e.bob.run(e.game, "+mystery")
	assertContains(t, out, "There are no mysteries open to you right now.")
	assertContains(t, e.bob.run(e.game, "+mystery 1"), "You know of no such mystery.")

	e.wiz.run(e.game, "+stat Bob/groups=hunters")
	out = e.bob.run(e.game, "+mystery")
	assertContains(t, out, "Hunters Only")
	assertContains(t, out, "0/1 (0%)")

	// Staff see everything in the staff list.
	out = e.wiz.run(e.game, "+mystery/list")
	assertContains(t, out, "Hunters Only")
	assertContains(t, out, "Active: 1")
}

func TestMysterySearchDiscoversFirstCandidate(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "The Hollow Man",
		"Bloody Knife", "A knife crusted with dried blood.",
		"Torn Letter", "A scrap of paper in a careful hand.")

	e.wiz.reset()
	out := e.bob.run(e.game, "+mystery/search")
	assertContains(t, out, "You search: Wits + Investigation (5 dice):")
	assertContains(t, out, "= 1 success")
	assertContains(t, out, "You discover a clue: Bloody Knife")
	assertNotContains(t, out, "Torn Letter")
	assertContains(t, e.wiz.text(), "Bob searches the area carefully.")

	if !m.HasDiscovered(refBob, "1") {
		t.Error("Bob should hold clue 1")
	}
	if m.HasDiscovered(refBob, "2") {
		t.Error("Bob should not hold clue 2")
	}
	if got := mirrored(e.game, refBob, m.ID); !slices.Equal(got, []string{"1"}) {
		t.Errorf("mirror = %v, want [1]", got)
	}
	if st := m.CurrentStatus(); st != mystery.StatusActive {
		t.Errorf("status = %s, want active", st)
	}

	// The next search finds the remaining clue and solves the mystery.
	e.wiz.reset()
	out = e.bob.run(e.game, "+mystery/search")
	assertContains(t, out, "You discover a clue: Torn Letter")
	assertContains(t, out, "has been solved!")
	assertContains(t, e.wiz.text(), "[Mystery] Mystery #1 'The Hollow Man' has been solved!")
	if st := m.CurrentStatus(); st != mystery.StatusSolved {
		t.Errorf("status = %s, want solved", st)
	}
}

func TestMysterySearchNothingOfNote(t *testing.T) {
	e := newTestEnvWithRoller(t, dice.Fixed(0))
	m := e.newMystery(t, "Cold Case", "Footprint", "A muddy footprint by the door.")

	out := e.bob.run(e.game, "+mystery/search")
	assertContains(t, out, "You find nothing of note.")
	if m.HasDiscovered(refBob, "1") {
		t.Error("no successes should grant nothing")
	}
}

func TestMysterySearchWithoutLeads(t *testing.T) {
	e := newTestEnv(t)
	out := e.bob.run(e.game, "+mystery/search")
	assertContains(t, out, "You search the area but find nothing of interest.")
	assertNotContains(t, out, "dice")
}

func TestMysteryExceptionalSuccessGrantsTwo(t *testing.T) {
	e := newTestEnvWithRoller(t, dice.Fixed(3))
	m := e.newMystery(t, "Three Clues",
		"First", "The first sign.",
		"Second", "The second sign.",
		"Third", "The third sign.")
	m.SetRevelation("1", "It was never an accident.")

	out := e.bob.run(e.game, "+mystery/search")
	assertContains(t, out, "*** Exceptional success! ***")
	assertContains(t, out, "Exceptional insight: It was never an accident.")
	if got := m.DiscoveredClues(refBob); !slices.Equal(got, []string{"1", "2"}) {
		t.Errorf("discovered = %v, want [1 2]", got)
	}
}

func TestMysteryResearchNeedsTopic(t *testing.T) {
	e := newTestEnv(t)
	e.newMystery(t, "Lore", "Old Rite", "A rite from the Black Book.")
	assertContains(t, e.bob.run(e.game, "+mystery/research"), "Usage: +mystery/research <topic>")

	out := e.bob.run(e.game, "+mystery/research gardening")
	assertContains(t, out, "Your inquiries into 'gardening' turn up nothing useful.")

	out = e.bob.run(e.game, "+mystery/research black book")
	assertContains(t, out, "You discover a clue: Old Rite")
}

func TestMysteryExamineMatchesDescription(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Desk Secrets", "Hidden Drawer", "The old desk has a hidden drawer.")

	assertContains(t, e.bob.run(e.game, "+mystery/examine"), "Usage: +mystery/examine <object>")
	assertContains(t, e.bob.run(e.game, "+mystery/examine piano"), "I don't see that here.")

	out := e.bob.run(e.game, "+mystery/examine Old Desk")
	assertContains(t, out, "Resolve + Composure (4 dice)")
	assertContains(t, out, "You discover a clue: Hidden Drawer")
	if !m.HasDiscovered(refBob, "1") {
		t.Error("Bob should hold clue 1")
	}
}

func TestClueObjectPinsItsClueOnExamine(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Letters",
		"Bloody Knife", "A knife crusted with dried blood.",
		"Confession", "A scrap of paper in a careful hand.")

	out := e.wiz.run(e.game, "+clueobj/create Torn Letter=1/2")
	assertContains(t, out, "created for mystery #1 clue [2] 'Confession'")
	placed := e.game.Mysteries.Placements(m.ID)
	if len(placed) != 1 || placed[0].ClueID != "2" {
		t.Fatalf("placements = %+v, want one for clue 2", placed)
	}
	thing := placed[0].Ref
	obj := e.game.DB.Objects[thing]
	if !obj.HasFlag2(gamedb.Flag2ClueObject) || obj.Attr(gamedb.A_CLUEREF) != "1/2" {
		t.Errorf("clue object flags/attr not set: %+v", obj)
	}
	if obj.Location != e.room {
		t.Errorf("clue object in #%d, want #%d", obj.Location, e.room)
	}

	out = e.bob.run(e.game, "+mystery/examine Torn Letter")
	assertContains(t, out, "You discover a clue: Confession")
	if !m.HasDiscovered(refBob, "2") || m.HasDiscovered(refBob, "1") {
		t.Errorf("discovered = %v, want [2]", m.DiscoveredClues(refBob))
	}

	assertContains(t, e.wiz.run(e.game, "+clueobj/list"), "Torn Letter")
	out = e.wiz.run(e.game, "+clueobj/delete Torn Letter")
	assertContains(t, out, "destroyed.")
	if _, ok := e.game.DB.Objects[thing]; ok {
		t.Error("clue object should be destroyed")
	}
	if _, ok := e.game.Mysteries.Placement(thing); ok {
		t.Error("placement should be forgotten")
	}
}

func TestMysteryInterviewNeedsSomeoneHere(t *testing.T) {
	e := newTestEnv(t)
	e.newMystery(t, "Witness", "Alibi", "The wizard swears they were elsewhere.")
	assertContains(t, e.bob.run(e.game, "+mystery/interview Nobody"), "There is nobody here by that name.")
	assertContains(t, e.bob.run(e.game, "+mystery/interview here"), "There is nobody here by that name.")

	out := e.bob.run(e.game, "+mystery/interview Wizard")
	assertContains(t, out, "You discover a clue: Alibi")
}

func TestMysteryGrantAndRevokeMirror(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Granted",
		"Rumor", "Word on the street.",
		"Ledger", "Numbers that do not add up.")

	e.bob.reset()
	out := e.wiz.run(e.game, "+mystery/grant 1/2=Bob")
	assertContains(t, out, "Granted 'Ledger' to Bob.")
	assertContains(t, e.bob.text(), "You have learned of a clue: Ledger")
	if !m.HasDiscovered(refBob, "2") {
		t.Fatal("grant should bypass every check")
	}
	if got := mirrored(e.game, refBob, m.ID); !slices.Equal(got, []string{"2"}) {
		t.Errorf("mirror = %v, want [2]", got)
	}
	assertContains(t, e.wiz.run(e.game, "+mystery/grant 1/2=Bob"), "Bob already has that clue.")

	e.bob.reset()
	out = e.wiz.run(e.game, "+mystery/revoke 1/2=Bob")
	assertContains(t, out, "Revoked 'Ledger' from Bob.")
	assertContains(t, e.bob.text(), "has been withdrawn by staff")
	if m.HasDiscovered(refBob, "2") {
		t.Error("revoke should remove the clue")
	}
	if got := mirrored(e.game, refBob, m.ID); len(got) != 0 {
		t.Errorf("mirror = %v, want empty", got)
	}
	assertContains(t, e.wiz.run(e.game, "+mystery/revoke 1/2=Bob"), "Bob does not have that clue.")
}

func TestMysteryShareNeedsSameRoom(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Shared",
		"Rumor", "Word on the street.",
		"Ledger", "Numbers that do not add up.")

	assertContains(t, e.wiz.run(e.game, "+mystery/share Bob=1/1"), "You have not found that clue.")

	if _, err := m.Grant(refWiz, "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Grant(refWiz, "2"); err != nil {
		t.Fatal(err)
	}

	e.bob.reset()
	out := e.wiz.run(e.game, "+mystery/share Bob=1/1")
	assertContains(t, out, "You share 'Rumor' with Bob.")
	assertContains(t, e.bob.text(), "Wizard shares a clue with you: Rumor")
	assertContains(t, e.wiz.run(e.game, "+mystery/share Bob=1/1"), "Bob already knows that.")

	e.moveTo(refBob, refAlley)
	assertContains(t, e.wiz.run(e.game, "+mystery/share Bob=1/2"), "Bob is not here.")
	if m.HasDiscovered(refBob, "2") {
		t.Error("share across rooms should fail")
	}
}

func TestMysteryCollaborateAddsHelperDice(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Teamwork", "Tracks", "Faint tracks in the dust.")

	out := e.bob.run(e.game, "+mystery/collaborate search=Wizard")
	assertContains(t, out, "Wizard assists: 1 success(es).")
	// Bob's Wits 3 + Investigation 2 plus one die from the helper.
	assertContains(t, out, "(6 dice)")
	assertContains(t, out, "You discover a clue: Tracks")
	if !m.HasDiscovered(refBob, "1") {
		t.Error("collaboration should grant to the leader")
	}

	e.moveTo(refWiz, refAlley)
	assertContains(t, e.bob.run(e.game, "+mystery/collaborate search=Wizard"), "Wizard is not here to help.")
}

func TestMysteryRevelationTriggerFires(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Revelations",
		"Rumor", "Word on the street.",
		"Ledger", "Numbers that do not add up.",
		"Safe", "A locked safe.")

	out := e.wiz.run(e.game, "+mystery/trigger 1/money=1,2|Follow the money.")
	assertNotContains(t, out, "Usage")
	if n := len(m.TriggerList()); n != 1 {
		t.Fatalf("triggers = %d, want 1", n)
	}

	e.wiz.run(e.game, "+mystery/grant 1/1=Bob")
	e.bob.reset()
	e.wiz.run(e.game, "+mystery/grant 1/2=Bob")
	assertContains(t, e.bob.text(), "REVELATION [Mystery #1]: Follow the money.")

	// Fires once per character.
	e.wiz.run(e.game, "+mystery/revoke 1/2=Bob")
	e.bob.reset()
	e.wiz.run(e.game, "+mystery/grant 1/2=Bob")
	assertNotContains(t, e.bob.text(), "REVELATION")
}

func TestMysteryDeleteCascades(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Doomed", "Rumor", "Word on the street.", "Ledger", "Numbers.")
	e.wiz.run(e.game, "+mystery/grant 1/1=Bob")
	e.wiz.run(e.game, "+clueobj/create Ledger Book=1/2")
	placed := e.game.Mysteries.Placements(m.ID)
	if len(placed) != 1 {
		t.Fatalf("placements = %d, want 1", len(placed))
	}
	thing := placed[0].Ref

	out := e.wiz.run(e.game, "+mystery/delete 1")
	assertContains(t, out, "Mystery #1 'Doomed' deleted.")
	if _, err := e.game.Mysteries.Get(1); err == nil {
		t.Error("mystery should be gone")
	}
	if _, ok := e.game.DB.Objects[thing]; ok {
		t.Error("clue object should be destroyed with the mystery")
	}
	if _, ok := sheet.RecordedClues(e.game.DB.Objects[refBob])[1]; ok {
		t.Error("Bob's mirror should forget the deleted mystery")
	}
}

func TestMysteryDelClueCleansUp(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Pruned", "Rumor", "Word on the street.", "Ledger", "Numbers.")
	e.wiz.run(e.game, "+mystery/grant 1/2=Bob")
	e.wiz.run(e.game, "+clueobj/create Ledger Book=1/2")
	thing := e.game.Mysteries.Placements(m.ID)[0].Ref

	e.wiz.run(e.game, "+mystery/delclue 1/2")
	if _, err := m.Clue("2"); err == nil {
		t.Error("clue 2 should be removed")
	}
	if got := mirrored(e.game, refBob, m.ID); len(got) != 0 {
		t.Errorf("mirror = %v, want empty", got)
	}
	if _, ok := e.game.DB.Objects[thing]; ok {
		t.Error("clue object for the removed clue should be destroyed")
	}
}

func TestMysteryStatusSuspendHidesFromPlayers(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Paused", "Rumor", "Word on the street.")

	out := e.wiz.run(e.game, "+mystery/status 1=suspended")
	assertContains(t, out, "Mystery #1 is now suspended.")
	if st := m.CurrentStatus(); st != mystery.StatusSuspended {
		t.Fatalf("status = %s, want suspended", st)
	}
	assertContains(t, e.bob.run(e.game, "+mystery/search"), "You search the area but find nothing of interest.")
	assertContains(t, e.bob.run(e.game, "+mystery"), "There are no mysteries open to you right now.")

	e.wiz.run(e.game, "+mystery/status 1=active")
	assertContains(t, e.bob.run(e.game, "+mystery/search"), "You discover a clue: Rumor")
}

func TestMysteryResumedAtFullCompletionIsSolved(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Dormant", "Rumor", "Word on the street.")
	e.wiz.run(e.game, "+mystery/status 1=suspended")
	e.wiz.run(e.game, "+mystery/grant 1/1=Bob")
	if st := m.CurrentStatus(); st != mystery.StatusSuspended {
		t.Fatalf("status after grant = %s, want suspended", st)
	}

	out := e.wiz.run(e.game, "+mystery/status 1=active")
	assertContains(t, out, "[Mystery] Mystery #1 'Dormant' has been solved!")
	if st := m.CurrentStatus(); st != mystery.StatusSolved {
		t.Errorf("status = %s, want solved", st)
	}
	if n := len(e.game.Mysteries.Active()); n != 0 {
		t.Errorf("active mysteries = %d, want 0", n)
	}
}

func TestMysteryDelClueCanSolve(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Pruned", "Rumor", "Word on the street.", "Ledger", "Numbers.")
	e.wiz.run(e.game, "+mystery/grant 1/1=Bob")

	out := e.wiz.run(e.game, "+mystery/delclue 1/2")
	assertContains(t, out, "has been solved!")
	if st := m.CurrentStatus(); st != mystery.StatusSolved {
		t.Errorf("status = %s, want solved", st)
	}
}

func TestMysteryShareNeedsActiveMystery(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Closed", "Rumor", "Word on the street.", "Ledger", "Numbers.")
	if _, err := m.Grant(refWiz, "1"); err != nil {
		t.Fatal(err)
	}
	e.wiz.run(e.game, "+mystery/status 1=cancelled")

	assertContains(t, e.wiz.run(e.game, "+mystery/share Bob=1/1"), "Mystery #1 is not active.")
	if m.HasDiscovered(refBob, "1") {
		t.Error("share inside a cancelled mystery should not grant")
	}
	if got := mirrored(e.game, refBob, m.ID); len(got) != 0 {
		t.Errorf("mirror = %v, want empty", got)
	}
}

func TestMysteryClueViewNeedsDiscovery(t *testing.T) {
	e := newTestEnv(t)
	m := e.newMystery(t, "Trail", "Rumor", "Word on the street.", "Ledger", "Numbers.")
	if err := m.SetClueLeads("1", []string{"2"}); err != nil {
		t.Fatal(err)
	}
	assertContains(t, e.bob.run(e.game, "+mystery/clue 1/1"), "You have not found that clue.")

	e.wiz.run(e.game, "+mystery/grant 1/1=Bob")
	out := e.bob.run(e.game, "+mystery/clue 1/1")
	assertContains(t, out, "=== Mystery #1, clue [1]: Rumor ===")
	assertContains(t, out, "It points toward: Ledger")

	out = e.bob.run(e.game, "+mystery/progress 1")
	assertContains(t, out, "you hold 1 of 2 clues (50%)")
}
