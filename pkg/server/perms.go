package server

import (
	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

// msgStaffOnly is the reply to a staff command used by anyone else.
const msgStaffOnly = "Permission denied: staff or storyteller only."

// Wizard returns true if obj has the WIZARD flag.
func Wizard(g *Game, obj gamedb.DBRef) bool {
	o, ok := g.DB.Objects[obj]
	if !ok {
		return false
	}
	return o.HasFlag(gamedb.FlagWizard)
}

// Royalty returns true if obj has the ROYALTY flag.
func Royalty(g *Game, obj gamedb.DBRef) bool {
	o, ok := g.DB.Objects[obj]
	if !ok {
		return false
	}
	return o.HasFlag(gamedb.FlagRoyalty)
}

// WizRoy returns true if obj is either a wizard or royalty.
func WizRoy(g *Game, obj gamedb.DBRef) bool {
	return Wizard(g, obj) || Royalty(g, obj)
}

// Storyteller returns true if obj carries the STAFF or STORYTELLER flag.
func Storyteller(g *Game, obj gamedb.DBRef) bool {
	o, ok := g.DB.Objects[obj]
	if !ok {
		return false
	}
	return o.HasFlag2(gamedb.Flag2Staff) || o.HasFlag2(gamedb.Flag2Storyteller)
}

// IsStaff reports whether obj may run mysteries: wizards, royalty and
// anyone flagged STAFF or STORYTELLER.
func IsStaff(g *Game, obj gamedb.DBRef) bool {
	return WizRoy(g, obj) || Storyteller(g, obj)
}

// requireStaff sends the permission message and returns false unless the
// descriptor's player is staff.
func requireStaff(g *Game, d *Descriptor) bool {
	if IsStaff(g, d.Player) {
		return true
	}
	d.Send(msgStaffOnly)
	return false
}
