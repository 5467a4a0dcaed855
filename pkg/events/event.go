package events

import "github.com/crystal-mush/chroniclemush/pkg/gamedb"

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText       EventType = iota // plain text, the fallback
	EvSay                         // speech
	EvPose                        // pose/emote
	EvConnect                     // character connected
	EvDisconnect                  // character disconnected
	EvRoll                        // investigation dice roll
	EvDiscovery                   // clue discovered or granted
	EvRevelation                  // revelation trigger fired
	EvRevoke                      // clue revoked by staff
	EvMystery                     // mystery created, changed or deleted
)

var typeNames = [...]string{
	EvText:       "text",
	EvSay:        "say",
	EvPose:       "pose",
	EvConnect:    "connect",
	EvDisconnect: "disconnect",
	EvRoll:       "roll",
	EvDiscovery:  "discovery",
	EvRevelation: "revelation",
	EvRevoke:     "revoke",
	EvMystery:    "mystery",
}

// String is the name used in WebSocket frames and journal entries.
func (t EventType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// Investigation lists the event types that change or record the state of a
// mystery. Journal and metrics subscribe to these only.
var Investigation = []EventType{EvRoll, EvDiscovery, EvRevelation, EvRevoke, EvMystery}

// Event is a structured game event that flows through the event bus.
// Telnet uses Text; WebSocket clients and the journal use the
// structured fields.
type Event struct {
	Type    EventType
	Player  gamedb.DBRef   // recipient, Nothing for broadcast
	Source  gamedb.DBRef   // who caused it
	Room    gamedb.DBRef   // where it happened
	Mystery int            // 0 outside investigations
	Clue    string         // clue id within Mystery
	Text    string         // pre-formatted for line clients
	Data    map[string]any // structured payload for JSON clients
}
