package sheet

import (
	"sort"
	"strconv"
	"strings"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// The MYSTERY_CLUES attribute mirrors a character's discoveries so other
// softcode and the web client can read them without the mystery store:
//
//	{"mystery_3":["1","4"],"mystery_7":["2"]}

func mirrorKey(mysteryID int) string {
	return "mystery_" + strconv.Itoa(mysteryID)
}

// RecordClue adds clueID under mysteryID in the character's mirror.
// Recording an already present clue is a no-op.
func RecordClue(obj *gamedb.Object, mysteryID int, clueID string) error {
	raw := mirrorRaw(obj)
	key := mirrorKey(mysteryID)
	var clues []string
	for _, c := range gjson.Get(raw, key).Array() {
		if c.String() == clueID {
			return nil
		}
		clues = append(clues, c.String())
	}
	return writeMirror(obj, raw, key, append(clues, clueID))
}

// ForgetClue removes one clue from the mirror.
func ForgetClue(obj *gamedb.Object, mysteryID int, clueID string) error {
	raw := mirrorRaw(obj)
	key := mirrorKey(mysteryID)
	var keep []string
	for _, c := range gjson.Get(raw, key).Array() {
		if c.String() != clueID {
			keep = append(keep, c.String())
		}
	}
	return writeMirror(obj, raw, key, keep)
}

// ForgetMystery removes every clue of mysteryID from the mirror.
func ForgetMystery(obj *gamedb.Object, mysteryID int) error {
	return writeMirror(obj, mirrorRaw(obj), mirrorKey(mysteryID), nil)
}

// RecordedClues returns the mirror as mystery id -> sorted clue ids.
func RecordedClues(obj *gamedb.Object) map[int][]string {
	out := make(map[int][]string)
	gjson.Parse(mirrorRaw(obj)).ForEach(func(k, v gjson.Result) bool {
		id, err := strconv.Atoi(strings.TrimPrefix(k.String(), "mystery_"))
		if err != nil {
			return true
		}
		var clues []string
		for _, c := range v.Array() {
			clues = append(clues, c.String())
		}
		sort.Strings(clues)
		out[id] = clues
		return true
	})
	return out
}

func mirrorRaw(obj *gamedb.Object) string {
	raw := obj.Attr(gamedb.A_MYSTERYCLUES)
	if raw == "" || !gjson.Valid(raw) {
		return "{}"
	}
	return raw
}

func writeMirror(obj *gamedb.Object, raw, key string, clues []string) error {
	var (
		out string
		err error
	)
	if len(clues) == 0 {
		out, err = sjson.Delete(raw, key)
	} else {
		out, err = sjson.Set(raw, key, clues)
	}
	if err != nil {
		return err
	}
	if out == "{}" {
		out = ""
	}
	obj.SetAttr(gamedb.A_MYSTERYCLUES, out)
	return nil
}
