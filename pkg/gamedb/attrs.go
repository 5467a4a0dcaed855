package gamedb

// Built-in attribute numbers.
const (
	A_PASS  = 5
	A_DESC  = 6
	A_LAST  = 30
	A_ALIAS = 58

	A_SHEET        = 200 // character sheet JSON
	A_GROUPS       = 201 // space-separated group names
	A_MYSTERYCLUES = 202 // mirrored mystery discoveries, JSON
	A_CLUEREF      = 203 // "<mysteryID>/<clueID>" on placed clue objects
)

// A_USER_START is the first number handed to user-defined attributes.
const A_USER_START = 256

var wellKnownByName = map[string]int{
	"PASS":          A_PASS,
	"DESC":          A_DESC,
	"LAST":          A_LAST,
	"ALIAS":         A_ALIAS,
	"SHEET":         A_SHEET,
	"GROUPS":        A_GROUPS,
	"MYSTERY_CLUES": A_MYSTERYCLUES,
	"CLUEREF":       A_CLUEREF,
}
