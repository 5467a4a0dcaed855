package sheet

import (
	"fmt"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Sections of a sheet that SetStat may write.
const (
	SectionAttributes = "attributes"
	SectionSkills     = "skills"
	SectionMerits     = "merits"
	SectionBio        = "bio"
)

// SetStat writes one value into the SHEET attribute of ref. Existing
// categorized sheets keep their shape; anything else is written flat.
// A nil value removes the entry.
func SetStat(db *gamedb.Database, ref gamedb.DBRef, section, name string, value any) error {
	obj, ok := db.Objects[ref]
	if !ok {
		return fmt.Errorf("sheet: no such object #%d", ref)
	}
	key := Key(name)
	if key == "" {
		return fmt.Errorf("sheet: empty stat name")
	}
	raw := obj.Attr(gamedb.A_SHEET)
	if raw == "" || !gjson.Valid(raw) {
		raw = "{}"
	}

	path := section + "." + key
	switch section {
	case SectionAttributes, SectionSkills:
		if cat := category(section, key); cat != "" && gjson.Get(raw, section+"."+cat).IsObject() {
			path = section + "." + cat + "." + key
		}
	case SectionMerits, SectionBio:
	default:
		return fmt.Errorf("sheet: unknown section %q", section)
	}

	var (
		out string
		err error
	)
	if value == nil {
		out, err = sjson.Delete(raw, path)
	} else {
		out, err = sjson.Set(raw, path, value)
	}
	if err != nil {
		return fmt.Errorf("sheet: write %s: %w", path, err)
	}
	obj.SetAttr(gamedb.A_SHEET, out)
	return nil
}

func category(section, key string) string {
	if section == SectionAttributes {
		return KnownAttributes[key]
	}
	return KnownSkills[key]
}
