package vcf

import "strings"

// InfoDef is a ##INFO meta-information line.
type InfoDef struct {
	ID     string
	Number string // "1", "A", "R", "G", "." or a count
	Type   string // Integer, Float, Flag, Character or String
}

// IsInteger reports whether the field is declared as an integer.
func (d InfoDef) IsInteger() bool {
	return d.Type == "Integer"
}

// parseInfoDef parses a "##INFO=<ID=DP,Number=1,Type=Integer,...>" line.
// Description values may contain commas, so keys after Type are ignored.
func parseInfoDef(line string) (InfoDef, bool) {
	body, ok := strings.CutPrefix(line, "##INFO=<")
	if !ok {
		return InfoDef{}, false
	}
	body = strings.TrimSuffix(body, ">")

	var def InfoDef
	for _, part := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch key {
		case "ID":
			def.ID = value
		case "Number":
			def.Number = value
		case "Type":
			def.Type = value
		}
		if def.ID != "" && def.Number != "" && def.Type != "" {
			break
		}
	}

	if def.ID == "" {
		return InfoDef{}, false
	}
	return def, true
}
