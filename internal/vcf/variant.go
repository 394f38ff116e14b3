// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"fmt"
	"strings"
)

// Missing is the VCF placeholder for an absent value.
const Missing = "."

// Variant represents a single genomic variant from a VCF file.
// Column values are kept as written; typing happens in the caller.
type Variant struct {
	Chrom  string               // Chromosome name (e.g., "1", "chr1")
	Pos    int64                // 1-based genomic position
	ID     string               // Variant identifier (e.g., rs ID)
	Ref    string               // Reference allele
	Alt    string               // Alternate alleles, comma-separated
	Qual   string               // Quality score as written
	Filter string               // PASS, "." or semicolon-separated filter names
	Info   map[string]InfoEntry // INFO field key-value pairs
}

// InfoEntry is a single INFO key's value.
type InfoEntry struct {
	Value string // raw value, may be comma-separated
	Flag  bool   // key present without "=value"
}

// Locus formats the variant position as chrom:pos.
func (v *Variant) Locus() string {
	return fmt.Sprintf("%s:%d", v.Chrom, v.Pos)
}

// Alts returns the alternate alleles, or nil when ALT is missing.
func (v *Variant) Alts() []string {
	if v.Alt == "" || v.Alt == Missing {
		return nil
	}
	return strings.Split(v.Alt, ",")
}

// Filters returns the failed filter names.
// PASS and a missing FILTER column both yield nil.
func (v *Variant) Filters() []string {
	if v.Filter == "" || v.Filter == Missing || v.Filter == "PASS" {
		return nil
	}
	var names []string
	for _, name := range strings.Split(v.Filter, ";") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// InfoValue returns the INFO entry for key and whether it is present.
func (v *Variant) InfoValue(key string) (InfoEntry, bool) {
	e, ok := v.Info[key]
	return e, ok
}
