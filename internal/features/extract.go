package features

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/variantqc/internal/vcf"
)

// Stats counts records seen by an extraction pass.
type Stats struct {
	Records   int // data lines read, including malformed ones
	Extracted int
	Skipped   int
}

// Extractor converts VCF records into feature rows.
type Extractor struct {
	infoDefs map[string]vcf.InfoDef
	logger   *zap.Logger
}

// NewExtractor creates an extractor using the given ##INFO definitions
// to decide which annotations are integers. defs may be nil.
func NewExtractor(defs map[string]vcf.InfoDef) *Extractor {
	return &Extractor{
		infoDefs: defs,
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger for skipped-record warnings.
func (e *Extractor) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Extract builds the feature row for a single variant using the extractor's
// ##INFO definitions. Missing annotations are absent values; an error means
// the record itself is unusable.
func (e *Extractor) Extract(v *vcf.Variant) (Row, error) {
	return extract(v, e.infoDefs)
}

func extract(v *vcf.Variant, defs map[string]vcf.InfoDef) (Row, error) {
	row := Row{
		Chrom:  v.Chrom,
		Pos:    v.Pos,
		Ref:    v.Ref,
		Filter: normalizeFilter(v),
	}
	if v.ID != vcf.Missing {
		row.ID = v.ID
	}
	if alts := v.Alts(); len(alts) > 0 && alts[0] != vcf.Missing {
		row.Alt = alts[0]
	}

	if v.Qual != "" && v.Qual != vcf.Missing {
		q, err := strconv.ParseFloat(v.Qual, 64)
		if err != nil {
			return Row{}, fmt.Errorf("QUAL: invalid value %q", v.Qual)
		}
		row.Qual = Float(q)
	}

	for _, key := range AnnotationKeys {
		entry, ok := v.InfoValue(key)
		if !ok {
			continue
		}
		val, err := annotationValue(key, entry, defs)
		if err != nil {
			return Row{}, err
		}
		row.setAnnotation(key, val)
	}

	return row, nil
}

// annotationValue types a single INFO entry. Only the first of a
// comma-separated list is kept.
func annotationValue(key string, entry vcf.InfoEntry, defs map[string]vcf.InfoDef) (Value, error) {
	if entry.Flag {
		return Value{}, fmt.Errorf("%s: flag has no numeric value", key)
	}

	raw, _, _ := strings.Cut(entry.Value, ",")
	if raw == "" || raw == vcf.Missing {
		return Value{}, nil
	}

	def, declared := defs[key]
	if declared && def.IsInteger() {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%s: invalid integer %q", key, raw)
		}
		return Int(n), nil
	}
	if !declared {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Int(n), nil
		}
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Value{}, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return Float(f), nil
}

// normalizeFilter joins failed filter names with ";" and maps an empty list to PASS.
func normalizeFilter(v *vcf.Variant) string {
	names := v.Filters()
	if len(names) == 0 {
		return PassFilter
	}
	return strings.Join(names, ";")
}

// ExtractAll reads every record from the parser and returns the rows that
// extracted cleanly, in input order. Malformed records are logged and skipped.
func (e *Extractor) ExtractAll(parser vcf.VariantParser) ([]Row, Stats, error) {
	return e.extractAll(parser, e.infoDefs)
}

func (e *Extractor) extractAll(parser vcf.VariantParser, defs map[string]vcf.InfoDef) ([]Row, Stats, error) {
	var (
		rows  []Row
		stats Stats
	)

	for {
		v, err := parser.Next()
		if err != nil {
			var pe *vcf.ParseError
			if !errors.As(err, &pe) {
				return nil, stats, fmt.Errorf("read variant: %w", err)
			}
			stats.Records++
			stats.Skipped++
			e.logger.Warn("skipping malformed record",
				zap.String("chrom", pe.Chrom),
				zap.Int("line", pe.Line),
				zap.Error(err))
			continue
		}
		if v == nil {
			break
		}
		stats.Records++

		row, err := extract(v, defs)
		if err != nil {
			stats.Skipped++
			e.logger.Warn("error processing record",
				zap.String("locus", v.Locus()),
				zap.String("chrom", v.Chrom),
				zap.Int64("pos", v.Pos),
				zap.Error(err))
			continue
		}
		rows = append(rows, row)
		stats.Extracted++
	}

	return rows, stats, nil
}

// ExtractFile extracts features from the VCF at path.
// A missing file is reported before anything is read. Without definitions
// from NewExtractor, annotations are typed by this file's own ##INFO header.
func (e *Extractor) ExtractFile(path string) ([]Row, Stats, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Stats{}, fmt.Errorf("VCF not found: %s: %w", path, os.ErrNotExist)
		}
		return nil, Stats{}, fmt.Errorf("stat vcf: %w", err)
	}

	parser, err := vcf.NewParser(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer parser.Close()

	defs := e.infoDefs
	if defs == nil {
		defs = parser.InfoDefs()
	}

	return e.extractAll(parser, defs)
}
