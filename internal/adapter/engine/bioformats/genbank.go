package bioformats

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

// GenBank parses flat-file GenBank records natively.
type GenBank struct{}

// NewGenBank constructs the engine.
func NewGenBank() *GenBank { return &GenBank{} }

// Info implements domain.Engine.
func (e *GenBank) Info() domain.EngineInfo {
	return domain.EngineInfo{
		Name:        "genbank",
		DisplayName: "GenBank",
		Description: "Annotated gene sequence parsing with feature summaries",
		Category:    "bioinformatics",
		Extensions:  []string{".gb", ".gbk", ".genbank", ".gbff"},
	}
}

// Available implements domain.Engine.
func (e *GenBank) Available() error { return nil }

// Parse implements domain.Engine.
func (e *GenBank) Parse(ctx context.Context, req domain.ParseRequest) error {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return fmt.Errorf("op=engine.genbank: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := ParseGenBank(f)
	if err != nil {
		return fmt.Errorf("op=engine.genbank: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("op=engine.genbank: %w: no records found", domain.ErrInvalidArgument)
	}
	includeFull := req.Options.Bool("include_full_sequence", true)
	preview := int(req.Options.Float("max_sequence_preview", 100))

	plain := make([]Record, len(records))
	for i, r := range records {
		desc := r.Definition
		if r.Organism != "" {
			desc = fmt.Sprintf("%s [%s]", desc, r.Organism)
		}
		plain[i] = Record{ID: r.Accession, Description: desc, Sequence: r.Sequence, Analysis: r.Analysis}
	}
	if err := writeArtifacts(req, "genbank", "GenBank Record Analysis", plain, includeFull, preview); err != nil {
		return fmt.Errorf("op=engine.genbank: %w", err)
	}
	return nil
}

// GenBankRecord is one parsed flat-file entry.
type GenBankRecord struct {
	Locus      string         `json:"locus"`
	Definition string         `json:"definition"`
	Accession  string         `json:"accession"`
	Organism   string         `json:"organism"`
	Features   map[string]int `json:"feature_summary"`
	Sequence   string         `json:"sequence,omitempty"`
	Analysis
}

// ParseGenBank reads all records from r. Records end with "//"; the ORIGIN
// section carries numbered sequence lines.
func ParseGenBank(r io.Reader) ([]GenBankRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var records []GenBankRecord
	var cur *GenBankRecord
	var seq strings.Builder
	inOrigin, inFeatures := false, false
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "LOCUS"):
			if fields := strings.Fields(line); len(fields) > 1 {
				cur = &GenBankRecord{Locus: fields[1], Features: map[string]int{}}
			} else {
				cur = &GenBankRecord{Features: map[string]int{}}
			}
			inOrigin, inFeatures = false, false
		case cur == nil:
			continue
		case strings.HasPrefix(line, "DEFINITION"):
			cur.Definition = strings.TrimSpace(strings.TrimPrefix(line, "DEFINITION"))
		case strings.HasPrefix(line, "ACCESSION"):
			if fields := strings.Fields(line); len(fields) > 1 {
				cur.Accession = fields[1]
			}
		case strings.HasPrefix(line, "  ORGANISM"):
			cur.Organism = strings.TrimSpace(strings.TrimPrefix(line, "  ORGANISM"))
		case strings.HasPrefix(line, "FEATURES"):
			inFeatures = true
		case strings.HasPrefix(line, "ORIGIN"):
			inFeatures, inOrigin = false, true
		case strings.HasPrefix(line, "//"):
			cur.Sequence = seq.String()
			cur.Analysis = Analyze(cur.Sequence)
			if cur.Accession == "" {
				cur.Accession = cur.Locus
			}
			records = append(records, *cur)
			cur = nil
			seq.Reset()
			inOrigin, inFeatures = false, false
		case inOrigin:
			for _, c := range line {
				if unicode.IsLetter(c) {
					seq.WriteRune(unicode.ToUpper(c))
				}
			}
		case inFeatures:
			// Feature keys sit at column 5; qualifiers are indented further.
			if strings.HasPrefix(line, "     ") && len(line) > 5 && line[5] != ' ' {
				if fields := strings.Fields(line); len(fields) > 0 {
					cur.Features[fields[0]]++
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
