package bioformats

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

// Record is one parsed FASTA entry.
type Record struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Sequence    string `json:"sequence,omitempty"`
	Analysis
}

// FASTA parses biological sequence files natively. It needs no external
// binary, so Available always succeeds.
type FASTA struct{}

// NewFASTA constructs the engine.
func NewFASTA() *FASTA { return &FASTA{} }

// Info implements domain.Engine.
func (e *FASTA) Info() domain.EngineInfo {
	return domain.EngineInfo{
		Name:        "fasta",
		DisplayName: "FASTA",
		Description: "Biological sequence parsing with composition, GC and ORF statistics",
		Category:    "bioinformatics",
		Extensions:  []string{".fasta", ".fa", ".fna", ".ffn", ".faa", ".frn", ".fas"},
	}
}

// Available implements domain.Engine.
func (e *FASTA) Available() error { return nil }

// Parse implements domain.Engine, writing <stem>.md and result.json.
func (e *FASTA) Parse(ctx context.Context, req domain.ParseRequest) error {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return fmt.Errorf("op=engine.fasta: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := ParseFASTA(f)
	if err != nil {
		return fmt.Errorf("op=engine.fasta: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("op=engine.fasta: %w: no sequences found", domain.ErrInvalidArgument)
	}
	includeFull := req.Options.Bool("include_full_sequence", true)
	preview := int(req.Options.Float("max_sequence_preview", 100))

	if err := writeArtifacts(req, "fasta", "FASTA Sequence Analysis", records, includeFull, preview); err != nil {
		return fmt.Errorf("op=engine.fasta: %w", err)
	}
	return nil
}

// ParseFASTA reads all records from r. Header lines start with '>'; the
// first whitespace-delimited token is the id, the whole header the
// description. Sequence lines are concatenated with whitespace stripped.
func ParseFASTA(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var records []Record
	var cur *Record
	var seq strings.Builder
	flush := func() {
		if cur == nil {
			return
		}
		cur.Sequence = seq.String()
		cur.Analysis = Analyze(cur.Sequence)
		records = append(records, *cur)
		cur = nil
		seq.Reset()
	}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			header := strings.TrimPrefix(line, ">")
			id := header
			if fields := strings.Fields(header); len(fields) > 0 {
				id = fields[0]
			}
			cur = &Record{ID: id, Description: header}
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("sequence data before first header")
		}
		seq.WriteString(strings.Map(dropSpace, line))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return records, nil
}

func dropSpace(r rune) rune {
	if r == ' ' || r == '\t' {
		return -1
	}
	return r
}

// writeArtifacts renders the shared markdown + result.json pair used by both
// bioformat engines.
func writeArtifacts(req domain.ParseRequest, format, title string, records []Record, includeFull bool, preview int) error {
	if preview <= 0 {
		preview = 100
	}
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", title)
	total := 0
	shortest, longest := -1, 0
	for _, r := range records {
		total += r.Length
		if shortest < 0 || r.Length < shortest {
			shortest = r.Length
		}
		if r.Length > longest {
			longest = r.Length
		}
	}
	if shortest < 0 {
		shortest = 0
	}
	md.WriteString("## Statistics\n\n")
	fmt.Fprintf(&md, "- **Sequence count**: %d\n", len(records))
	fmt.Fprintf(&md, "- **Total length**: %d bp\n", total)
	if len(records) > 0 {
		fmt.Fprintf(&md, "- **Average length**: %.0f bp\n", float64(total)/float64(len(records)))
	}
	fmt.Fprintf(&md, "- **Shortest sequence**: %d bp\n", shortest)
	fmt.Fprintf(&md, "- **Longest sequence**: %d bp\n\n", longest)

	md.WriteString("## Sequence details\n\n")
	for i, r := range records {
		fmt.Fprintf(&md, "### %d. %s\n\n", i+1, r.ID)
		fmt.Fprintf(&md, "**Description**: %s\n\n", r.Description)
		fmt.Fprintf(&md, "**Type**: %s, **Length**: %d bp\n\n", r.Type, r.Length)
		if r.Type == Nucleotide {
			fmt.Fprintf(&md, "**GC content**: %.2f%%, **ORFs**: %d (longest %d bp)\n\n",
				r.GCContent*100, len(r.ORFs), r.LongestORF)
		}
		p := r.Sequence
		if len(p) > preview {
			p = p[:preview] + "..."
		}
		fmt.Fprintf(&md, "**Sequence preview**:\n```\n%s\n```\n\n", p)
	}

	stem := strings.TrimSuffix(req.FileName, filepath.Ext(req.FileName))
	if err := os.WriteFile(filepath.Join(req.OutputDir, stem+".md"), []byte(md.String()), 0o644); err != nil {
		return err
	}

	out := records
	if !includeFull {
		out = make([]Record, len(records))
		copy(out, records)
		for i := range out {
			out[i].Sequence = ""
		}
	}
	payload := map[string]any{
		"format":         format,
		"sequence_count": len(records),
		"total_length":   total,
		"sequences":      out,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(req.OutputDir, "result.json"), data, 0o644)
}
