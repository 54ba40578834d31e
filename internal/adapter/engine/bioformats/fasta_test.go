package bioformats

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

const sampleFASTA = `>seq1|chromosome fragment
ATCGATCGATCG
GCTAGCTAGCTA
>seq2 some protein
MKVLWAALLVTFLAGSQARHFWQQDE
`

func TestParseFASTA(t *testing.T) {
	t.Parallel()
	records, err := ParseFASTA(strings.NewReader(sampleFASTA))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "seq1|chromosome", records[0].ID)
	assert.Equal(t, "seq1|chromosome fragment", records[0].Description)
	assert.Equal(t, "ATCGATCGATCGGCTAGCTAGCTA", records[0].Sequence)
	assert.Equal(t, Nucleotide, records[0].Type)

	assert.Equal(t, "seq2", records[1].ID)
	assert.Equal(t, Protein, records[1].Type)
}

func TestParseFASTA_DataBeforeHeader(t *testing.T) {
	t.Parallel()
	_, err := ParseFASTA(strings.NewReader("ATCG\n>seq1\nATCG\n"))
	require.Error(t, err)
}

func TestFASTA_Parse_WritesArtifacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := filepath.Join(dir, "genome.fasta")
	require.NoError(t, os.WriteFile(in, []byte(sampleFASTA), 0o644))
	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(out, 0o755))

	eng := NewFASTA()
	require.NoError(t, eng.Available())
	err := eng.Parse(context.Background(), domain.ParseRequest{
		TaskID:    "t-1",
		FileName:  "genome.fasta",
		FilePath:  in,
		OutputDir: out,
		Options:   domain.Options{"max_sequence_preview": float64(10)},
	})
	require.NoError(t, err)

	md, err := os.ReadFile(filepath.Join(out, "genome.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# FASTA Sequence Analysis")
	assert.Contains(t, string(md), "**Sequence count**: 2")
	assert.Contains(t, string(md), "ATCGATCGAT...")

	raw, err := os.ReadFile(filepath.Join(out, "result.json"))
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "fasta", payload["format"])
	assert.Equal(t, float64(2), payload["sequence_count"])
}

func TestFASTA_Parse_EmptyFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := filepath.Join(dir, "empty.fa")
	require.NoError(t, os.WriteFile(in, nil, 0o644))

	err := NewFASTA().Parse(context.Background(), domain.ParseRequest{
		FileName: "empty.fa", FilePath: in, OutputDir: dir,
	})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}
