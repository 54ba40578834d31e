// Package bioformats parses biological sequence formats (FASTA, GenBank)
// natively and emits the same markdown + result.json artifact shape the
// external engines produce, so downstream result handling stays uniform.
package bioformats

import (
	"math"
	"sort"
	"strings"
)

// SequenceType distinguishes nucleotide from protein sequences.
type SequenceType string

const (
	Nucleotide SequenceType = "nucleotide"
	Protein    SequenceType = "protein"
)

// ORF is an open reading frame on the forward strand.
type ORF struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Length int    `json:"length"`
	Frame  int    `json:"frame"`
	Strand string `json:"strand"`
}

// Analysis holds the computed statistics for one sequence.
type Analysis struct {
	Type        SequenceType   `json:"sequence_type"`
	Length      int            `json:"length"`
	Composition map[string]int `json:"composition"`
	GCContent   float64        `json:"gc_content,omitempty"`
	GCSkew      float64        `json:"gc_skew,omitempty"`
	ATSkew      float64        `json:"at_skew,omitempty"`
	Entropy     float64        `json:"sequence_entropy"`
	ORFs        []ORF          `json:"orfs,omitempty"`
	LongestORF  int            `json:"longest_orf_length,omitempty"`
}

// minORFLength filters ORFs too short to be biologically interesting.
const minORFLength = 100

// DetectType classifies a sequence as nucleotide when at least 85% of its
// characters are nucleotide codes.
func DetectType(seq string) SequenceType {
	s := strings.ToUpper(seq)
	if s == "" {
		return Nucleotide
	}
	n := 0
	for _, c := range s {
		switch c {
		case 'A', 'T', 'C', 'G', 'U', 'N':
			n++
		}
	}
	if float64(n)/float64(len(s)) > 0.85 {
		return Nucleotide
	}
	return Protein
}

// Analyze computes the full statistic set for seq.
func Analyze(seq string) Analysis {
	s := strings.ToUpper(seq)
	a := Analysis{
		Type:        DetectType(s),
		Length:      len(s),
		Composition: Composition(s),
		Entropy:     Entropy(s),
	}
	if a.Type == Nucleotide {
		a.GCContent = GCContent(s)
		g, c := a.Composition["G"], a.Composition["C"]
		if g+c > 0 {
			a.GCSkew = float64(g-c) / float64(g+c)
		}
		at, tt := a.Composition["A"], a.Composition["T"]
		if at+tt > 0 {
			a.ATSkew = float64(at-tt) / float64(at+tt)
		}
		a.ORFs = FindORFs(s, minORFLength)
		for _, o := range a.ORFs {
			if o.Length > a.LongestORF {
				a.LongestORF = o.Length
			}
		}
	}
	return a
}

// Composition counts each character in the upper-cased sequence.
func Composition(seq string) map[string]int {
	out := map[string]int{}
	for _, c := range strings.ToUpper(seq) {
		out[string(c)]++
	}
	return out
}

// GCContent is the G+C fraction of the sequence, S (G or C) included.
func GCContent(seq string) float64 {
	if seq == "" {
		return 0
	}
	gc := 0
	for _, c := range strings.ToUpper(seq) {
		switch c {
		case 'G', 'C', 'S':
			gc++
		}
	}
	return float64(gc) / float64(len(seq))
}

// Entropy is the Shannon entropy of the character distribution, in bits.
func Entropy(seq string) float64 {
	if seq == "" {
		return 0
	}
	freq := Composition(seq)
	// Deterministic iteration keeps the float sum stable across runs.
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e := 0.0
	n := float64(len(seq))
	for _, k := range keys {
		p := float64(freq[k]) / n
		e -= p * math.Log2(p)
	}
	return e
}

// FindORFs scans the three forward frames for ATG..stop spans of at least
// minLength bases.
func FindORFs(seq string, minLength int) []ORF {
	s := strings.ToUpper(seq)
	isStop := func(c string) bool { return c == "TAA" || c == "TAG" || c == "TGA" }
	var orfs []ORF
	for frame := 0; frame < 3; frame++ {
		for i := frame; i+3 <= len(s); i += 3 {
			if s[i:i+3] != "ATG" {
				continue
			}
			for j := i + 3; j+3 <= len(s); j += 3 {
				if isStop(s[j : j+3]) {
					if length := j - i + 3; length >= minLength {
						orfs = append(orfs, ORF{Start: i, End: j + 3, Length: length, Frame: frame, Strand: "+"})
					}
					break
				}
			}
		}
	}
	return orfs
}
