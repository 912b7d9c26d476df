package tccmatrix_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/haibao-labs/tccmatrix"
)

// writeFile is a small helper shared by this file's tests.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
	return path
}

// s1GTF encodes scenario S1/S2: transcript A with exons chr1:100-200 and
// chr1:300-400 (1-based inclusive, as GTF coordinates arrive), transcript B
// with one exon chr1:100-400.
const s1GTF = `chr1	test	exon	100	200	.	+	.	transcript_id "A";
chr1	test	exon	300	400	.	+	.	transcript_id "A";
chr1	test	exon	100	400	.	+	.	transcript_id "B";
`

func TestBuildAnnotationIndexAssignsStableIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s1.gtf", s1GTF)

	idx, err := tccmatrix.BuildAnnotationIndex([]string{path}, nil, false)
	if err != nil {
		t.Fatalf("BuildAnnotationIndex: %v", err)
	}
	if idx.NumTranscripts() != 2 {
		t.Fatalf("NumTranscripts()=%d, want 2", idx.NumTranscripts())
	}

	idxAgain, err := tccmatrix.BuildAnnotationIndex([]string{path}, nil, false)
	if err != nil {
		t.Fatalf("BuildAnnotationIndex (second run): %v", err)
	}
	if idxAgain.NameToID["a"] != idx.NameToID["a"] || idxAgain.NameToID["b"] != idx.NameToID["b"] {
		t.Errorf("transcript id assignment is not stable across runs: %v vs %v", idx.NameToID, idxAgain.NameToID)
	}
}

func TestBuildAnnotationIndexExonSetsCoverScenarioS1(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s1.gtf", s1GTF)

	idx, err := tccmatrix.BuildAnnotationIndex([]string{path}, nil, false)
	if err != nil {
		t.Fatalf("BuildAnnotationIndex: %v", err)
	}
	a, b := idx.NameToID["a"], idx.NameToID["b"]

	el := idx.Contigs["chr1"]
	if el == nil {
		t.Fatal("no exon list for chr1")
	}
	if el.Len() != 3 {
		t.Fatalf("Len()=%d, want 3", el.Len())
	}

	// mate-1 CIGAR 100M at pos 100 (0-based 99): contained by A's 100-200
	// exon and by B's 100-400 exon (1-based), so the EC has both A and B.
	ec1 := tccmatrix.AlignmentEC(idx, "chr1", 0, 99, mustCigar(t, "100M"), false)
	if !containsAll(ec1, a, b) {
		t.Errorf("mate-1 EC = %v, want to contain A=%d and B=%d", ec1, a, b)
	}

	// mate-2 CIGAR 100M at pos 300 (0-based 299): contained by A's 300-400
	// exon and by B's 100-400 exon, so again A and B.
	ec2 := tccmatrix.AlignmentEC(idx, "chr1", 0, 299, mustCigar(t, "100M"), false)
	if !containsAll(ec2, a, b) {
		t.Errorf("mate-2 EC = %v, want to contain A=%d and B=%d", ec2, a, b)
	}
}

// s2GTF is S1's annotation with B's exon extended to chr1:100-500, so a
// spliced alignment's second block can land past A's exon boundary while
// still being contained by B alone.
const s2GTF = `chr1	test	exon	100	200	.	+	.	transcript_id "A";
chr1	test	exon	300	400	.	+	.	transcript_id "A";
chr1	test	exon	100	500	.	+	.	transcript_id "B";
`

func TestBuildAnnotationIndexScenarioS2Splice(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s2.gtf", s2GTF)

	idx, err := tccmatrix.BuildAnnotationIndex([]string{path}, nil, false)
	if err != nil {
		t.Fatalf("BuildAnnotationIndex: %v", err)
	}
	b := idx.NameToID["b"]

	// mate-2 CIGAR 50M50N50M at pos 300 (0-based 299): sub-intervals
	// [299,349) and [399,449) — the second one lands past A's exon end
	// (400) but is still contained by B's wider exon, so the alignment
	// EC collapses to {B} alone.
	ec := tccmatrix.AlignmentEC(idx, "chr1", 0, 299, mustCigar(t, "50M50N50M"), false)
	if len(ec) != 1 || ec[0] != b {
		t.Fatalf("mate-2 EC = %v, want [%d]", ec, b)
	}
}

func containsAll(ec []int, ids ...int) bool {
	set := make(map[int]bool, len(ec))
	for _, id := range ec {
		set[id] = true
	}
	for _, id := range ids {
		if !set[id] {
			return false
		}
	}
	return true
}
