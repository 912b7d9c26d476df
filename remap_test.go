package tccmatrix_test

import (
	"testing"

	"github.com/haibao-labs/tccmatrix"
)

const remapGTF = `chr1	test	exon	100	200	.	+	.	transcript_id "A";
chr1	test	exon	100	400	.	+	.	transcript_id "B";
`

func TestBuildTranscriptRemapScenarioS5(t *testing.T) {
	dir := t.TempDir()
	gtfPath := writeFile(t, dir, "s5.gtf", remapGTF)
	// FASTA order puts B first, A second — the reverse of annotation order.
	fastaPath := writeFile(t, dir, "s5.fa", ">B.1 some transcript\nACGT\n>A.1 some transcript\nACGT\n")

	idx, err := tccmatrix.BuildAnnotationIndex([]string{gtfPath}, nil, false)
	if err != nil {
		t.Fatalf("BuildAnnotationIndex: %v", err)
	}
	a, b := idx.NameToID["a"], idx.NameToID["b"]
	if a != 0 || b != 1 {
		t.Fatalf("annotation order ids = A:%d B:%d, want A:0 B:1", a, b)
	}

	remap, err := tccmatrix.BuildTranscriptRemap(idx, []string{fastaPath}, false)
	if err != nil {
		t.Fatalf("BuildTranscriptRemap: %v", err)
	}
	if remap[a] != 1 {
		t.Errorf("remap[A]=%d, want 1", remap[a])
	}
	if remap[b] != 0 {
		t.Errorf("remap[B]=%d, want 0", remap[b])
	}
}

func TestBuildTranscriptRemapUnmatchedAnnotationNameAppendsPastFastaRange(t *testing.T) {
	dir := t.TempDir()
	gtfPath := writeFile(t, dir, "s5b.gtf", remapGTF)
	// FASTA only names A; B has no FASTA counterpart.
	fastaPath := writeFile(t, dir, "s5b.fa", ">A.1\nACGT\n")

	idx, err := tccmatrix.BuildAnnotationIndex([]string{gtfPath}, nil, false)
	if err != nil {
		t.Fatalf("BuildAnnotationIndex: %v", err)
	}
	a, b := idx.NameToID["a"], idx.NameToID["b"]

	remap, err := tccmatrix.BuildTranscriptRemap(idx, []string{fastaPath}, false)
	if err != nil {
		t.Fatalf("BuildTranscriptRemap: %v", err)
	}
	if remap[a] != 0 {
		t.Errorf("remap[A]=%d, want 0", remap[a])
	}
	if remap[b] != 1 {
		t.Errorf("remap[B]=%d (unmatched, should append past FASTA range), want 1", remap[b])
	}
}

func TestReadReferenceECOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ref.ec", "0\t0\n1\t1\n2\t0,1\n")

	order, set, err := tccmatrix.ReadReferenceECOrder(path)
	if err != nil {
		t.Fatalf("ReadReferenceECOrder: %v", err)
	}
	want := []string{"0", "1", "0,1"}
	if len(order) != len(want) {
		t.Fatalf("order=%v, want %v", order, want)
	}
	for i, w := range want {
		if order[i] != w {
			t.Errorf("order[%d]=%q, want %q", i, order[i], w)
		}
	}
	if !set["0,1"] || !set["0"] || !set["1"] {
		t.Errorf("set=%v, missing expected entries", set)
	}
}
