package tccmatrix

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/sam"
)

// NewPipeline and Run require real BAM files to drive detectSample and
// ShardSample end-to-end; that is exercised by the core components' own
// tests (resolver_test.go, sam_reader_test.go, matrix_test.go) instead of
// being re-proven here against a synthetic BAM byte stream.

func TestUnmatchedWriterWritesHeaderExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unmatched.sam")
	u, err := newUnmatchedWriter(path)
	if err != nil {
		t.Fatalf("newUnmatchedWriter: %v", err)
	}

	h, err := sam.NewHeader(nil, nil)
	if err != nil {
		t.Fatalf("sam.NewHeader: %v", err)
	}
	u.WriteHeader(h)
	u.WriteHeader(h)
	u.WriteHeader(h)

	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	headerBytes, err := h.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	headerText := string(headerBytes)
	if strings.Count(string(contents), headerText) != 1 {
		t.Errorf("header appears %d times in output, want exactly 1", strings.Count(string(contents), headerText))
	}
}

func TestUnmatchedWriterWriteAppendsAllGroupRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unmatched.sam")
	u, err := newUnmatchedWriter(path)
	if err != nil {
		t.Fatalf("newUnmatchedWriter: %v", err)
	}

	ref, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	if err != nil {
		t.Fatalf("sam.NewReference: %v", err)
	}
	if _, err := sam.NewHeader(nil, []*sam.Reference{ref}); err != nil {
		t.Fatalf("sam.NewHeader: %v", err)
	}
	cigar, err := sam.ParseCigar([]byte("10M"))
	if err != nil {
		t.Fatalf("sam.ParseCigar: %v", err)
	}
	seq := []byte("NNNNNNNNNN")
	rec1, err := sam.NewRecord("r1", ref, nil, 0, -1, 0, 0, cigar, seq, nil, nil)
	if err != nil {
		t.Fatalf("sam.NewRecord: %v", err)
	}
	rec2, err := sam.NewRecord("r1", ref, nil, 0, -1, 0, 0, cigar, seq, nil, nil)
	if err != nil {
		t.Fatalf("sam.NewRecord: %v", err)
	}
	group := ReadGroup{First: []sam.Record{*rec1}, Last: []sam.Record{*rec2}}
	u.Write(group)

	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2 (one per mate)", len(lines))
	}
}

func TestUnmatchedWriterNilReceiverIsNoOp(t *testing.T) {
	var u *unmatchedWriter
	u.WriteHeader(nil)
	u.Write(ReadGroup{})
	if err := u.Close(); err != nil {
		t.Errorf("Close on nil *unmatchedWriter = %v, want nil", err)
	}
}

func TestNewUnmatchedWriterEmptyPathReturnsNil(t *testing.T) {
	u, err := newUnmatchedWriter("")
	if err != nil {
		t.Fatalf("newUnmatchedWriter(\"\"): %v", err)
	}
	if u != nil {
		t.Errorf("newUnmatchedWriter(\"\") = %v, want nil", u)
	}
}
