package tccmatrix

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DefaultShards is the number of mutex-guarded map shards a Matrix uses when
// none is requested explicitly.
const DefaultShards = 32

type matrixRow struct {
	counts []int
}

type matrixShard struct {
	mu   sync.Mutex
	rows map[string]*matrixRow
}

// Matrix is the TCC Matrix (§4.4): a concurrent map from equivalence-class
// canonical string to a fixed-length per-sample count vector. Concurrency is
// a sharded-mutex map — a fixed number of shards, each independently locked,
// keyed by a hash of the EC string — rather than one global lock or a map
// growing one mutex per key.
type Matrix struct {
	shards   []*matrixShard
	nsamples int
}

// NewMatrix creates a Matrix sized for nsamples input samples, sharded
// across nshards independent locks.
func NewMatrix(nsamples, nshards int) *Matrix {
	if nshards <= 0 {
		nshards = DefaultShards
	}
	m := &Matrix{
		shards:   make([]*matrixShard, nshards),
		nsamples: nsamples,
	}
	for i := range m.shards {
		m.shards[i] = &matrixShard{rows: make(map[string]*matrixRow)}
	}
	return m
}

func (m *Matrix) shardFor(ec string) *matrixShard {
	h := fnv.New32a()
	h.Write([]byte(ec))
	return m.shards[int(h.Sum32())%len(m.shards)]
}

// Inc atomically fetches-or-inserts the row for ecIDs and increments its
// count for sampleIndex. Safe to call concurrently from many worker
// goroutines across many samples.
func (m *Matrix) Inc(ecIDs []int, sampleIndex int) {
	if len(ecIDs) == 0 {
		return
	}
	ec := ecString(ecIDs)
	s := m.shardFor(ec)
	s.mu.Lock()
	row, ok := s.rows[ec]
	if !ok {
		row = &matrixRow{counts: make([]int, m.nsamples)}
		s.rows[ec] = row
	}
	row.counts[sampleIndex]++
	s.mu.Unlock()
}

// ecEntry pairs a canonical EC string with its accumulated counts, used
// internally while assigning row indices and serializing.
type ecEntry struct {
	ec     string
	counts []int
}

// entries snapshots the matrix contents. Safe to call once all Inc calls
// for this run have completed; it takes no matrix-wide lock, only each
// shard's in turn, since no writer runs concurrently with serialization.
func (m *Matrix) entries() []ecEntry {
	var out []ecEntry
	for _, s := range m.shards {
		s.mu.Lock()
		for ec, row := range s.rows {
			out = append(out, ecEntry{ec: ec, counts: row.counts})
		}
		s.mu.Unlock()
	}
	return out
}

// isSingleton reports whether ec names exactly one transcript, and that id.
func isSingleton(ec string) (int, bool) {
	if strings.ContainsRune(ec, ',') {
		return 0, false
	}
	id, err := strconv.Atoi(ec)
	if err != nil {
		return 0, false
	}
	return id, true
}

// assignRowIndices implements the row-index scheme shared by WriteDense and
// WriteSparse (§4.4): singleton ECs reuse their transcript id; multi-ECs
// get ids starting at totalTranscripts, in ascending EC textual order.
func assignRowIndices(entries []ecEntry, totalTranscripts int) map[string]int {
	rowOf := make(map[string]int, len(entries))
	var multi []string
	for _, e := range entries {
		if id, ok := isSingleton(e.ec); ok {
			rowOf[e.ec] = id
			continue
		}
		multi = append(multi, e.ec)
	}
	sort.Strings(multi)
	next := totalTranscripts
	for _, ec := range multi {
		rowOf[ec] = next
		next++
	}
	return rowOf
}

func openForWrite(path string) (*os.File, *bufio.Writer, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create `%s`: %w", path, err)
	}
	return fh, bufio.NewWriter(fh), nil
}

// WriteDense implements §4.4 write_dense: prefix.ec and prefix.tsv with one
// row per EC, every sample's count present (including zero).
func (m *Matrix) WriteDense(pathPrefix string, totalTranscripts int) error {
	entries := m.entries()
	rowOf := assignRowIndices(entries, totalTranscripts)
	return m.writeECAndCounts(pathPrefix, entries, rowOf, false)
}

// WriteSparse implements §4.4 write_sparse: prefix.ec as in WriteDense,
// prefix.tsv containing only non-zero cells.
func (m *Matrix) WriteSparse(pathPrefix string, totalTranscripts int) error {
	entries := m.entries()
	rowOf := assignRowIndices(entries, totalTranscripts)
	return m.writeECAndCounts(pathPrefix, entries, rowOf, true)
}

// WriteOrdered implements §4.4 write_ordered: ECs are emitted in
// referenceOrder; any EC present in the matrix but absent from
// referenceSet is appended at the end, newly indexed from
// len(referenceOrder) upward.
func (m *Matrix) WriteOrdered(pathPrefix string, referenceOrder []string, referenceSet map[string]bool, sparse bool) error {
	entries := m.entries()
	byEC := make(map[string]ecEntry, len(entries))
	for _, e := range entries {
		byEC[e.ec] = e
	}

	rowOf := make(map[string]int, len(referenceOrder)+len(entries))
	ordered := make([]ecEntry, 0, len(referenceOrder)+len(entries))
	for i, ec := range referenceOrder {
		rowOf[ec] = i
		if e, ok := byEC[ec]; ok {
			ordered = append(ordered, e)
		} else {
			ordered = append(ordered, ecEntry{ec: ec, counts: make([]int, m.nsamples)})
		}
	}
	next := len(referenceOrder)
	var extra []string
	for _, e := range entries {
		if referenceSet[e.ec] {
			continue
		}
		extra = append(extra, e.ec)
	}
	sort.Strings(extra)
	for _, ec := range extra {
		rowOf[ec] = next
		next++
		ordered = append(ordered, byEC[ec])
	}

	return m.writeECAndCounts(pathPrefix, ordered, rowOf, sparse)
}

func (m *Matrix) writeECAndCounts(pathPrefix string, entries []ecEntry, rowOf map[string]int, sparse bool) error {
	ecFh, ecW, err := openForWrite(pathPrefix + ".ec")
	if err != nil {
		return err
	}
	defer ecFh.Close()
	tsvFh, tsvW, err := openForWrite(pathPrefix + ".tsv")
	if err != nil {
		return err
	}
	defer tsvFh.Close()

	sorted := make([]ecEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return rowOf[sorted[i].ec] < rowOf[sorted[j].ec] })

	for _, e := range sorted {
		row := rowOf[e.ec]
		fmt.Fprintf(ecW, "%d\t%s\n", row, e.ec)
		if sparse {
			for sampleIdx, c := range e.counts {
				if c != 0 {
					fmt.Fprintf(tsvW, "%d\t%d\t%d\n", row, sampleIdx, c)
				}
			}
			continue
		}
		parts := make([]string, len(e.counts))
		for i, c := range e.counts {
			parts[i] = strconv.Itoa(c)
		}
		fmt.Fprintf(tsvW, "%d\t%s\n", row, strings.Join(parts, "\t"))
	}

	if err := ecW.Flush(); err != nil {
		return err
	}
	return tsvW.Flush()
}

// WriteCells implements the .cells output (§1): one sample name per line,
// file extension stripped.
func WriteCells(pathPrefix string, sampleFiles []string) error {
	fh, w, err := openForWrite(pathPrefix + ".cells")
	if err != nil {
		return err
	}
	defer fh.Close()
	for _, f := range sampleFiles {
		fmt.Fprintln(w, RemoveExt(filepath.Base(f)))
	}
	return w.Flush()
}
