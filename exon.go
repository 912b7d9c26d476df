package tccmatrix

import "sort"

// Exon is a half-open interval [Start, End) on some contig, carrying the set
// of transcript ids that contain it. Two exons on the same contig with
// identical (Start, End) are always merged into one — see ExonList.Insert.
type Exon struct {
	Start, End  int
	Transcripts map[int]struct{}
}

// AddTranscript records that transcript id belongs to this exon.
func (e *Exon) AddTranscript(id int) {
	if e.Transcripts == nil {
		e.Transcripts = make(map[int]struct{})
	}
	e.Transcripts[id] = struct{}{}
}

// TranscriptIDs returns the exon's transcript set as a sorted slice.
func (e *Exon) TranscriptIDs() []int {
	out := make([]int, 0, len(e.Transcripts))
	for id := range e.Transcripts {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// ExonList is the ordered, duplicate-free set of exons belonging to one
// contig. It is built unsorted during ingest (Insert does a linear probe for
// an existing (start,end) pair) and finalized once with Sort.
type ExonList struct {
	exons []Exon
}

// Insert adds transcriptID to the exon spanning [start, end), creating the
// exon if no existing entry has that exact span. Pre-Sort, this is O(n) per
// call; annotation files are small enough per contig that this is not a
// bottleneck.
func (l *ExonList) Insert(start, end, transcriptID int) {
	for i := range l.exons {
		if l.exons[i].Start == start && l.exons[i].End == end {
			l.exons[i].AddTranscript(transcriptID)
			return
		}
	}
	e := Exon{Start: start, End: end}
	e.AddTranscript(transcriptID)
	l.exons = append(l.exons, e)
}

// Sort orders the exon list by Start ascending, ties broken by End
// ascending, and merges any adjacent duplicate spans. Insert already merges
// every exact duplicate span, so this merge pass only re-checks the
// duplicate-free invariant after sorting.
func (l *ExonList) Sort() {
	sort.Slice(l.exons, func(i, j int) bool {
		if l.exons[i].Start != l.exons[j].Start {
			return l.exons[i].Start < l.exons[j].Start
		}
		return l.exons[i].End < l.exons[j].End
	})
	merged := l.exons[:0]
	for _, e := range l.exons {
		if n := len(merged); n > 0 && merged[n-1].Start == e.Start && merged[n-1].End == e.End {
			for id := range e.Transcripts {
				merged[n-1].AddTranscript(id)
			}
			continue
		}
		merged = append(merged, e)
	}
	l.exons = merged
}

// Len returns the number of distinct exons in the list.
func (l *ExonList) Len() int {
	return len(l.exons)
}

// ContainmentTranscripts returns the union of transcript ids of every exon
// in the list that contains [start, end) (s >= S && e <= E). The list must
// already be sorted.
func (l *ExonList) ContainmentTranscripts(start, end int) map[int]struct{} {
	out := make(map[int]struct{})
	// First exon whose Start exceeds start; only exons before it can
	// satisfy Start <= start.
	i := sort.Search(len(l.exons), func(i int) bool { return l.exons[i].Start > start })
	for j := 0; j < i; j++ {
		e := l.exons[j]
		if e.Start <= start && end <= e.End {
			for id := range e.Transcripts {
				out[id] = struct{}{}
			}
		}
	}
	return out
}

// RemapTranscripts rewrites every transcript id stored in every exon through
// remap, dropping ids that have no entry (should not happen for a correctly
// built injective remap, but guards against a partial one).
func (l *ExonList) RemapTranscripts(remap map[int]int) {
	for i := range l.exons {
		old := l.exons[i].Transcripts
		l.exons[i].Transcripts = make(map[int]struct{}, len(old))
		for id := range old {
			if newID, ok := remap[id]; ok {
				l.exons[i].Transcripts[newID] = struct{}{}
			}
		}
	}
}
