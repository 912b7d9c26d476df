package tccmatrix

import (
	"sort"

	"github.com/biogo/hts/sam"
)

// Interval is a half-open [Start, End) span on a contig, one sub-interval of
// an alignment's exon structure (§4.3 step 1).
type Interval struct {
	Start, End int
}

// CigarToExons walks an alignment's CIGAR starting at pos, producing the
// ordered list of alignment sub-intervals: M/=/X/D extend the current
// interval, N closes it and opens a new one past the gap, everything else
// is ignored for coordinates.
func CigarToExons(pos int, cigar sam.Cigar) []Interval {
	var out []Interval
	start := pos
	cur := pos
	open := false
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion:
			cur += co.Len()
			open = true
		case sam.CigarSkipped:
			if open {
				out = append(out, Interval{Start: start, End: cur})
			}
			cur += co.Len()
			start = cur
			open = false
		default:
			// Insertion, soft/hard clip, padding: no reference
			// coordinate effect.
		}
	}
	if open {
		out = append(out, Interval{Start: start, End: cur})
	}
	return out
}

// AlignmentEC computes the per-alignment equivalence class (§4.3 steps
// 1-4). In lightweight mode it returns the singleton {refID} without
// touching index at all.
func AlignmentEC(index *AnnotationIndex, contig string, refID int, pos int, cigar sam.Cigar, lightweight bool) []int {
	if lightweight {
		return []int{refID}
	}

	el, ok := index.Contigs[lower(contig)]
	if !ok {
		return nil
	}

	intervals := CigarToExons(pos, cigar)
	if len(intervals) == 0 {
		return nil
	}

	var ec map[int]struct{}
	for i, iv := range intervals {
		set := el.ContainmentTranscripts(iv.Start, iv.End)
		if len(set) == 0 {
			return nil
		}
		if i == 0 {
			ec = set
			continue
		}
		ec = intersectSets(ec, set)
		if len(ec) == 0 {
			return nil
		}
	}
	return sortedKeys(ec)
}

// ReadGroup is the set of alignment records sharing one logical read
// identity, already partitioned into first- and last-segment buckets
// (§3 "Read group").
type ReadGroup struct {
	First []sam.Record
	Last  []sam.Record
}

// ReadEC computes the per-read equivalence class (§4.3 "Per-read EC").
func ReadEC(group ReadGroup, index *AnnotationIndex, lightweight, paired bool) []int {
	efirst := segmentEC(group.First, index, lightweight)
	elast := segmentEC(group.Last, index, lightweight)

	var ec map[int]struct{}
	if paired {
		if len(efirst) == 0 || len(elast) == 0 {
			return nil
		}
		ec = intersectSets(efirst, elast)
	} else {
		ec = unionSets(efirst, elast)
	}
	if len(ec) == 0 {
		return nil
	}
	return sortedKeys(ec)
}

func segmentEC(recs []sam.Record, index *AnnotationIndex, lightweight bool) map[int]struct{} {
	out := make(map[int]struct{})
	for _, rec := range recs {
		if rec.Flags&sam.Unmapped != 0 {
			continue
		}
		contig := ""
		refID := -1
		if rec.Ref != nil {
			contig = rec.Ref.Name()
			refID = rec.Ref.ID()
		}
		ec := AlignmentEC(index, contig, refID, rec.Pos, rec.Cigar, lightweight)
		for _, id := range ec {
			out[id] = struct{}{}
		}
	}
	return out
}

func intersectSets(a, b map[int]struct{}) map[int]struct{} {
	out := make(map[int]struct{})
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func unionSets(a, b map[int]struct{}) map[int]struct{} {
	out := make(map[int]struct{}, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
