package tccmatrix

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"golang.org/x/sync/errgroup"
)

// newBamHeaderReader opens just enough of fh to read its SAM header.
func newBamHeaderReader(fh *os.File) (*sam.Header, error) {
	br, err := bam.NewReader(fh, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	return br.Header(), nil
}

// sampleHeader is filled in by detectSample before any worker opens the
// file, so every worker shares one immutable view of pairing convention and
// aligner mode (§4.5 steps 1-3).
type sampleHeader struct {
	allSameQName bool
	lightweight  bool
	nrecords     int
}

// detectSample implements §4.5 steps 1-3: scan until the pairing convention
// is known, inspect the @PG ID: tag, and count total records.
func detectSample(path string) (*sampleHeader, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open `%s`: %w", path, err)
	}
	defer fh.Close()

	br, err := bam.NewReader(fh, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header of `%s`: %w", path, err)
	}

	h := &sampleHeader{allSameQName: true}
	for _, pg := range br.Header().Progs() {
		id := pg.Get(sam.Tag{'I', 'D'})
		if strings.Contains(strings.ToLower(id), "rapmap") {
			h.lightweight = true
		}
	}

	sawDotOne, sawDotTwo := false, false
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read `%s`: %w", path, err)
		}
		h.nrecords++
		qname := rec.Name
		if strings.HasSuffix(qname, ".1") || strings.HasSuffix(qname, "/1") {
			sawDotOne = true
		}
		if strings.HasSuffix(qname, ".2") || strings.HasSuffix(qname, "/2") {
			sawDotTwo = true
		}
	}
	h.allSameQName = !(sawDotOne || sawDotTwo)
	return h, nil
}

// stripMateSuffix removes a trailing ".1"/".2"/"/1"/"/2" mate-pair suffix.
func stripMateSuffix(qname string) string {
	if len(qname) < 2 {
		return qname
	}
	suffix := qname[len(qname)-2:]
	switch suffix {
	case ".1", ".2", "/1", "/2":
		return qname[:len(qname)-2]
	}
	return qname
}

// effectiveQName returns the read-group key for a record, stripping the
// mate suffix unless the file uses the all-same-QName convention.
func effectiveQName(qname string, allSame bool) string {
	if allSame {
		return qname
	}
	return stripMateSuffix(qname)
}

// workerRange implements the REDESIGN FLAG fix: closed-open ranges
// [floor(N*k/T), floor(N*(k+1)/T)) for every worker including the last,
// instead of the off-by-one `lines+1` upper bound the source uses.
func workerRange(n, nthreads, k int) (start, end int) {
	start = n * k / nthreads
	end = n * (k + 1) / nthreads
	return start, end
}

// ShardSample implements §4.5 step 5: partitions one sample's alignments
// across nthreads workers, applies the boundary rule so every read group is
// owned by exactly one worker, resolves each group's EC, and increments
// matrix at sampleIndex. unmatched, if non-nil, receives the records of
// every read group that produced an empty EC; records dropped by the
// per-record filters (unmapped, or mate on a different reference) are not
// part of the group and are not written.
func ShardSample(path string, index *AnnotationIndex, h *sampleHeader, sampleIndex int, matrix *Matrix, ctx *RunContext, unmatched *unmatchedWriter) error {
	nthreads := ctx.Threads
	if nthreads <= 0 {
		nthreads = DefaultThreads
	}
	if nthreads > h.nrecords {
		nthreads = h.nrecords
	}
	if nthreads == 0 {
		return nil
	}

	g := new(errgroup.Group)
	for k := 0; k < nthreads; k++ {
		k := k
		start, end := workerRange(h.nrecords, nthreads, k)
		g.Go(func() error {
			return scanWorker(path, index, h, sampleIndex, matrix, ctx, unmatched, start, end)
		})
	}
	return g.Wait()
}

// scanWorker opens its own handle, skips to start, applies the boundary
// rule, groups consecutive records by effective QNAME, and resolves each
// completed group.
func scanWorker(path string, index *AnnotationIndex, h *sampleHeader, sampleIndex int, matrix *Matrix, ctx *RunContext, unmatched *unmatchedWriter, start, end int) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open `%s`: %w", path, err)
	}
	defer fh.Close()

	br, err := bam.NewReader(fh, 0)
	if err != nil {
		return fmt.Errorf("failed to parse header of `%s`: %w", path, err)
	}

	// Boundary rule: peek the QName of the record immediately preceding
	// this worker's range (index start-1, the last record of the
	// previous worker's nominal range), not merely the first record we
	// read. Only a record at start that actually shares that QName is a
	// continuation of the previous worker's group; a fresh group that
	// happens to start exactly at our boundary must not be discarded.
	idx := 0
	var skipQName string
	haveSkipQName := false
	for idx < start {
		rec, err := br.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if idx == start-1 {
			skipQName = effectiveQName(rec.Name, h.allSameQName)
			haveSkipQName = true
		}
		idx++
	}
	skipping := haveSkipQName

	var group ReadGroup
	var groupName string
	groupOpen := false

	flushGroup := func() {
		if !groupOpen {
			return
		}
		ec := ReadEC(group, index, h.lightweight, ctx.Paired)
		if len(ec) > 0 {
			matrix.Inc(ec, sampleIndex)
		} else if unmatched != nil {
			unmatched.Write(group)
		}
		group = ReadGroup{}
		groupOpen = false
	}

	for {
		rec, err := br.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		idx++

		qname := effectiveQName(rec.Name, h.allSameQName)

		if skipping {
			if qname == skipQName {
				continue
			}
			skipping = false
		}

		// Past our nominal range: only keep reading while the record
		// continues a group we already opened before end — that
		// group straddles into the next worker's range, and the next
		// worker's own peek-based skip rule will discard it there.
		// Any other QName here belongs entirely to the next worker;
		// stop without consuming it further.
		if idx > end && (!groupOpen || qname != groupName) {
			break
		}

		if qname != groupName {
			flushGroup()
			groupName = qname
			groupOpen = true
		}

		if rec.Flags&sam.Unmapped != 0 {
			continue
		}
		if !ctx.ForceLightweight && !h.lightweight {
			if rec.Flags&sam.Paired != 0 && rec.Flags&sam.MateUnmapped == 0 {
				if rec.MateRef != nil && rec.Ref != nil && rec.MateRef.Name() != rec.Ref.Name() {
					continue
				}
			}
		}

		if rec.Flags&sam.Read2 != 0 {
			group.Last = append(group.Last, *rec)
		} else {
			group.First = append(group.First, *rec)
		}
	}
	flushGroup()
	return nil
}
