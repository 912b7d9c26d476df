package tccmatrix

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/biogo/hts/sam"
)

// unmatchedWriter serializes writes to the -u output file across worker
// goroutines. Per §5's shared-state note, the header is written exactly
// once at file creation, not once per sample (the source's flagged bug).
type unmatchedWriter struct {
	mu     sync.Mutex
	w      *bufio.Writer
	fh     *os.File
	header bool
}

func newUnmatchedWriter(path string) (*unmatchedWriter, error) {
	if path == "" {
		return nil, nil
	}
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create `%s`: %w", path, err)
	}
	return &unmatchedWriter{w: bufio.NewWriter(fh), fh: fh}, nil
}

// WriteHeader emits the SAM header block exactly once, regardless of how
// many samples are scanned in this run.
func (u *unmatchedWriter) WriteHeader(h *sam.Header) {
	if u == nil || u.header {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.header {
		return
	}
	text, _ := h.MarshalText()
	u.w.Write(text)
	u.header = true
}

// Write appends every record in group to the unmatched output, under lock.
func (u *unmatchedWriter) Write(group ReadGroup) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, rec := range group.First {
		fmt.Fprintln(u.w, rec.String())
	}
	for _, rec := range group.Last {
		fmt.Fprintln(u.w, rec.String())
	}
}

func (u *unmatchedWriter) Close() error {
	if u == nil {
		return nil
	}
	if err := u.w.Flush(); err != nil {
		u.fh.Close()
		return err
	}
	return u.fh.Close()
}

// Pipeline ties the five components together for one program run: build
// the Exon Index (optionally remapped), then scan each sample sequentially
// into a shared TCC Matrix (§2 "Data flow").
type Pipeline struct {
	Index   *AnnotationIndex
	Matrix  *Matrix
	Ctx     *RunContext
	Samples []string
}

// NewPipeline builds the Exon Index from annotationFiles (and, if given,
// transcriptomeFiles for the remap step) and allocates a Matrix sized for
// len(samples).
func NewPipeline(annotationFiles, transcriptomeFiles, samples []string, ctx *RunContext) (*Pipeline, error) {
	var index *AnnotationIndex
	var err error
	if ctx.ForceLightweight {
		index = newAnnotationIndex()
	} else {
		index, err = BuildAnnotationIndex(annotationFiles, transcriptomeFiles, ctx.Verbose)
		if err != nil {
			return nil, err
		}
	}
	return &Pipeline{
		Index:   index,
		Matrix:  NewMatrix(len(samples), DefaultShards),
		Ctx:     ctx,
		Samples: samples,
	}, nil
}

// Run scans every sample in input order, sequentially (§5: no cross-sample
// concurrency), feeding the shared Matrix.
func (p *Pipeline) Run() error {
	unmatched, err := newUnmatchedWriter(p.Ctx.UnmatchedPath)
	if err != nil {
		return err
	}
	defer unmatched.Close()

	for sampleIdx, path := range p.Samples {
		if p.Ctx.Verbose {
			log.Infof("scanning sample `%s` (%d/%d)", path, sampleIdx+1, len(p.Samples))
		}
		h, err := detectSample(path)
		if err != nil {
			return err
		}
		if p.Ctx.ForceLightweight {
			h.lightweight = true
		}
		if unmatched != nil {
			if err := writeUnmatchedHeaderOnce(path, unmatched); err != nil {
				return err
			}
		}
		if err := ShardSample(path, p.Index, h, sampleIdx, p.Matrix, p.Ctx, unmatched); err != nil {
			return fmt.Errorf("sample `%s` failed: %w", path, err)
		}
	}
	return nil
}

func writeUnmatchedHeaderOnce(path string, u *unmatchedWriter) error {
	if u.header {
		return nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open `%s`: %w", path, err)
	}
	defer fh.Close()
	br, err := newBamHeaderReader(fh)
	if err != nil {
		return err
	}
	u.WriteHeader(br)
	return nil
}
