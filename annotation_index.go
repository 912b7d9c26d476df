package tccmatrix

import (
	"fmt"
	"io"

	"github.com/biogo/biogo/io/featio/gff"
	"github.com/shenwei356/xopen"
)

// AnnotationIndex is the Exon Index: for every contig seen across the input
// annotation files, a sorted ExonList, plus the transcript-name<->id tables
// built while ingesting those files.
type AnnotationIndex struct {
	Contigs map[string]*ExonList

	// NameToID and IDToName are the annotation-order transcript tables
	// (§4.1 step 2): dense ids assigned in first-seen order of
	// (seqname, transcript_id) pairs.
	NameToID map[string]int
	IDToName []string
}

// NumTranscripts is the number of distinct transcript names seen.
func (idx *AnnotationIndex) NumTranscripts() int {
	return len(idx.IDToName)
}

func newAnnotationIndex() *AnnotationIndex {
	return &AnnotationIndex{
		Contigs:  make(map[string]*ExonList),
		NameToID: make(map[string]int),
	}
}

// BuildAnnotationIndex implements §4.1 build(annotation_files,
// transcriptome_files?, verbose). annotationFiles and transcriptomeFiles are
// walked in the given order, since transcript numbering is order-dependent.
func BuildAnnotationIndex(annotationFiles, transcriptomeFiles []string, verbose bool) (*AnnotationIndex, error) {
	idx := newAnnotationIndex()

	var prevSeqname, prevTranscript string
	haveSeen := false
	nextID := 0

	for _, path := range annotationFiles {
		if verbose {
			log.Infof("reading annotation `%s`", path)
		}
		fh, err := xopen.Ropen(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open annotation `%s`: %w", path, err)
		}
		r := gff.NewReader(fh)
		for {
			f, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				fh.Close()
				return nil, fmt.Errorf("failed to parse annotation `%s`: %w", path, err)
			}
			feat, ok := f.(*gff.Feature)
			if !ok {
				continue
			}
			if lower(feat.Feature) != "exon" {
				continue
			}
			seqname := lower(feat.SeqName)
			start := feat.FeatStart
			end := feat.FeatEnd
			if seqname == "" || start == 0 {
				continue
			}
			transcriptName := lower(feat.FeatAttributes.Get("transcript_id"))
			if transcriptName == "" {
				continue
			}

			if !haveSeen || seqname != prevSeqname || transcriptName != prevTranscript {
				if _, exists := idx.NameToID[transcriptName]; !exists {
					idx.NameToID[transcriptName] = nextID
					idx.IDToName = append(idx.IDToName, transcriptName)
					nextID++
				}
				prevSeqname, prevTranscript, haveSeen = seqname, transcriptName, true
			}
			transcriptID := idx.NameToID[transcriptName]

			el, ok := idx.Contigs[seqname]
			if !ok {
				el = &ExonList{}
				idx.Contigs[seqname] = el
			}
			// GTF coordinates are 1-based inclusive; normalize to
			// 0-based half-open.
			el.Insert(start-1, end, transcriptID)
		}
		fh.Close()
	}

	for _, el := range idx.Contigs {
		el.Sort()
	}

	if len(transcriptomeFiles) > 0 {
		remap, err := BuildTranscriptRemap(idx, transcriptomeFiles, verbose)
		if err != nil {
			return nil, err
		}
		for _, el := range idx.Contigs {
			el.RemapTranscripts(remap)
		}
	}

	return idx, nil
}
