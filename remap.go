package tccmatrix

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

// BuildTranscriptRemap implements §4.2: it produces the translation table
// annotation_id -> external_id, where external ids are assigned by the
// order transcripts first appear across transcriptomeFiles.
//
// Step 1 of §4.2 ("re-walk the annotation files to rebuild
// annotation_id -> name") is satisfied by reusing idx.IDToName, which
// BuildAnnotationIndex already built with the identical numbering rule —
// there is no need to parse the GTF/GFF a second time to get the same
// table back.
func BuildTranscriptRemap(idx *AnnotationIndex, transcriptomeFiles []string, verbose bool) (map[int]int, error) {
	nameToExternal := make(map[string]int)
	var externalNext int

	seq.ValidateSeq = false
	for _, path := range transcriptomeFiles {
		if verbose {
			log.Infof("reading transcriptome `%s`", path)
		}
		reader, err := fastx.NewDefaultReader(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open transcriptome `%s`: %w", path, err)
		}
		for {
			rec, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("failed to parse transcriptome `%s`: %w", path, err)
			}
			name := transcriptHeaderName(string(rec.Name))
			if _, ok := nameToExternal[name]; ok {
				continue
			}
			nameToExternal[name] = externalNext
			externalNext++
		}
	}

	remap := make(map[int]int, len(idx.IDToName))
	var unfound []int
	for annotationID, name := range idx.IDToName {
		if externalID, ok := nameToExternal[name]; ok {
			remap[annotationID] = externalID
		} else {
			unfound = append(unfound, annotationID)
		}
	}
	// Names appearing only in the annotation get ids assigned after the
	// last FASTA-derived id, in increasing annotation_id order.
	for _, annotationID := range unfound {
		remap[annotationID] = externalNext
		externalNext++
	}

	if verbose && len(idx.IDToName) != len(nameToExternal) {
		log.Warningf("annotation and transcriptome transcript counts differ: %d vs %d",
			len(idx.IDToName), len(nameToExternal))
	}

	return remap, nil
}

// transcriptHeaderName is the text between the FASTA record name and the
// first '.', matching the reference tool's transcript-naming convention
// (version suffixes such as ".1" are stripped).
func transcriptHeaderName(name string) string {
	name = strings.Fields(name)[0]
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return lower(name)
}

// ReadReferenceECOrder reads a reference .ec file (the -e flag) into the
// order its rows appear and a lookup set of the same canonical EC strings,
// for TCC Matrix.WriteOrdered (§4.4).
func ReadReferenceECOrder(path string) (order []string, set map[string]bool, err error) {
	fh, err := xopen.Ropen(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open reference EC file `%s`: %w", path, err)
	}
	defer fh.Close()

	set = make(map[string]bool)
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		ec := fields[1]
		order = append(order, ec)
		set[ec] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read reference EC file `%s`: %w", path, err)
	}
	return order, set, nil
}
