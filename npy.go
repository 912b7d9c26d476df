package tccmatrix

import (
	"fmt"

	"github.com/gonum/matrix/mat64"
	"github.com/kshedden/gonpy"
)

// WriteNPY is the supplemental dense-matrix writer (SPEC_FULL.md §4.4): it
// stages the same row-indexed counts WriteDense would emit as a
// gonum/matrix/mat64.Dense and serializes it as a NumPy .npy file, so a
// single run can feed both a kallisto/bustools-style .tsv consumer and a
// Python/scipy one without a second accumulation pass.
func (m *Matrix) WriteNPY(pathPrefix string, totalTranscripts int) error {
	entries := m.entries()
	rowOf := assignRowIndices(entries, totalTranscripts)

	nrows := totalTranscripts
	for _, row := range rowOf {
		if row+1 > nrows {
			nrows = row + 1
		}
	}

	data := make([]float64, nrows*m.nsamples)
	for _, e := range entries {
		row := rowOf[e.ec]
		for sampleIdx, c := range e.counts {
			data[row*m.nsamples+sampleIdx] = float64(c)
		}
	}

	dense := mat64.NewDense(nrows, m.nsamples, data)
	rows, cols := dense.Dims()

	w, err := gonpy.NewFileWriter(pathPrefix + ".npy")
	if err != nil {
		return fmt.Errorf("failed to create `%s.npy`: %w", pathPrefix, err)
	}
	w.Shape = []int{rows, cols}
	flat := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			flat = append(flat, dense.At(r, c))
		}
	}
	return w.WriteFloat64(flat)
}
