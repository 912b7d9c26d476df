package tccmatrix

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "tccmatrix",
	Short:   "Build a transcript-compatibility-count matrix from BAM and GTF/GFF",
	Version: Version,
}

var runFlags struct {
	annotations    string
	samples        string
	outPrefix      string
	transcriptomes string
	referenceEC    string
	unmatchedPath  string
	threads        int
	singleEnd      bool
	lightweight    bool
	fullMatrix     bool
	writeNPY       bool
	quiet          bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the TCC matrix for one or more samples",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.annotations, "annotations", "g", "", "comma-separated GTF/GFF annotation files")
	runCmd.Flags().StringVarP(&runFlags.samples, "samples", "S", "", "comma-separated BAM files (required; text SAM is not read)")
	runCmd.Flags().StringVarP(&runFlags.outPrefix, "out", "o", DefaultOutPrefix, "output prefix")
	runCmd.Flags().StringVarP(&runFlags.transcriptomes, "transcriptomes", "t", "", "comma-separated FASTA transcriptomes for index remap")
	runCmd.Flags().StringVarP(&runFlags.referenceEC, "reference-ec", "e", "", "reference .ec file to match output ordering")
	runCmd.Flags().StringVarP(&runFlags.unmatchedPath, "unmatched", "u", "", "emit unmatched reads here")
	runCmd.Flags().IntVarP(&runFlags.threads, "threads", "p", DefaultThreads, "thread cap per sample")
	runCmd.Flags().BoolVarP(&runFlags.singleEnd, "single-end", "U", false, "single-end reads")
	runCmd.Flags().BoolVarP(&runFlags.lightweight, "lightweight", "r", false, "force lightweight (transcript-as-reference) mode")
	runCmd.Flags().BoolVar(&runFlags.fullMatrix, "full-matrix", false, "dense output; default is sparse")
	runCmd.Flags().BoolVar(&runFlags.writeNPY, "npy", false, "also emit a dense .npy sibling (requires --full-matrix)")
	runCmd.Flags().BoolVarP(&runFlags.quiet, "quiet", "q", false, "suppress non-error progress output")
	must(runCmd.MarkFlagRequired("samples"))
	rootCmd.AddCommand(runCmd)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	samples := parseCSVList(runFlags.samples)
	if len(samples) == 0 {
		return fmt.Errorf("-S/--samples is required")
	}
	annotations := parseCSVList(runFlags.annotations)
	if len(annotations) == 0 && !runFlags.lightweight {
		return fmt.Errorf("-g/--annotations is required unless -r/--lightweight is set")
	}
	transcriptomes := parseCSVList(runFlags.transcriptomes)

	if runFlags.writeNPY && !runFlags.fullMatrix {
		return fmt.Errorf("--npy requires --full-matrix")
	}

	ctx := &RunContext{
		Verbose:          !runFlags.quiet,
		UnmatchedPath:    runFlags.unmatchedPath,
		Threads:          runFlags.threads,
		Paired:           !runFlags.singleEnd,
		ForceLightweight: runFlags.lightweight,
		FullMatrix:       runFlags.fullMatrix,
		WriteNPY:         runFlags.writeNPY,
	}

	for _, s := range samples {
		mustExist(s)
	}
	for _, a := range annotations {
		mustExist(a)
	}
	for _, t := range transcriptomes {
		mustExist(t)
	}

	p, err := NewPipeline(annotations, transcriptomes, samples, ctx)
	if err != nil {
		return err
	}
	if err := p.Run(); err != nil {
		return err
	}

	return writeOutputs(p, samples)
}

func writeOutputs(p *Pipeline, samples []string) error {
	totalTranscripts := p.Index.NumTranscripts()

	if runFlags.referenceEC != "" {
		order, set, err := ReadReferenceECOrder(runFlags.referenceEC)
		if err != nil {
			return err
		}
		if err := p.Matrix.WriteOrdered(runFlags.outPrefix, order, set, !runFlags.fullMatrix); err != nil {
			return err
		}
	} else if runFlags.fullMatrix {
		if err := p.Matrix.WriteDense(runFlags.outPrefix, totalTranscripts); err != nil {
			return err
		}
	} else {
		if err := p.Matrix.WriteSparse(runFlags.outPrefix, totalTranscripts); err != nil {
			return err
		}
	}

	if runFlags.writeNPY {
		if err := p.Matrix.WriteNPY(runFlags.outPrefix, totalTranscripts); err != nil {
			return err
		}
	}

	return WriteCells(runFlags.outPrefix, samples)
}

// Execute runs the root command; cmd/tccmatrix/main.go's sole entrypoint.
func Execute() error {
	return rootCmd.Execute()
}
