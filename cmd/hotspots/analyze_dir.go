package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/getsentry/hotspots/internal/analyzer"
	"github.com/getsentry/hotspots/internal/metrics"
	"github.com/getsentry/hotspots/internal/render"
	"github.com/getsentry/hotspots/internal/storageutil"
)

const summaryExamples = 5

var (
	verbose bool
	summary uint
)

type dirOutput struct {
	Results []analyzer.Result        `json:"results"`
	Summary []metrics.HotSpotMetrics `json:"summary"`
}

var analyzeDirCmd = &cobra.Command{
	Use:   "analyze-dir <directory|bucket-url>",
	Short: "Report the hot spots of every project of a trace directory",
	Long:  `Analyze every project traced in a directory written by tsc --generateTrace, several at once`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyzeDir,
}

func init() {
	analyzeDirCmd.Flags().BoolVar(&verbose, "verbose", false, "keep the debug logs of every project")
	analyzeDirCmd.Flags().UintVar(&summary, "summary", 0, "also list this many hot spots summed over every project")
}

func runAnalyzeDir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := storageutil.OpenBucket(ctx, args[0])
	if err != nil {
		return err
	}
	defer b.Close()

	opts := analyzerOptions()
	opts.Verbose = verbose
	results, err := analyzer.AnalyzeDir(ctx, b, "", opts)
	if err != nil && len(results) == 0 {
		return err
	}

	var hotSpots []metrics.HotSpotMetrics
	if summary > 0 {
		hotSpots = summarize(results)
	}
	if err := writeResults(results, hotSpots); err != nil {
		return err
	}
	if err != nil {
		return err
	}

	failed, findings := 0, false
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		findings = findings || r.Report.HasFindings()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d projects failed", failed, len(results))
	}
	if findings {
		return errFindings
	}
	return nil
}

func summarize(results []analyzer.Result) []metrics.HotSpotMetrics {
	ma := metrics.NewAggregator(summary, summaryExamples)
	for _, r := range results {
		if r.Err == nil {
			ma.AddReport(r.Report, r.Project.Name)
		}
	}
	return ma.ToMetrics()
}

func writeResults(results []analyzer.Result, hotSpots []metrics.HotSpotMetrics) error {
	if format == "json" {
		if summary == 0 {
			return render.JSON(os.Stdout, results)
		}
		return render.JSON(os.Stdout, dirOutput{Results: results, Summary: hotSpots})
	}
	if err := render.Results(os.Stdout, results, useColor()); err != nil {
		return err
	}
	if summary == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(os.Stdout); err != nil {
		return err
	}
	return render.Summary(os.Stdout, hotSpots, useColor())
}
