package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gocloud.dev/blob"

	"github.com/getsentry/hotspots/internal/analyzer"
	"github.com/getsentry/hotspots/internal/highlight"
	"github.com/getsentry/hotspots/internal/render"
	"github.com/getsentry/hotspots/internal/speedscope"
	"github.com/getsentry/hotspots/internal/storageutil"
	"github.com/getsentry/hotspots/internal/typegraph"
)

var (
	output        string
	speedscopeOut string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <trace.json> [types.json]",
	Short: "Report the hot spots of one trace",
	Long:  `Analyze one trace file, and the types file written alongside it when given, then report its hot spots`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&output, "output", "", "also store the compressed JSON report in this directory or bucket")
	analyzeCmd.Flags().StringVar(&speedscopeOut, "speedscope", "", "also write the hot path tree to this file as a speedscope profile")
}

// openFile opens the bucket holding the local file or object at p and
// returns the key of p in it.
func openFile(ctx context.Context, p string) (*blob.Bucket, string, error) {
	dir, key := filepath.Split(p)
	if dir == "" {
		dir = "."
	}
	b, err := storageutil.OpenBucket(ctx, dir)
	if err != nil {
		return nil, "", err
	}
	return b, key, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := uuid.New().String()
	logger := log.With().Str("analysis_id", id).Str("trace", args[0]).Logger()
	ctx = logger.WithContext(ctx)

	var types *typegraph.Graph
	if len(args) == 2 {
		var err error
		types, err = loadTypes(ctx, args[1])
		if errors.Is(err, storageutil.ErrObjectNotFound) {
			logger.Debug().Str("types", args[1]).Msg("types file not found, leaving types out")
		} else if err != nil {
			return err
		}
	}

	b, key, err := openFile(ctx, args[0])
	if err != nil {
		return err
	}
	defer b.Close()
	r, err := storageutil.NewReader(ctx, b, key)
	if err != nil {
		return err
	}
	defer r.Close()

	tree, report, err := analyzer.AnalyzeTraceTree(ctx, r, types, analyzerOptions())
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if err := writeReport(os.Stdout, report); err != nil {
		return err
	}
	if output != "" {
		if err := storeReport(ctx, output, id, report); err != nil {
			return err
		}
	}
	if speedscopeOut != "" {
		exporter := "hotspots"
		if release != "" {
			exporter += "@" + release
		}
		profile := speedscope.FromTree(tree, filepath.Base(args[0]), exporter)
		if err := writeProfile(ctx, speedscopeOut, profile); err != nil {
			return err
		}
	}
	if report.HasFindings() {
		return errFindings
	}
	return nil
}

func loadTypes(ctx context.Context, p string) (*typegraph.Graph, error) {
	b, key, err := openFile(ctx, p)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return analyzer.LoadTypes(ctx, b, key)
}

func writeReport(w io.Writer, report *highlight.Report) error {
	if format == "json" {
		return render.JSON(w, report)
	}
	return render.Text(w, report, useColor())
}

func writeProfile(ctx context.Context, p string, profile speedscope.Output) error {
	b, key, err := openFile(ctx, p)
	if err != nil {
		return err
	}
	defer b.Close()
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if err := b.WriteAll(ctx, key, data, nil); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	log.Ctx(ctx).Info().Str("path", p).Int("frames", len(profile.Shared.Frames)).Msg("profile written")
	return nil
}

func storeReport(ctx context.Context, location, id string, report *highlight.Report) error {
	b, err := storageutil.OpenBucket(ctx, location)
	if err != nil {
		return err
	}
	defer b.Close()
	key := id + ".report.json" + storageutil.CompressedExtension
	if err := storageutil.CompressedWrite(ctx, b, key, report); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	log.Ctx(ctx).Info().Str("location", location).Str("key", key).Msg("report stored")
	return nil
}
