package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/getsentry/hotspots/internal/highlight"
	"github.com/getsentry/hotspots/internal/storageutil"
)

var renderCmd = &cobra.Command{
	Use:   "render <report.json.lz4>",
	Short: "Render a report stored by analyze --output",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, key, err := openFile(ctx, args[0])
	if err != nil {
		return err
	}
	defer b.Close()
	var report highlight.Report
	if err := storageutil.UnmarshalCompressed(ctx, b, key, &report); err != nil {
		return err
	}
	if err := writeReport(os.Stdout, &report); err != nil {
		return err
	}
	if report.HasFindings() {
		return errFindings
	}
	return nil
}
