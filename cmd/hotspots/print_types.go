package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/getsentry/hotspots/internal/render"
	"github.com/getsentry/hotspots/internal/typegraph"
)

var printTypesCmd = &cobra.Command{
	Use:   "print-types <types.json> <id>",
	Short: "Print the simplified type tree of one type",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrintTypes,
}

func runPrintTypes(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid type id %q: %w", args[1], err)
	}
	types, err := loadTypes(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	tree := types.Tree(id, cfg.ExpandTypes)
	if tree.Type.Kind == typegraph.KindMissing {
		return fmt.Errorf("type %d not found in %s, it holds %d types", id, args[0], types.Len())
	}
	return render.JSON(os.Stdout, tree)
}
