package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	lgio "github.com/matzehuels/lanegrid/pkg/io"
	"github.com/matzehuels/lanegrid/pkg/pipeline"
)

// placeCommand creates the place command.
func (c *CLI) placeCommand() *cobra.Command {
	var (
		output  string
		noCache bool
		opts    pipeline.Options
	)

	cmd := &cobra.Command{
		Use:   "place [layout]",
		Short: "Place the items of a layout document",
		Long: `Place the items of a layout document on the lane grid.

The layout is a TOML, YAML or JSON document with an optional config table and
a list of items (x, y, w, h and an optional payload). Items are placed in
order; an item that lands on earlier ones pushes them down.

The result is written as JSON (or YAML for a .yaml output path) and the final
grid is printed. Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlace(cmd.Context(), args[0], opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.placed.json)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "recompute and overwrite the cached result")
	cmd.Flags().BoolVar(&opts.Compact, "compact", false, "shrink the grid to its occupied lanes")
	cmd.Flags().IntVar(&opts.MaxDisplacements, "max-displacements", pipeline.DefaultMaxDisplacements, "displacement steps allowed per placement")

	return cmd
}

// runPlace loads the layout, places it and writes the output.
func (c *CLI) runPlace(ctx context.Context, input string, opts pipeline.Options, output string, noCache bool) error {
	res, cacheHit, err := c.place(ctx, input, opts, noCache)
	if err != nil {
		return err
	}

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".placed.json"
	}
	if err := lgio.ExportFile(res.Placement, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Placement complete")
	printFile(outputPath)
	printStats(res.Stats.Items, res.Stats.Moved, res.Placement.SizeX, res.Placement.SizeY, cacheHit)
	printNewline()
	fmt.Print(renderGrid(parseDump(res.Placement.Dump)))
	printNewline()
	printNextStep("Replay", appName+" replay "+input)

	return nil
}

// place runs the pipeline over the layout at input with the --config file
// layered on top.
func (c *CLI) place(ctx context.Context, input string, opts pipeline.Options, noCache bool) (*pipeline.Result, bool, error) {
	doc, err := lgio.ImportFile(input)
	if err != nil {
		return nil, false, fmt.Errorf("load layout %s: %w", input, err)
	}
	if opts.Config, err = c.loadConfig(); err != nil {
		return nil, false, fmt.Errorf("load config: %w", err)
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		return nil, false, fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Placing %d items...", len(doc.Items)))
	spinner.Start()

	res, cacheHit, err := runner.PlaceWithCacheInfo(ctx, doc, opts)
	if err != nil {
		spinner.StopWithError("Placement failed")
		return nil, false, fmt.Errorf("place %s: %w", input, err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	return res, cacheHit, nil
}
