package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lanegrid/pkg/pipeline"
)

// replayCommand creates the replay command.
func (c *CLI) replayCommand() *cobra.Command {
	var (
		noCache  bool
		play     bool
		interval time.Duration
		opts     pipeline.Options
	)

	cmd := &cobra.Command{
		Use:   "replay [layout]",
		Short: "Step through a placement one item at a time",
		Long: `Step through a placement one item at a time.

Each frame shows the grid right after one item was placed, together with the
position the item was given. Use the arrow keys to step and space to play.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReplay(cmd.Context(), args[0], opts, noCache, play, interval)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&play, "play", false, "start playing immediately")
	cmd.Flags().DurationVar(&interval, "interval", defaultReplayInterval, "delay between frames while playing")
	cmd.Flags().IntVar(&opts.MaxDisplacements, "max-displacements", pipeline.DefaultMaxDisplacements, "displacement steps allowed per placement")

	return cmd
}

func (c *CLI) runReplay(ctx context.Context, input string, opts pipeline.Options, noCache, play bool, interval time.Duration) error {
	prog := newProgress(c.Logger)
	res, _, err := c.place(ctx, input, opts, noCache)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Placed %d items", res.Stats.Items))

	m := NewReplayModel(res.Frames)
	m.Playing = play
	if interval > 0 {
		m.Interval = interval
	}
	if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	return nil
}
