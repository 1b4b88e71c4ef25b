package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/lanegrid/pkg/config"
	lgio "github.com/matzehuels/lanegrid/pkg/io"
)

// Output formats of the config command.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config [layout]",
		Short: "Print the resolved configuration",
		Long: `Print the configuration a placement would use.

Values are layered: built-in defaults, then the config table of the layout (if
given), then the --config file. The result is validated before printing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var layout string
			if len(args) == 1 {
				layout = args[0]
			}
			cfg, err := c.resolveConfig(layout)
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), cfg, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, yaml, toml")

	return cmd
}

// resolveConfig layers the layout's config and the --config file over the
// defaults.
func (c *CLI) resolveConfig(layout string) (config.Config, error) {
	defaults := config.Default()
	if layout != "" {
		doc, err := lgio.ImportFile(layout)
		if err != nil {
			return config.Config{}, fmt.Errorf("load layout %s: %w", layout, err)
		}
		defaults = config.Resolve(doc.Config, defaults)
	}

	partial, err := c.loadConfig()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg := config.Resolve(partial, defaults)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func writeConfig(w io.Writer, cfg config.Config, format string) error {
	switch format {
	case formatText:
		fprintKeyValue(w, "gravity", cfg.Gravity+StyleDim.Render(" ("+strings.Join(cfg.Directions(), ", then ")+")"))
		fprintKeyValue(w, "x lanes", lanesString(cfg.XLanes))
		fprintKeyValue(w, "y lanes", lanesString(cfg.YLanes))
		fprintKeyValue(w, "namespace", strings.Join(cfg.Namespace, ", "))
		return nil
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case formatTOML:
		return toml.NewEncoder(w).Encode(cfg)
	default:
		return fmt.Errorf("unknown format %q (want text, json, yaml or toml)", format)
	}
}

func lanesString(l config.Lanes) string {
	return strconv.Itoa(l.Min) + ".." + strconv.Itoa(l.Max)
}
