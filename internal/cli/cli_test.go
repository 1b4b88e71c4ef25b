package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/lanegrid/pkg/config"
	"github.com/matzehuels/lanegrid/pkg/errors"
	lgio "github.com/matzehuels/lanegrid/pkg/io"
)

const testLayout = `config:
  x_lanes:
    min: 4
items:
  - {x: 0, y: 0, w: 2, h: 2}
  - {x: 0, y: 0, w: 1, h: 1}
`

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommandSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{"place", "config", "replay", "serve", "cache", "completion"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing persistent --config flag")
	}
}

func TestPlaceCommand(t *testing.T) {
	input := writeFile(t, "board.yaml", testLayout)
	output := filepath.Join(filepath.Dir(input), "out.json")

	if _, err := execute(t, "place", input, "-o", output); err != nil {
		t.Fatalf("place error: %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	p, err := lgio.ReadPlacementJSON(f)
	if err != nil {
		t.Fatal(err)
	}
	if want := "1 - - - \n0 0 - - \n0 0 - - \n"; p.Dump != want {
		t.Errorf("dump = %q, want %q", p.Dump, want)
	}
	if p.SizeX != 4 {
		t.Errorf("size_x = %d, want 4 from the layout config", p.SizeX)
	}
}

func TestPlaceCommandDefaultOutput(t *testing.T) {
	input := writeFile(t, "board.yaml", testLayout)
	cfg := writeFile(t, "override.toml", "gravity = \"se\"\n")

	if _, err := execute(t, "place", input, "--config", cfg, "--compact"); err != nil {
		t.Fatalf("place error: %v", err)
	}

	data, err := os.ReadFile(strings.TrimSuffix(input, ".yaml") + ".placed.json")
	if err != nil {
		t.Fatalf("default output missing: %v", err)
	}
	var p lgio.Placement
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Config.Gravity != "se" {
		t.Errorf("gravity = %q, want se from --config", p.Config.Gravity)
	}
}

func TestPlaceCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
		code errors.Code
	}{
		{
			name: "missing layout",
			args: func(t *testing.T) []string { return []string{"place", filepath.Join(t.TempDir(), "none.yaml")} },
			code: errors.ErrCodeInvalidPath,
		},
		{
			name: "unsupported extension",
			args: func(t *testing.T) []string { return []string{"place", writeFile(t, "board.txt", "")} },
			code: errors.ErrCodeInvalidFormat,
		},
		{
			name: "invalid item",
			args: func(t *testing.T) []string {
				return []string{"place", writeFile(t, "board.json", `{"items":[{"w":-1,"h":1}]}`)}
			},
			code: errors.ErrCodeInvalidItem,
		},
		{
			name: "invalid config file",
			args: func(t *testing.T) []string {
				cfg := writeFile(t, "bad.yaml", "x_lanes:\n  min: 12\n")
				return []string{"place", writeFile(t, "board.yaml", testLayout), "--config", cfg}
			},
			code: errors.ErrCodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args(t)...)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestConfigCommand(t *testing.T) {
	layout := writeFile(t, "board.yaml", testLayout)
	override := writeFile(t, "override.json", `{"y_lanes": {"max": 20}, "namespace": ["ops"]}`)

	out, err := execute(t, "config", layout, "--config", override, "-f", "json")
	if err != nil {
		t.Fatalf("config error: %v", err)
	}
	var got config.Config
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := config.Config{
		Gravity:   "nw",
		XLanes:    config.Lanes{Min: 4, Max: 9},
		YLanes:    config.Lanes{Min: 3, Max: 20},
		Namespace: []string{"ops"},
	}
	if got.Gravity != want.Gravity || got.XLanes != want.XLanes || got.YLanes != want.YLanes ||
		len(got.Namespace) != 1 || got.Namespace[0] != "ops" {
		t.Errorf("config = %+v, want %+v", got, want)
	}
}

func TestConfigCommandFormats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"text", "x lanes"},
		{"yaml", "x_lanes:"},
		{"toml", "[x_lanes]"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := execute(t, "config", "-f", tt.format)
			if err != nil {
				t.Fatalf("config -f %s error: %v", tt.format, err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q should contain %q", out, tt.want)
			}
		})
	}

	if _, err := execute(t, "config", "-f", "xml"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestCacheCommands(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	c := New(io.Discard, LogInfo)

	var out bytes.Buffer
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"cache", "path"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	dir, _ := cacheDir()
	if got := strings.TrimSpace(out.String()); got != dir {
		t.Errorf("cache path = %q, want %q", got, dir)
	}

	input := writeFile(t, "board.yaml", testLayout)
	root = c.RootCommand()
	root.SetArgs([]string{"place", input})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if countEntries(dir) != 1 {
		t.Fatalf("cache entries = %d, want 1", countEntries(dir))
	}

	root = c.RootCommand()
	root.SetArgs([]string{"cache", "clear"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if n := countEntries(dir); n != 0 {
		t.Errorf("cache entries after clear = %d, want 0", n)
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range completionShells {
		out, err := execute(t, "completion", shell)
		if err != nil {
			t.Fatalf("completion %s error: %v", shell, err)
		}
		if !strings.Contains(out, appName) {
			t.Errorf("completion %s output does not mention %s", shell, appName)
		}
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("unsupported shell should fail")
	}
}
