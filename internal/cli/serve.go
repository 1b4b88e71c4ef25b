package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lanegrid/internal/metrics"
	"github.com/matzehuels/lanegrid/internal/server"
	"github.com/matzehuels/lanegrid/pkg/cache"
	"github.com/matzehuels/lanegrid/pkg/config"
	lgio "github.com/matzehuels/lanegrid/pkg/io"
	"github.com/matzehuels/lanegrid/pkg/pipeline"
)

const redisPingTimeout = 3 * time.Second

// serveOpts holds the flags of the serve command.
type serveOpts struct {
	addr             string // listen address
	layout           string // optional layout document seeding the grid
	redisAddr        string // Redis address for the placement cache
	redisPassword    string
	redisDB          int
	noCache          bool
	compactOnReload  bool
	maxDisplacements int
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live grid over HTTP",
		Long: `Serve a live grid over HTTP.

The grid starts empty, or with the items of --layout, and is changed through
the /v1 API. Placement events stream from /v1/events and Prometheus metrics
are exposed on /metrics. POST /v1/place places a whole document without
touching the live grid; its results are cached in Redis when --redis is set
and in the local cache directory otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.layout, "layout", "", "layout document to seed the grid with")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address for the placement cache (host:port)")
	cmd.Flags().StringVar(&opts.redisPassword, "redis-password", "", "Redis password")
	cmd.Flags().IntVar(&opts.redisDB, "redis-db", 0, "Redis database")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.compactOnReload, "compact-on-reload", false, "compact the grid after every reload")
	cmd.Flags().IntVar(&opts.maxDisplacements, "max-displacements", pipeline.DefaultMaxDisplacements, "displacement steps allowed per placement")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	srvOpts, err := c.serverOptions(ctx, opts)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.New(reg).Install()
	srvOpts.Gatherer = reg

	srv, err := server.New(srvOpts)
	if err != nil {
		srvOpts.Cache.Close()
		return fmt.Errorf("build grid: %w", err)
	}

	printSuccess("Serving grid on %s", opts.addr)
	printDetail("%d items, metrics on /metrics, events on /v1/events", len(srvOpts.Items))

	if err := srv.Run(ctx, opts.addr); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serverOptions resolves the seed layout, configuration and cache.
func (c *CLI) serverOptions(ctx context.Context, opts serveOpts) (server.Options, error) {
	defaults := config.Default()
	var items []any
	if opts.layout != "" {
		doc, err := lgio.ImportFile(opts.layout)
		if err != nil {
			return server.Options{}, fmt.Errorf("load layout %s: %w", opts.layout, err)
		}
		defaults = config.Resolve(doc.Config, defaults)
		items = doc.Raw()
	}

	partial, err := c.loadConfig()
	if err != nil {
		return server.Options{}, fmt.Errorf("load config: %w", err)
	}
	store, err := c.serverCache(ctx, opts)
	if err != nil {
		return server.Options{}, err
	}

	return server.Options{
		Items:            items,
		Config:           partial,
		Defaults:         &defaults,
		MaxDisplacements: opts.maxDisplacements,
		CompactOnReload:  opts.compactOnReload,
		Cache:            store,
		Logger:           c.Logger,
	}, nil
}

// serverCache prefers Redis when configured and reachable.
func (c *CLI) serverCache(ctx context.Context, opts serveOpts) (cache.Cache, error) {
	if opts.noCache {
		return cache.NewNullCache(), nil
	}
	if opts.redisAddr == "" {
		return newCache(false)
	}

	rc := cache.NewRedisCache(opts.redisAddr, opts.redisPassword, opts.redisDB)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		rc.Close()
		printWarning("Redis at %s unreachable, using the local cache", opts.redisAddr)
		c.Logger.Warn("redis ping failed", "addr", opts.redisAddr, "error", err)
		return newCache(false)
	}
	c.Logger.Info("using redis cache", "addr", opts.redisAddr, "db", opts.redisDB)
	return rc, nil
}
