// Package cli implements the commitcanvas command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/commitcanvas/internal/config"
	"github.com/matzehuels/commitcanvas/pkg/buildinfo"
	"github.com/matzehuels/commitcanvas/pkg/gitsource"
	"github.com/matzehuels/commitcanvas/pkg/layoutcache"
	"github.com/matzehuels/commitcanvas/pkg/observability"
	"github.com/matzehuels/commitcanvas/pkg/session"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "commitcanvas"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        config.Config
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Commitcanvas lays out git history as a draggable node-link diagram",
		Long:         `Commitcanvas renders the commit graph of a repository as a 2-D diagram whose layout survives reloads, paging in older history and manual repositioning.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/commitcanvas/config.toml)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "do not read or write saved layouts")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.diffCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file and registers debug logging hooks.
func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	hooks := newLogHooks(c.Logger)
	observability.SetSessionHooks(hooks)
	observability.SetCacheHooks(hooks)
	return nil
}

// =============================================================================
// Collaborator Factory
// =============================================================================

// openStore opens the configured layout cache, or a NullStore with
// --no-cache.
func (c *CLI) openStore(ctx context.Context) (layoutcache.Store, error) {
	if c.noCache {
		return layoutcache.NullStore{}, nil
	}
	opts, err := c.cfg.CacheOptions()
	if err != nil {
		return nil, err
	}
	return layoutcache.Open(ctx, opts)
}

// sessionConfig wires git, the store and the configured options into a
// session configuration. Repo, Surface and Notifier are left to the caller.
func (c *CLI) sessionConfig(src *gitsource.Source, store layoutcache.Store) session.Config {
	layoutOpts := c.cfg.LayoutOptions()
	layoutOpts.Logger = c.Logger
	return session.Config{
		Fetcher:        src,
		Status:         src,
		Differ:         src,
		Refs:           src,
		Store:          store,
		Layout:         layoutOpts,
		PageSize:       c.cfg.Pagination.PageSize,
		SubtreeDefault: c.cfg.Drag.SubtreeDefault,
		WriteDelay:     c.cfg.Drag.WriteDelay.Duration,
		Logger:         c.Logger,
	}
}

func (c *CLI) newSource() *gitsource.Source {
	return gitsource.New(gitsource.Options{Logger: c.Logger})
}
