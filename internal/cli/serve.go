package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/commitcanvas/internal/server"
	"github.com/matzehuels/commitcanvas/internal/watch"
	"github.com/matzehuels/commitcanvas/pkg/session"
)

const refreshTimeout = 30 * time.Second

// serveCommand creates the serve command, which runs the HTTP and
// WebSocket API until interrupted.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph API over HTTP and WebSocket",
		Long: `Serve opens repository tabs on request and streams their nodes, edges and
notifications over WebSocket. Saved layouts are kept in the configured cache
and repositories are refreshed when their refs change on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			if noWatch {
				c.cfg.Watch.Enabled = false
			}
			return c.runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config, 127.0.0.1:7420)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not refresh tabs when the repository changes")

	return cmd
}

func (c *CLI) runServe(ctx context.Context) error {
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr := session.NewManager(c.sessionConfig(c.newSource(), store))

	var watcher server.RepoWatcher
	if c.cfg.Watch.Enabled {
		w, err := watch.New(watch.Options{
			Debounce: c.cfg.Watch.Debounce.Duration,
			OnChange: watch.RefreshSessions(mgr, refreshTimeout, c.Logger),
			Logger:   c.Logger,
		})
		if err != nil {
			return err
		}
		w.Start()
		defer w.Stop()
		watcher = w
	}

	srv, err := server.New(server.Options{
		Manager: mgr,
		Watcher: watcher,
		Logger:  c.Logger,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	printInfo("Listening on %s", StyleLink.Render("http://"+c.cfg.Server.Addr))
	printDetail("Cache: %s", c.cacheLabel())
	return srv.ListenAndServe(ctx, c.cfg.Server.Addr)
}
