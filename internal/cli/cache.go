package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/layoutcache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage saved layouts",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [repo]",
		Short: "Forget the saved layout of one repository, or of all of them",
		Long: `Clear deletes saved node positions. With a repository argument only that
repository's layout is removed. Without one every layout is removed, which is
supported by the file and bolt backends.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return c.clearRepo(cmd, args[0])
			}
			return c.clearAll(cmd)
		},
	}
}

func (c *CLI) clearRepo(cmd *cobra.Command, repo string) error {
	abs, err := filepath.Abs(repo)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", repo)
	}
	store, err := c.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), abs); err != nil {
		return err
	}
	printSuccess("Cleared layout of %s", StyleHighlight.Render(abs))
	return nil
}

func (c *CLI) clearAll(cmd *cobra.Command) error {
	opts, err := c.cfg.CacheOptions()
	if err != nil {
		return err
	}

	switch opts.Backend {
	case layoutcache.BackendFile, "":
		if _, err := os.Stat(opts.Dir); os.IsNotExist(err) {
			printInfo("Cache is empty")
			return nil
		}
		fs, err := layoutcache.NewFileStore(opts.Dir)
		if err != nil {
			return err
		}
		if err := fs.Clear(); err != nil {
			return fmt.Errorf("clear %s: %w", opts.Dir, err)
		}
		printSuccess("Cleared all saved layouts")
		printDetail("Directory: %s", opts.Dir)
		return nil

	case layoutcache.BackendBolt:
		path := boltPath(opts)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			printInfo("Cache is empty")
			return nil
		}
		db, err := layoutcache.OpenBolt(path)
		if err != nil {
			return err
		}
		defer db.Close()
		repos, err := db.Repos()
		if err != nil {
			return err
		}
		for _, repo := range repos {
			if err := db.Delete(cmd.Context(), repo); err != nil {
				return err
			}
		}
		printSuccess("Cleared %d saved layouts", len(repos))
		printDetail("Database: %s", path)
		return nil
	}

	return errors.New(errors.ErrCodeInvalidInput,
		"the %s backend can only clear one repository at a time; pass a repository path", opts.Backend)
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where layouts are saved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), c.cacheLabel())
			return nil
		},
	}
}

// cacheLabel describes the configured cache location: a directory, a
// database file or a server address.
func (c *CLI) cacheLabel() string {
	if c.noCache {
		return layoutcache.BackendNone
	}
	opts, err := c.cfg.CacheOptions()
	if err != nil {
		return c.cfg.Cache.Backend
	}
	switch opts.Backend {
	case layoutcache.BackendFile, "":
		return opts.Dir
	case layoutcache.BackendBolt:
		return boltPath(opts)
	case layoutcache.BackendRedis:
		return "redis://" + opts.Redis.Addr
	case layoutcache.BackendMongo:
		return opts.Mongo.URI
	}
	return opts.Backend
}

func boltPath(opts layoutcache.Config) string {
	if opts.BoltPath != "" {
		return opts.BoltPath
	}
	return filepath.Join(opts.Dir, "layouts.db")
}
