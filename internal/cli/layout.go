package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/gitsource"
	"github.com/matzehuels/commitcanvas/pkg/graph"
	"github.com/matzehuels/commitcanvas/pkg/layoutcache"
	"github.com/matzehuels/commitcanvas/pkg/session"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// layoutOpts holds the command-line flags for the layout command.
type layoutOpts struct {
	pages  int    // pages of history to load
	format string // "json" or "table"
	output string // output file, stdout when empty
}

// layoutCommand creates the layout command, which prints the reconciled
// position of every loaded commit.
func (c *CLI) layoutCommand() *cobra.Command {
	opts := layoutOpts{pages: 1, format: formatTable}

	cmd := &cobra.Command{
		Use:   "layout <repo>",
		Short: "Print the diagram positions of a repository's commits",
		Long: `Layout loads the newest pages of history, reconciles them with the saved
layout and prints each commit's position. Use --format json for the full
snapshot including edges.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatJSON && opts.format != formatTable {
				return errors.New(errors.ErrCodeInvalidInput, "invalid format: %s (must be 'json' or 'table')", opts.format)
			}
			return c.runLayout(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.pages, "pages", "p", opts.pages, "pages of history to load")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: table (default), json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func (c *CLI) runLayout(ctx context.Context, stdout io.Writer, repo string, opts layoutOpts) error {
	snap, err := c.loadSnapshot(ctx, repo, opts.pages)
	if err != nil {
		return err
	}

	w := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch opts.format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
	default:
		fmt.Fprintln(w, positionTable(snap))
	}

	if opts.output != "" {
		printSuccess("Layout written")
		printFile(opts.output)
	}
	return nil
}

// loadSnapshot runs a headless session over repo: it loads pages pages of
// history, reconciles them with the saved layout and returns what a
// surface would draw.
func (c *CLI) loadSnapshot(ctx context.Context, repo string, pages int) (graph.Snapshot, error) {
	if pages < 1 {
		return graph.Snapshot{}, errors.New(errors.ErrCodeInvalidInput, "pages must be at least 1")
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return graph.Snapshot{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", repo)
	}

	store, err := c.openStore(ctx)
	if err != nil {
		return graph.Snapshot{}, err
	}
	defer store.Close()

	sess, err := c.headlessSession(abs, c.newSource(), store)
	if err != nil {
		return graph.Snapshot{}, err
	}
	defer sess.Close()

	spinner := newSpinnerWithContext(ctx, "Loading history...")
	spinner.Start()
	defer spinner.Stop()
	prog := newProgress(c.Logger)

	if err := sess.Open(ctx); err != nil {
		return graph.Snapshot{}, err
	}
	for page := 2; page <= pages && sess.Snapshot().HasMore; page++ {
		spinner.SetMessage("Loading page %d/%d...", page, pages)
		if err := sess.LoadMore(ctx); err != nil {
			return graph.Snapshot{}, err
		}
	}
	spinner.Stop()

	snap := sess.Snapshot()
	prog.done(fmt.Sprintf("Laid out %d commits", len(snap.Nodes)))
	return snap, sess.Flush(ctx)
}

// headlessSession creates a session whose notifications go to the logger.
func (c *CLI) headlessSession(repo string, src *gitsource.Source, store layoutcache.Store) (*session.GraphSession, error) {
	cfg := c.sessionConfig(src, store)
	cfg.Repo = repo
	cfg.Notifier = session.NotifierFunc(func(n session.Notification) {
		if n.Level == session.LevelError {
			c.Logger.Error(n.Message, "code", n.Code)
			return
		}
		c.Logger.Warn(n.Message, "code", n.Code)
	})
	return session.New(cfg)
}

// positionTable renders one row per commit node in window order.
func positionTable(snap graph.Snapshot) string {
	rows := make([][]string, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if n.Commit == nil {
			continue
		}
		rows = append(rows, []string{
			shortID(n.ID),
			fmt.Sprintf("%g", n.Position.X),
			fmt.Sprintf("%g", n.Position.Y),
			strings.Join(n.Commit.Refs, ", "),
			summary(n.Commit.Message, 50),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Commit", "X", "Y", "Refs", "Message").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 0:
				return lipgloss.NewStyle().Foreground(colorCyan)
			case col == 1 || col == 2:
				return lipgloss.NewStyle().Foreground(colorWhite)
			case col == 3:
				return lipgloss.NewStyle().Foreground(colorGreen)
			}
			return lipgloss.NewStyle().Foreground(colorGray)
		}).
		Render()
}

func shortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

// summary returns the first line of msg cut to limit runes.
func summary(msg string, limit int) string {
	line, _, _ := strings.Cut(msg, "\n")
	r := []rune(strings.TrimSpace(line))
	if len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return string(r)
}
