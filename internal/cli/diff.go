package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/commitcanvas/pkg/diffpointer"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
)

// diffCommand creates the diff command. Missing commits are picked
// interactively from the loaded history.
func (c *CLI) diffCommand() *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "diff <repo> [from] [to]",
		Short: "Show the patch between two commits",
		Long: `Diff prints the unified patch turning one commit into another. Commits not
given as arguments are picked from an interactive list: the first pick is the
source and the second the target. Uncommitted changes cannot be diffed.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDiff(cmd.Context(), cmd.OutOrStdout(), args[0], args[1:], pages)
		},
	}

	cmd.Flags().IntVarP(&pages, "pages", "p", 1, "pages of history to list when picking")

	return cmd
}

func (c *CLI) runDiff(ctx context.Context, stdout io.Writer, repo string, ids []string, pages int) error {
	abs, err := filepath.Abs(repo)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", repo)
	}
	src := c.newSource()
	pointer := diffpointer.New(abs, src)

	if len(ids) > 0 {
		if err := pointer.Start(ids[0], graph.Position{}); err != nil {
			return err
		}
	}

	var sel diffpointer.Selection
	if len(ids) == 2 {
		sel, err = pointer.Select(ids[1])
		if err != nil {
			return err
		}
	} else {
		snap, err := c.loadSnapshot(ctx, abs, pages)
		if err != nil {
			return err
		}
		picked, ok, err := pickPair(snap.Nodes, pointer)
		if err != nil {
			return err
		}
		if !ok {
			printDetail("No selection made")
			return nil
		}
		sel = picked
	}

	sel, err = diffpointer.Show(ctx, src, abs, sel)
	if err != nil {
		return err
	}
	if sel.Patch == "" {
		printInfo("%s and %s have the same tree", shortID(sel.Source), shortID(sel.Target))
		return nil
	}
	fmt.Fprint(stdout, sel.Patch)
	return nil
}

// pickPair runs the commit list until a target is selected or the user
// quits.
func pickPair(nodes []graph.Node, pointer *diffpointer.Pointer) (diffpointer.Selection, bool, error) {
	m := NewCommitListModel(nodes, pointer)
	if len(m.Nodes) < 2 {
		return diffpointer.Selection{}, false, errors.New(errors.ErrCodeInvalidInput, "need at least two commits to diff")
	}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return diffpointer.Selection{}, false, err
	}
	fm, ok := finalModel.(CommitListModel)
	if !ok || fm.Selected == nil {
		return diffpointer.Selection{}, false, nil
	}
	return *fm.Selected, true, nil
}
