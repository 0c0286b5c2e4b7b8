package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/render/nodelink"
)

const (
	formatSVG = "svg"
	formatDOT = "dot"
	formatPDF = "pdf"
	formatPNG = "png"
)

// validFormats is the set of supported export formats.
var validFormats = map[string]bool{formatSVG: true, formatDOT: true, formatPDF: true, formatPNG: true}

// exportOpts holds the command-line flags for the export command.
type exportOpts struct {
	output   string  // output file path (default: <repo name>.<format>)
	format   string  // "svg", "dot", "pdf" or "png"
	pages    int     // pages of history to load
	detailed bool    // add message summaries and refs to node labels
	scale    float64 // coordinate scale
}

// exportCommand creates the export command, which renders the diagram of a
// repository with every commit pinned at its reconciled position.
func (c *CLI) exportCommand() *cobra.Command {
	opts := exportOpts{pages: 1, scale: 1}

	cmd := &cobra.Command{
		Use:   "export <repo>",
		Short: "Render a repository's commit diagram to SVG, DOT, PDF or PNG",
		Long: `Export draws the commit graph exactly as laid out, honoring saved positions.
PDF and PNG output require rsvg-convert on PATH.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format == "" {
				opts.format = formatFromPath(opts.output)
			}
			if !validFormats[opts.format] {
				return errors.New(errors.ErrCodeInvalidInput, "invalid format: %s (must be 'svg', 'dot', 'pdf', or 'png')", opts.format)
			}
			return c.runExport(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <repo>.<format>)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: svg (default), dot, pdf, png")
	cmd.Flags().IntVarP(&opts.pages, "pages", "p", opts.pages, "pages of history to load")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show message summaries and refs in node labels")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "coordinate scale")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, repo string, opts exportOpts) error {
	snap, err := c.loadSnapshot(ctx, repo, opts.pages)
	if err != nil {
		return err
	}
	if len(snap.Nodes) == 0 {
		printWarning("Repository has no commits")
		return nil
	}

	dot := nodelink.ToDOT(snap, nodelink.Options{Detailed: opts.detailed, Scale: opts.scale})

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", strings.ToUpper(opts.format)))
	spinner.Start()
	data, err := renderDOT(ctx, dot, opts.format)
	switch {
	case err == nil:
		spinner.Stop()
	case spinner.Cancelled():
		spinner.Stop()
		return ctx.Err()
	default:
		spinner.StopWithError("Render failed")
		return err
	}

	output := opts.output
	if output == "" {
		output = defaultOutput(snap.Repo, opts.format)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return err
	}

	printSuccess("Exported %d commits", len(snap.Nodes))
	printFile(output)
	return nil
}

func renderDOT(ctx context.Context, dot, format string) ([]byte, error) {
	switch format {
	case formatDOT:
		return []byte(dot), nil
	case formatPDF:
		return nodelink.RenderPDF(ctx, dot)
	case formatPNG:
		return nodelink.RenderPNG(ctx, dot, 2)
	}
	return nodelink.RenderSVG(ctx, dot)
}

// formatFromPath infers the format from an output extension, falling back
// to SVG.
func formatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if validFormats[ext] {
		return ext
	}
	return formatSVG
}

func defaultOutput(repo, format string) string {
	name := filepath.Base(filepath.Clean(repo))
	if name == "." || name == string(filepath.Separator) {
		name = "graph"
	}
	return name + "." + format
}
