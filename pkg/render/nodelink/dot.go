package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/commitcanvas/pkg/commit"
	"github.com/matzehuels/commitcanvas/pkg/errors"
	"github.com/matzehuels/commitcanvas/pkg/graph"
	"github.com/matzehuels/commitcanvas/pkg/render"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the message summary and refs to node labels.
	// When false, only the abbreviated commit ID is shown.
	Detailed bool
	// Scale multiplies graph coordinates into points. Zero means 1.
	Scale float64
}

const shortIDLen = 7

// ToDOT converts a snapshot to Graphviz DOT with every commit pinned at its
// position. Graph y grows downward and Graphviz y grows upward, so y is
// negated.
func ToDOT(snap graph.Snapshot, opts Options) string {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=true;\n")
	buf.WriteString("  overlap=true;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\", pin=true];\n")
	buf.WriteString("\n")

	drawn := make(map[string]bool, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if n.IsVirtual() {
			continue
		}
		drawn[n.ID] = true
		attrs := fmtAttrs(n, fmtLabel(n, opts.Detailed), scale)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range snap.Edges {
		if e.Virtual || !drawn[e.Source] || !drawn[e.Target] {
			continue
		}
		if e.Merge {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", e.Source, e.Target)
		} else {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n graph.Node, detailed bool) string {
	if n.ID == commit.WorkingCopyID {
		label := "Uncommitted changes"
		if detailed && n.Commit != nil && n.Commit.Uncommitted != commit.None {
			label += "\n(" + n.Commit.Uncommitted.String() + ")"
		}
		return label
	}
	id := n.ID
	if len(id) > shortIDLen {
		id = id[:shortIDLen]
	}
	if !detailed || n.Commit == nil {
		return id
	}

	parts := []string{id}
	if summary, _, _ := strings.Cut(n.Commit.Message, "\n"); summary != "" {
		parts = append(parts, summary)
	}
	if len(n.Commit.Refs) > 0 {
		parts = append(parts, "["+strings.Join(n.Commit.Refs, ", ")+"]")
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n graph.Node, label string, scale float64) []string {
	attrs := []string{
		fmt.Sprintf("label=%q", label),
		fmt.Sprintf("pos=\"%s,%s!\"", fmtFloat(n.Position.X*scale), fmtFloat(-n.Position.Y*scale)),
	}
	if n.ID == commit.WorkingCopyID {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightyellow")
	}
	return attrs
}

func fmtFloat(f float64) string {
	if f == 0 {
		f = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RenderSVG renders a DOT graph to SVG using the neato engine so pinned
// positions are kept.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "init graphviz")
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "render SVG")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
