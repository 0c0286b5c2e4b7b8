// Package render exports commit graphs as static images.
//
// The [nodelink] subpackage turns a snapshot of a repository tab into
// Graphviz DOT with every node pinned at its on-screen position and renders
// it to SVG in-process. [ToPDF] and [ToPNG] convert that SVG with the
// external rsvg-convert tool (from librsvg):
//
//	dot := nodelink.ToDOT(snap, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2) // 2x scale
//
// [nodelink]: github.com/matzehuels/commitcanvas/pkg/render/nodelink
package render
