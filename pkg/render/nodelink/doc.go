// Package nodelink renders commit graphs as node-link diagrams.
//
// # Overview
//
// Unlike a freshly laid out Graphviz graph, a commitcanvas export keeps the
// arrangement the user made: [ToDOT] writes every commit with a pinned
// `pos` attribute taken from the snapshot, and [RenderSVG] runs the neato
// engine, which honors pinned positions instead of computing its own.
//
// # Usage
//
//	dot := nodelink.ToDOT(snap, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// For PDF or PNG output:
//
//	pdf, err := nodelink.RenderPDF(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot, 2.0)  // 2x scale
//
// # Options
//
//   - Detailed: labels include the first line of the message and the refs
//   - Scale: graph units per point (default 1)
//
// Merge edges (to a parent other than the first) are dashed. The diff
// pointer's virtual node and edge are never exported.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
