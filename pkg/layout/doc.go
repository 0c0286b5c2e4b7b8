// Package layout computes the default position of every loaded commit.
//
// The [Engine] is a pure function of the loaded commit set: the same commits
// in any input order produce the same positions. It is the "default" source
// consulted by the reconciler when neither a live nor a cached position is
// known for a commit.
//
// # Pipeline
//
//  1. De-duplicate commits and sort them by ID.
//  2. Build a [dag.DAG] with one parent→child edge per loaded parent.
//     Parents outside the window, self-parents and repeated parents are
//     dropped.
//  3. Handle cycles according to [CyclePolicy].
//  4. Assign longest-path ranks: y = rank × RowSpacing.
//  5. Subdivide long edges and order each rank with the barycentric
//     heuristic: x = column × ColumnSpacing.
//
// Edges in the [Result] connect commits only; synthetic lane nodes used
// during ordering never leave the engine.
//
// [dag.DAG]: github.com/matzehuels/commitcanvas/pkg/dag.DAG
package layout
