package transform

import "github.com/matzehuels/commitcanvas/pkg/dag"

// BreakCycles deletes the back edges a depth-first walk finds and returns
// them in the order found. Roots are walked first in ID order, then any
// node the roots never reached, so repeated calls on equal graphs drop the
// same edges.
func BreakCycles(g *dag.DAG) []dag.Edge {
	const (
		unvisited = iota
		onStack
		done
	)
	state := map[string]int{}

	type frame struct {
		id   string
		next int
	}
	var dropped []dag.Edge
	walk := func(start string) {
		if state[start] != unvisited {
			return
		}
		state[start] = onStack
		stack := []frame{{id: start}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := g.Children(top.id)
			if top.next == len(children) {
				state[top.id] = done
				stack = stack[:len(stack)-1]
				continue
			}
			child := children[top.next]
			top.next++
			switch state[child] {
			case unvisited:
				state[child] = onStack
				stack = append(stack, frame{id: child})
			case onStack:
				dropped = append(dropped, dag.Edge{From: top.id, To: child})
			}
		}
	}

	for _, n := range g.Sources() {
		walk(n.ID)
	}
	for _, n := range g.Nodes() {
		walk(n.ID)
	}
	for _, e := range dropped {
		g.RemoveEdge(e.From, e.To)
	}
	return dropped
}
