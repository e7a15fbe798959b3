// Package graph defines the analyzable unit, the control-flow graph wrapper,
// and the graph builder interface used by the dataflow cache.
//
// The default builder lowers a unit's body to basic blocks with
// golang.org/x/tools/go/cfg. Callers that need a different lowering (richer
// panic modeling, instrumented construction) supply their own Builder; the
// cache layer is agnostic to how the graph was produced.
package graph

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/cfg"
)

// Context carries the per-compilation handles that graph construction and
// transfer functions may need. It is deliberately excluded from every cache
// key: two Contexts describing the same compilation are interchangeable, and
// keying on them would defeat reuse across semantically equivalent contexts.
type Context struct {
	Fset *token.FileSet
	Info *types.Info
	Pkg  *types.Package
}

// Graph is a control-flow graph built for one unit.
//
// Identity matters: analysis results are keyed by the exact *Graph pointer,
// so two structurally identical graphs built separately are distinct keys.
type Graph struct {
	// Unit is the analyzable unit this graph was built for.
	Unit Unit

	underlying *cfg.CFG
	preds      map[*cfg.Block][]*cfg.Block
}

// newGraph wraps an x/tools CFG and precomputes predecessor edges, which the
// underlying representation does not carry.
func newGraph(u Unit, underlying *cfg.CFG) *Graph {
	preds := make(map[*cfg.Block][]*cfg.Block, len(underlying.Blocks))
	for _, b := range underlying.Blocks {
		for _, succ := range b.Succs {
			preds[succ] = append(preds[succ], b)
		}
	}
	return &Graph{Unit: u, underlying: underlying, preds: preds}
}

// Blocks returns the graph's basic blocks. The entry block is first.
func (g *Graph) Blocks() []*cfg.Block { return g.underlying.Blocks }

// Entry returns the entry block.
func (g *Graph) Entry() *cfg.Block { return g.underlying.Blocks[0] }

// Preds returns the predecessors of b. The entry block has none.
func (g *Graph) Preds(b *cfg.Block) []*cfg.Block { return g.preds[b] }

// Format returns a multi-line rendering of the graph for debugging.
func (g *Graph) Format(fset *token.FileSet) string {
	return g.underlying.Format(fset)
}

// Reachable reports whether dst can be reached from src by following
// successor edges. Same-block is considered reachable only through a cycle.
func (g *Graph) Reachable(src, dst *cfg.Block) bool {
	if src == nil || dst == nil {
		return false
	}
	visited := map[*cfg.Block]bool{src: true}
	queue := []*cfg.Block{src}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, succ := range b.Succs {
			if succ == dst {
				return true
			}
			if !visited[succ] {
				visited[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	return false
}
