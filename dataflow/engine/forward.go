package engine

import (
	"go/ast"

	"go.trai.ch/zerr"
	"golang.org/x/tools/go/cfg"

	"github.com/dandycheung/error-prone/dataflow/graph"
)

// ErrNilGraph is returned when Run is given no graph.
var ErrNilGraph = zerr.New("cannot run analysis over nil graph")

// ForwardAnalysis is one forward worklist analysis bound to a transfer
// function. A fresh instance is created per (transfer function, graph) pair;
// Run executes to completion synchronously and ValueAt then serves
// per-expression results.
type ForwardAnalysis struct {
	transfer TransferFunction
	values   map[ast.Expr]Value
	inputs   map[*cfg.Block]Store
	ran      bool
}

// NewForward returns an analysis bound to transfer. The analysis is inert
// until Run is called.
func NewForward(transfer TransferFunction) *ForwardAnalysis {
	return &ForwardAnalysis{transfer: transfer}
}

// Run iterates the transfer function over g until every block's input state
// stabilizes. Calling Run again discards all previous results.
//
// Non-termination of a non-monotone transfer function is not detected here;
// the engine places no bound on iterations.
func (a *ForwardAnalysis) Run(g *graph.Graph, ctx *graph.Context) error {
	if g == nil {
		return ErrNilGraph
	}

	a.values = make(map[ast.Expr]Value)
	a.inputs = make(map[*cfg.Block]Store)

	entry := g.Entry()
	a.inputs[entry] = a.transfer.EntryStore(g.Unit, ctx)

	queued := map[*cfg.Block]bool{entry: true}
	worklist := []*cfg.Block{entry}

	for len(worklist) > 0 {
		block := worklist[0]
		worklist = worklist[1:]
		queued[block] = false

		state := a.inputs[block]
		for _, node := range block.Nodes {
			flow := a.transfer.Transfer(node, state)
			for expr, v := range flow.Values {
				a.values[expr] = v
			}
			state = flow.Out
		}

		for _, succ := range block.Succs {
			prev, seen := a.inputs[succ]
			next := state
			if seen {
				next = a.transfer.Join(prev, state)
				if a.transfer.Equal(prev, next) {
					continue
				}
			}
			a.inputs[succ] = next
			if !queued[succ] {
				queued[succ] = true
				worklist = append(worklist, succ)
			}
		}
	}

	a.ran = true
	return nil
}

// ValueAt returns the abstract value recorded for the expression, or false
// when the analysis never evaluated it (unreachable code, or a node kind the
// transfer function does not model).
func (a *ForwardAnalysis) ValueAt(e ast.Expr) (Value, bool) {
	if !a.ran {
		return nil, false
	}
	v, ok := a.values[e]
	return v, ok
}

// InputOf returns the state at the entry of block b, or false when b was
// never reached. Exposed for callers that need whole-graph results rather
// than a single expression's value.
func (a *ForwardAnalysis) InputOf(b *cfg.Block) (Store, bool) {
	if !a.ran {
		return nil, false
	}
	s, ok := a.inputs[b]
	return s, ok
}
