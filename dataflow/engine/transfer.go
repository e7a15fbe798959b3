// Package engine runs forward fixed-point dataflow analyses over
// control-flow graphs.
//
// The engine is agnostic to the lattice: a TransferFunction supplies the
// entry state, the per-node update rule, the join at merge points, and the
// convergence test. Termination is the transfer function's obligation:
// the update rule must be monotone over a lattice of finite height.
package engine

import (
	"go/ast"

	"github.com/dandycheung/error-prone/dataflow/graph"
)

// Value is the abstract value of a single expression at a program point.
// It is opaque to the engine and the cache.
type Value any

// Store is the abstract state flowing along graph edges. Opaque to the
// engine except through the TransferFunction's Join and Equal.
type Store any

// Flow is the outcome of transferring one graph node: the state after the
// node, plus abstract values for any expressions evaluated inside it.
type Flow struct {
	Out Store
	// Values holds per-expression abstract values recorded while
	// transferring the node. May be nil when the node evaluated nothing.
	Values map[ast.Expr]Value
}

// TransferFunction describes one dataflow analysis.
//
// Implementations must be value-comparable through CacheKey: two instances
// describing the same analysis configuration must return equal keys, and the
// key must never include auxiliary context objects (type information, file
// sets). The dataflow cache relies on this to share one fixed-point run
// between independently constructed but semantically identical analyses.
type TransferFunction interface {
	// CacheKey returns a comparable value identifying the analysis
	// configuration.
	CacheKey() any

	// EntryStore returns the state at the unit's entry point.
	EntryStore(u graph.Unit, ctx *graph.Context) Store

	// Transfer computes the state after one graph node.
	Transfer(node ast.Node, in Store) Flow

	// Join merges the states of two incoming edges at a merge point.
	Join(a, b Store) Store

	// Equal reports whether two states are indistinguishable. The fixed
	// point is reached when every block's input state stops changing.
	Equal(a, b Store) bool
}
