// Package dataflow memoizes the two expensive artifacts of per-unit static
// analysis: the control-flow graph of a function, function literal, or
// package-level initializer, and the result of running a dataflow analysis
// over that graph.
//
// It exists so that a family of independent checks can repeatedly ask "what
// is the abstract value of this expression under analysis X?" while walking
// the same syntax tree, without rebuilding graphs or re-running fixed-point
// computations.
//
// # Caching policy
//
// Two caches cooperate, tuned to the traversal pattern of an analysis pass:
//
//   - all dataflow analyses for a unit finish before another unit is visited
//   - multiple analyses for the same unit run in arbitrary order
//
// The graph cache holds exactly one graph, keyed by unit identity. Building
// a graph for a different unit drops every cached analysis, which bounds
// memory across a whole package at the cost of reuse if the traversal order
// assumption breaks. Breaking it can never produce a wrong answer: analysis
// results are keyed by the exact graph pointer, so a stale entry cannot
// match a key built against a newer graph.
//
// # Ownership
//
// A Cache backs one traversal of one syntax tree. It is not safe for
// concurrent use; construct one per analysis pass rather than sharing a
// package-level instance.
package dataflow

import (
	"fmt"
	"go/ast"
	"io"

	"go.trai.ch/zerr"

	"github.com/dandycheung/error-prone/dataflow/engine"
	"github.com/dandycheung/error-prone/dataflow/graph"
	"github.com/dandycheung/error-prone/dataflow/internal/stats"
)

// ErrNotExpression reports a caller contract violation: the leaf of the path
// handed to ExpressionValue was not an expression. It is delivered by panic,
// never as a return value.
var ErrNotExpression = zerr.New("expression path must start with an expression node")

// Context is the compilation-context handle passed alongside queries. It is
// carried to the builder and transfer function but excluded from every cache
// key. See graph.Context.
type Context = graph.Context

// Analysis is the handle to one completed dataflow run. The concrete type is
// normally *engine.ForwardAnalysis; tests substitute instrumented stand-ins
// through WithAnalysisFactory.
type Analysis interface {
	Run(g *graph.Graph, ctx *graph.Context) error
	ValueAt(e ast.Expr) (engine.Value, bool)
}

// Result pairs a completed analysis with the graph it ran over, for callers
// that need per-node or per-block results beyond a single expression.
type Result struct {
	Analysis Analysis
	Graph    *graph.Graph
}

// analysisKey identifies one cached analysis: the transfer function's own
// comparable key plus the exact graph instance. Structurally identical
// graphs built separately never collide.
type analysisKey struct {
	transfer any
	graph    *graph.Graph
}

// Cache memoizes graphs and analyses for one traversal.
type Cache struct {
	builder    graph.Builder
	newForward func(engine.TransferFunction) Analysis

	slotUnit  graph.Unit
	slotGraph *graph.Graph
	analyses  map[analysisKey]Analysis

	counters stats.Counters
	tracer   *stats.Tracer
}

// Option configures a Cache.
type Option func(*Cache)

// WithBuilder substitutes the graph builder. The default is
// graph.NewBuilder.
func WithBuilder(b graph.Builder) Option {
	return func(c *Cache) { c.builder = b }
}

// WithAnalysisFactory substitutes the analysis constructor. The default
// wraps engine.NewForward. Intended for instrumented stand-ins in tests.
func WithAnalysisFactory(f func(engine.TransferFunction) Analysis) Option {
	return func(c *Cache) { c.newForward = f }
}

// WithTrace enables one-line-per-event cache tracing to w.
func WithTrace(w io.Writer) Option {
	return func(c *Cache) { c.tracer = stats.NewTracer(w) }
}

// New returns an empty cache. Construct one per traversal.
func New(opts ...Option) *Cache {
	c := &Cache{
		builder: graph.NewBuilder(),
		newForward: func(tf engine.TransferFunction) Analysis {
			return engine.NewForward(tf)
		},
		analyses: make(map[analysisKey]Analysis),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns a snapshot of the cache effectiveness counters.
func (c *Cache) Stats() stats.Counters { return c.counters }

// UnitAnalysis resolves the graph for the unit, then the analysis for
// (transfer, graph), building and running whatever is missing.
//
// Failures from the builder or the engine propagate unmodified: this layer
// adds no retry, fallback, or suppression.
func (c *Cache) UnitAnalysis(u graph.Unit, ctx *Context, transfer engine.TransferFunction) (Result, error) {
	g, err := c.graphFor(u, ctx)
	if err != nil {
		return Result{}, err
	}
	a, err := c.analysisFor(g, ctx, transfer)
	if err != nil {
		return Result{}, err
	}
	return Result{Analysis: a, Graph: g}, nil
}

// ExpressionValue resolves the enclosing unit of the expression at path[0]
// (path runs innermost node first, as returned by
// astutil.PathEnclosingInterval) and returns the expression's abstract value
// under the given transfer function.
//
// The second result is false, with a nil error, when the expression has no
// enclosing analyzable unit (an identifier inside an import declaration, for
// example) or when the enclosing unit is a bodiless function declaration.
// Checks receiving false typically suppress their finding.
//
// Passing a path whose leaf is not an expression is a programming error and
// panics with ErrNotExpression.
func (c *Cache) ExpressionValue(path []ast.Node, ctx *Context, transfer engine.TransferFunction) (engine.Value, bool, error) {
	if len(path) == 0 {
		panic(ErrNotExpression)
	}
	expr, ok := path[0].(ast.Expr)
	if !ok {
		panic(zerr.With(ErrNotExpression, "leaf_type", fmt.Sprintf("%T", path[0])))
	}

	u, found := enclosingUnit(path)
	if !found || !u.HasBody() {
		return nil, false, nil
	}

	res, err := c.UnitAnalysis(u, ctx, transfer)
	if err != nil {
		return nil, false, err
	}
	v, ok := res.Analysis.ValueAt(expr)
	return v, ok, nil
}

// graphFor returns the resident graph when the slot already holds this unit,
// and otherwise swaps the slot: every cached analysis is dropped first, then
// the builder runs. Invalidation is global rather than per-unit: under the
// intended traversal order nothing useful is ever dropped, and the analysis
// map can never outgrow one unit's worth of entries.
func (c *Cache) graphFor(u graph.Unit, ctx *Context) (*graph.Graph, error) {
	if c.slotGraph != nil && c.slotUnit == u {
		c.counters.GraphHits++
		c.tracer.Event("graph hit", unitKeyParts(u)...)
		return c.slotGraph, nil
	}

	c.counters.GraphMisses++
	c.tracer.Event("graph miss", unitKeyParts(u)...)
	c.invalidateAnalyses()
	c.slotGraph = nil

	g, err := c.builder.Build(u.Root, u, graph.Options{}, ctx)
	if err != nil {
		return nil, err
	}
	c.slotUnit = u
	c.slotGraph = g
	return g, nil
}

// analysisFor returns the memoized analysis for (transfer key, graph), even
// when transfer is a different object from the one that produced the entry,
// as long as the two are value-equal through CacheKey.
func (c *Cache) analysisFor(g *graph.Graph, ctx *Context, transfer engine.TransferFunction) (Analysis, error) {
	key := analysisKey{transfer: transfer.CacheKey(), graph: g}
	if a, ok := c.analyses[key]; ok {
		c.counters.AnalysisHits++
		c.tracer.Event("analysis hit", analysisKeyParts(key)...)
		return a, nil
	}

	c.counters.AnalysisMisses++
	c.tracer.Event("analysis miss", analysisKeyParts(key)...)

	a := c.newForward(transfer)
	if err := a.Run(g, ctx); err != nil {
		return nil, err
	}
	c.analyses[key] = a
	return a, nil
}

func (c *Cache) invalidateAnalyses() {
	if len(c.analyses) == 0 {
		return
	}
	c.counters.Invalidations++
	c.tracer.Event("invalidate all")
	clear(c.analyses)
}

func unitKeyParts(u graph.Unit) []string {
	return []string{u.Kind.String(), fmt.Sprintf("%p", u.Decl)}
}

func analysisKeyParts(k analysisKey) []string {
	return []string{fmt.Sprintf("%v", k.transfer), fmt.Sprintf("%p", k.graph)}
}
