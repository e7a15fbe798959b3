package dataflow_test

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/dandycheung/error-prone/dataflow"
	"github.com/dandycheung/error-prone/dataflow/engine"
	"github.com/dandycheung/error-prone/dataflow/graph"
)

const src = `package p

import "fmt"

func M1() {
	x := compute()
	use(x)
}

func M2() {
	y := compute()
	use(y)
}

func external()

func compute() int { return 0 }

func use(v int) {}

var sink = fmt.Sprint(0)
`

func parseSrc(t *testing.T) (*token.FileSet, *ast.File) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "p.go", src, parser.ParseComments)
	require.NoError(t, err)
	return fset, file
}

// pathTo returns the innermost-first enclosing path of the first identifier
// with the given name.
func pathTo(t *testing.T, file *ast.File, name string) []ast.Node {
	t.Helper()
	var target *ast.Ident
	ast.Inspect(file, func(n ast.Node) bool {
		if target != nil {
			return false
		}
		if ident, ok := n.(*ast.Ident); ok && ident.Name == name {
			target = ident
			return false
		}
		return true
	})
	require.NotNil(t, target, "identifier %q not found", name)
	path, _ := astutil.PathEnclosingInterval(file, target.Pos(), target.End())
	return path
}

// =============================================================================
// Instrumented stand-ins
// =============================================================================

type fakeKey struct{ name string }

// fakeTransfer is a trivially converging transfer function whose cache
// identity is its name: two instances with equal names are value-equal.
type fakeTransfer struct{ name string }

func (f fakeTransfer) CacheKey() any { return fakeKey{f.name} }

func (f fakeTransfer) EntryStore(graph.Unit, *graph.Context) engine.Store { return 0 }

func (f fakeTransfer) Transfer(_ ast.Node, in engine.Store) engine.Flow {
	return engine.Flow{Out: in}
}

func (f fakeTransfer) Join(a, _ engine.Store) engine.Store { return a }

func (f fakeTransfer) Equal(engine.Store, engine.Store) bool { return true }

// runLog counts fixed-point executions per transfer-function key.
type runLog struct {
	total int
	byKey map[any]int
}

func newRunLog() *runLog { return &runLog{byKey: make(map[any]int)} }

// countingAnalysis records every Run call. ValueAt serves a value derived
// from the transfer key alone, so results are comparable across caches while
// the run counters prove whether a computation was reused.
type countingAnalysis struct {
	key any
	log *runLog
}

func (a *countingAnalysis) Run(*graph.Graph, *graph.Context) error {
	a.log.total++
	a.log.byKey[a.key]++
	return nil
}

func (a *countingAnalysis) ValueAt(ast.Expr) (engine.Value, bool) { return a.key, true }

func (l *runLog) factory(tf engine.TransferFunction) dataflow.Analysis {
	return &countingAnalysis{key: tf.CacheKey(), log: l}
}

// countingBuilder delegates to the real builder while counting builds per
// unit.
type countingBuilder struct {
	inner  graph.Builder
	builds map[graph.Unit]int
}

func newCountingBuilder() *countingBuilder {
	return &countingBuilder{inner: graph.NewBuilder(), builds: make(map[graph.Unit]int)}
}

func (b *countingBuilder) Build(root *ast.File, u graph.Unit, opts graph.Options, ctx *graph.Context) (*graph.Graph, error) {
	b.builds[u]++
	return b.inner.Build(root, u, opts, ctx)
}

func newTestCache() (*dataflow.Cache, *countingBuilder, *runLog) {
	builder := newCountingBuilder()
	log := newRunLog()
	cache := dataflow.New(
		dataflow.WithBuilder(builder),
		dataflow.WithAnalysisFactory(log.factory),
	)
	return cache, builder, log
}

// =============================================================================
// Cache properties
// =============================================================================

func TestIdempotence(t *testing.T) {
	fset, file := parseSrc(t)
	cache, builder, log := newTestCache()
	ctx := &dataflow.Context{Fset: fset}
	tf := fakeTransfer{name: "t"}

	path := pathTo(t, file, "x")
	v1, ok, err := cache.ExpressionValue(path, ctx, tf)
	require.NoError(t, err)
	require.True(t, ok)

	v2, ok, err := cache.ExpressionValue(path, ctx, tf)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, log.total, "second query must not rerun the analysis")
	assert.Len(t, builder.builds, 1)
	for _, n := range builder.builds {
		assert.Equal(t, 1, n, "second query must not rebuild the graph")
	}
}

func TestInvalidationOnUnitSwitch(t *testing.T) {
	fset, file := parseSrc(t)
	cache, builder, log := newTestCache()
	ctx := &dataflow.Context{Fset: fset}
	tf := fakeTransfer{name: "t"}

	m1 := pathTo(t, file, "x")
	m2 := pathTo(t, file, "y")

	_, _, err := cache.ExpressionValue(m1, ctx, tf)
	require.NoError(t, err)
	_, _, err = cache.ExpressionValue(m2, ctx, tf)
	require.NoError(t, err)
	_, _, err = cache.ExpressionValue(m1, ctx, tf)
	require.NoError(t, err)

	// Querying M2 evicted M1's graph, so the third query rebuilds and
	// reruns rather than reusing the first run's result.
	assert.Equal(t, 3, log.byKey[fakeKey{"t"}])
	total := 0
	for _, n := range builder.builds {
		total += n
	}
	assert.Equal(t, 3, total, "M1's graph must be rebuilt after the M2 query")

	st := cache.Stats()
	assert.Equal(t, uint64(3), st.GraphMisses)
	assert.Equal(t, uint64(2), st.Invalidations)
}

func TestOrderIndependence(t *testing.T) {
	fset, file := parseSrc(t)
	ctx := &dataflow.Context{Fset: fset}
	t1 := fakeTransfer{name: "t1"}
	t2 := fakeTransfer{name: "t2"}
	path := pathTo(t, file, "x")

	runBoth := func(first, second engine.TransferFunction) (engine.Value, engine.Value, *runLog) {
		cache, _, log := newTestCache()
		_, _, err := cache.ExpressionValue(path, ctx, first)
		require.NoError(t, err)
		_, _, err = cache.ExpressionValue(path, ctx, second)
		require.NoError(t, err)

		va, ok, err := cache.ExpressionValue(path, ctx, t1)
		require.NoError(t, err)
		require.True(t, ok)
		vb, ok, err := cache.ExpressionValue(path, ctx, t2)
		require.NoError(t, err)
		require.True(t, ok)
		return va, vb, log
	}

	a12, b12, log12 := runBoth(t1, t2)
	a21, b21, log21 := runBoth(t2, t1)

	assert.Equal(t, a12, a21)
	assert.Equal(t, b12, b21)
	assert.Equal(t, 2, log12.total, "each analysis runs exactly once")
	assert.Equal(t, 2, log21.total, "each analysis runs exactly once")
}

func TestValueEqualTransferReuse(t *testing.T) {
	fset, file := parseSrc(t)
	cache, _, log := newTestCache()
	ctx := &dataflow.Context{Fset: fset}
	path := pathTo(t, file, "x")

	// Distinct instances, equal cache keys: one fixed-point computation.
	_, _, err := cache.ExpressionValue(path, ctx, fakeTransfer{name: "same"})
	require.NoError(t, err)
	_, _, err = cache.ExpressionValue(path, ctx, fakeTransfer{name: "same"})
	require.NoError(t, err)
	assert.Equal(t, 1, log.total)

	// A non-equal transfer function never collides.
	_, _, err = cache.ExpressionValue(path, ctx, fakeTransfer{name: "other"})
	require.NoError(t, err)
	assert.Equal(t, 2, log.total)
	assert.Equal(t, 1, log.byKey[fakeKey{"same"}])
	assert.Equal(t, 1, log.byKey[fakeKey{"other"}])
}

func TestNoEnclosingUnit(t *testing.T) {
	fset, file := parseSrc(t)
	cache, _, log := newTestCache()
	ctx := &dataflow.Context{Fset: fset}

	// The import path literal is an expression with no enclosing unit.
	var importPath ast.Expr
	ast.Inspect(file, func(n ast.Node) bool {
		if spec, ok := n.(*ast.ImportSpec); ok {
			importPath = spec.Path
			return false
		}
		return true
	})
	require.NotNil(t, importPath)
	path, _ := astutil.PathEnclosingInterval(file, importPath.Pos(), importPath.End())

	v, ok, err := cache.ExpressionValue(path, ctx, fakeTransfer{name: "t"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Zero(t, log.total)
}

func TestBodilessFunction(t *testing.T) {
	fset, file := parseSrc(t)
	cache, builder, log := newTestCache()
	ctx := &dataflow.Context{Fset: fset}

	path := pathTo(t, file, "external")
	v, ok, err := cache.ExpressionValue(path, ctx, fakeTransfer{name: "t"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Zero(t, log.total)
	assert.Empty(t, builder.builds, "bodiless declarations must not reach the builder")
}

func TestNonExpressionPathPanics(t *testing.T) {
	fset, file := parseSrc(t)
	cache, _, _ := newTestCache()
	ctx := &dataflow.Context{Fset: fset}

	// A path whose leaf is a statement violates the caller contract.
	var ret *ast.ReturnStmt
	ast.Inspect(file, func(n ast.Node) bool {
		if r, ok := n.(*ast.ReturnStmt); ok && ret == nil {
			ret = r
		}
		return ret == nil
	})
	require.NotNil(t, ret)
	path, _ := astutil.PathEnclosingInterval(file, ret.Pos(), ret.End())
	require.IsType(t, &ast.ReturnStmt{}, path[0])

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic for non-expression leaf")
		err, isErr := r.(error)
		require.True(t, isErr)
		assert.True(t, errors.Is(err, dataflow.ErrNotExpression))
	}()
	_, _, _ = cache.ExpressionValue(path, ctx, fakeTransfer{name: "t"})
}

func TestUnitAnalysisReturnsGraph(t *testing.T) {
	fset, file := parseSrc(t)
	cache, _, _ := newTestCache()
	ctx := &dataflow.Context{Fset: fset}

	var decl *ast.FuncDecl
	for _, d := range file.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Name.Name == "M1" {
			decl = fd
		}
	}
	require.NotNil(t, decl)

	u := graph.MethodUnit(decl, file)
	res, err := cache.UnitAnalysis(u, ctx, fakeTransfer{name: "t"})
	require.NoError(t, err)
	require.NotNil(t, res.Graph)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, u, res.Graph.Unit)

	// The same unit yields the same graph instance.
	res2, err := cache.UnitAnalysis(u, ctx, fakeTransfer{name: "t"})
	require.NoError(t, err)
	assert.Same(t, res.Graph, res2.Graph)
}
