package graph

import (
	"go/ast"

	"go.trai.ch/zerr"
	"golang.org/x/tools/go/cfg"
)

var (
	// ErrInvalidUnit is returned when a unit has no syntax node or its root
	// file is missing.
	ErrInvalidUnit = zerr.New("invalid analyzable unit")

	// ErrNoBody is returned when asked to build a graph for a bodiless
	// function declaration.
	ErrNoBody = zerr.New("unit has no body to build a graph from")

	// ErrUnsupportedOption is returned when a build option is requested that
	// the builder cannot model.
	ErrUnsupportedOption = zerr.New("unsupported graph build option")
)

// Options selects optional graph features. The dataflow cache always builds
// with the zero value: panic-edge and assertion modeling roughly double the
// node count and no cached analysis needs them.
type Options struct {
	// PanicEdges models panicking calls as explicit edges to an exit block.
	PanicEdges bool
	// Assertions models runtime checks (bounds, nil checks) as graph nodes.
	Assertions bool
}

// Builder constructs a control-flow graph for one unit.
//
// Implementations are external collaborators of the cache: construction
// failures propagate to the caller unmodified, and the cache never retries.
type Builder interface {
	Build(root *ast.File, unit Unit, opts Options, ctx *Context) (*Graph, error)
}

// CFGBuilder is the default Builder, backed by golang.org/x/tools/go/cfg.
//
// Neither optional feature is supported: x/tools lowers panics and runtime
// checks implicitly. Requesting one is an error rather than a silent no-op.
type CFGBuilder struct{}

// NewBuilder returns the default builder.
func NewBuilder() *CFGBuilder { return &CFGBuilder{} }

// Build lowers the unit's body to basic blocks.
//
// For a KindInitializer unit the initializer expressions are wrapped in a
// synthetic block of expression statements; the synthetic nodes never leak
// out, since block contents are the original expression nodes.
func (b *CFGBuilder) Build(root *ast.File, unit Unit, opts Options, ctx *Context) (*Graph, error) {
	if !unit.Valid() || root == nil {
		return nil, zerr.With(ErrInvalidUnit, "kind", unit.Kind.String())
	}
	if opts.PanicEdges || opts.Assertions {
		return nil, zerr.With(ErrUnsupportedOption, "kind", unit.Kind.String())
	}

	var body *ast.BlockStmt
	switch decl := unit.Decl.(type) {
	case *ast.FuncDecl:
		if decl.Body == nil {
			return nil, zerr.With(ErrNoBody, "func", decl.Name.Name)
		}
		body = decl.Body
	case *ast.FuncLit:
		body = decl.Body
	case *ast.ValueSpec:
		if len(decl.Values) == 0 {
			return nil, zerr.With(ErrNoBody, "kind", unit.Kind.String())
		}
		stmts := make([]ast.Stmt, len(decl.Values))
		for i, v := range decl.Values {
			stmts[i] = &ast.ExprStmt{X: v}
		}
		body = &ast.BlockStmt{List: stmts}
	default:
		return nil, zerr.With(ErrInvalidUnit, "kind", unit.Kind.String())
	}

	return newGraph(unit, cfg.New(body, mayReturn)), nil
}

// mayReturn reports whether a call can complete normally. Only the builtin
// panic and the conventional process terminators are treated as no-return;
// everything else is assumed to return, which over-approximates control flow
// but never loses an execution path.
func mayReturn(call *ast.CallExpr) bool {
	switch fun := call.Fun.(type) {
	case *ast.Ident:
		return fun.Name != "panic"
	case *ast.SelectorExpr:
		if pkg, ok := fun.X.(*ast.Ident); ok {
			if pkg.Name == "os" && fun.Sel.Name == "Exit" {
				return false
			}
			if pkg.Name == "runtime" && fun.Sel.Name == "Goexit" {
				return false
			}
			if pkg.Name == "log" && (fun.Sel.Name == "Fatal" || fun.Sel.Name == "Fatalf" || fun.Sel.Name == "Fatalln") {
				return false
			}
		}
	}
	return true
}
