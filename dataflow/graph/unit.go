package graph

import (
	"go/ast"
	"go/token"
)

// Kind classifies the syntactic root of an analyzable unit.
type Kind int

const (
	// KindMethod is a top-level function or method declaration.
	KindMethod Kind = iota
	// KindLambda is a function literal.
	KindLambda
	// KindInitializer is a package-level variable spec with an initializer
	// expression. Each spec is its own unit; initializers are never merged
	// into one virtual block.
	KindInitializer
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindLambda:
		return "lambda"
	case KindInitializer:
		return "initializer"
	default:
		return "unknown"
	}
}

// Unit identifies the smallest syntactic region one control-flow graph is
// built over: a function declaration, a function literal, or a package-level
// variable initializer.
//
// Unit is a comparable value type. Equality is identity of the syntax nodes,
// which is exactly the cache-key semantics the graph cache needs: two Units
// built from the same parsed file collide, and the compilation context is
// deliberately not part of the key (see Context).
type Unit struct {
	Kind Kind
	// Decl is the syntactic root: *ast.FuncDecl for KindMethod,
	// *ast.FuncLit for KindLambda, *ast.ValueSpec for KindInitializer.
	Decl ast.Node
	// Root is the file containing Decl.
	Root *ast.File
}

// MethodUnit returns the unit for a function or method declaration.
func MethodUnit(decl *ast.FuncDecl, root *ast.File) Unit {
	return Unit{Kind: KindMethod, Decl: decl, Root: root}
}

// LambdaUnit returns the unit for a function literal.
func LambdaUnit(lit *ast.FuncLit, root *ast.File) Unit {
	return Unit{Kind: KindLambda, Decl: lit, Root: root}
}

// InitializerUnit returns the unit for a package-level variable spec that
// carries at least one initializer expression.
func InitializerUnit(spec *ast.ValueSpec, root *ast.File) Unit {
	return Unit{Kind: KindInitializer, Decl: spec, Root: root}
}

// Valid reports whether the unit refers to a syntax node at all.
func (u Unit) Valid() bool { return u.Decl != nil }

// Pos returns the position of the unit's syntactic root.
func (u Unit) Pos() token.Pos {
	if u.Decl == nil {
		return token.NoPos
	}
	return u.Decl.Pos()
}

// HasBody reports whether the unit has code to analyze. The only unit
// without one is a bodiless function declaration (an external or assembly
// declaration). Expressions can still occur syntactically inside such a
// declaration, so the locator matches it; callers must treat it as "no
// dataflow value available".
func (u Unit) HasBody() bool {
	if decl, ok := u.Decl.(*ast.FuncDecl); ok {
		return decl.Body != nil
	}
	return u.Decl != nil
}
