package dataflow

import (
	"go/ast"

	"github.com/dandycheung/error-prone/dataflow/graph"
)

// enclosingUnit walks outward from the leaf of path (innermost node first)
// to the smallest enclosing analyzable unit.
//
// Match cases, in the order the walk encounters them:
//
//   - a function or method declaration, matched even when bodiless, so an
//     expression inside an external declaration's signature resolves here;
//     the caller rejects the unit via HasBody
//   - a function literal the leaf sits inside; the literal itself, used as
//     an expression, belongs to ITS enclosing unit, hence the i > 0 guard
//   - a package-level var spec with an initializer; local var specs do not
//     match because their parent is a DeclStmt, not the file
//
// Reaching the end of the path without a match (an identifier inside an
// import or package clause) reports false, which callers must treat as "no
// dataflow value available", never as an error.
func enclosingUnit(path []ast.Node) (graph.Unit, bool) {
	for i, n := range path {
		switch n := n.(type) {
		case *ast.FuncDecl:
			return graph.MethodUnit(n, rootFile(path)), true
		case *ast.FuncLit:
			if i > 0 {
				return graph.LambdaUnit(n, rootFile(path)), true
			}
		case *ast.ValueSpec:
			if len(n.Values) > 0 && atPackageLevel(path, i) {
				return graph.InitializerUnit(n, rootFile(path)), true
			}
		}
	}
	return graph.Unit{}, false
}

// atPackageLevel reports whether the ValueSpec at path[i] hangs directly off
// the file through its GenDecl.
func atPackageLevel(path []ast.Node, i int) bool {
	if i+2 >= len(path) {
		return false
	}
	if _, ok := path[i+1].(*ast.GenDecl); !ok {
		return false
	}
	_, ok := path[i+2].(*ast.File)
	return ok
}

// rootFile returns the compilation root at the outer end of the path, or nil
// when the path was not built up to a file.
func rootFile(path []ast.Node) *ast.File {
	if len(path) == 0 {
		return nil
	}
	f, _ := path[len(path)-1].(*ast.File)
	return f
}
