// Package nilderef reports uses of values that are definitely nil.
//
// The check runs the nullness dataflow analysis over each function,
// function literal, and package-level initializer it encounters, and flags
// field selections, pointer dereferences, and calls whose operand is nil on
// every path. Nullable values (nil on only some paths) are never reported;
// the check favors silence over false positives.
//
// Findings can be suppressed per line:
//
//	//nilderef:ignore
//	_ = p.f
//
// Unused ignore directives are themselves reported.
package nilderef

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"

	"github.com/dandycheung/error-prone/dataflow"
	"github.com/dandycheung/error-prone/dataflow/nullness"
)

// Analyzer is the main analyzer for nilderef.
var Analyzer = &analysis.Analyzer{
	Name:     "nilderef",
	Doc:      "reports dereferences and calls of values that are definitely nil",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	skipFiles := buildSkipFiles(pass)

	ignoreMaps := make(map[string]ignoreMap)
	for _, file := range pass.Files {
		filename := pass.Fset.Position(file.Pos()).Filename
		if skipFiles[filename] {
			continue
		}
		ignoreMaps[filename] = buildIgnoreMap(pass.Fset, file)
	}

	chk := newChecker(pass, ignoreMaps, skipFiles)
	if err := chk.check(insp); err != nil {
		return nil, err
	}

	// Report unused ignore directives.
	for _, m := range ignoreMaps {
		for _, pos := range m.unused() {
			pass.Reportf(pos, "unused nilderef:ignore directive")
		}
	}

	return nil, nil
}

// buildSkipFiles creates a set of filenames to skip.
// Generated files are always skipped.
func buildSkipFiles(pass *analysis.Pass) map[string]bool {
	skipFiles := make(map[string]bool)
	for _, file := range pass.Files {
		if ast.IsGenerated(file) {
			skipFiles[pass.Fset.Position(file.Pos()).Filename] = true
		}
	}
	return skipFiles
}

// checker drives the dataflow queries and reporting for one pass.
//
// One dataflow.Cache backs the whole pass: the inspector visits expressions
// in source order, so all queries for one unit complete before the next unit
// is reached, which is exactly the access pattern the cache is tuned for.
type checker struct {
	pass      *analysis.Pass
	cache     *dataflow.Cache
	ctx       *dataflow.Context
	transfer  *nullness.Transfer
	ignores   map[string]ignoreMap
	skipFiles map[string]bool
	reported  map[token.Pos]bool
}

func newChecker(pass *analysis.Pass, ignores map[string]ignoreMap, skipFiles map[string]bool) *checker {
	return &checker{
		pass:      pass,
		cache:     dataflow.New(),
		ctx:       &dataflow.Context{Fset: pass.Fset, Info: pass.TypesInfo, Pkg: pass.Pkg},
		transfer:  nullness.New(pass.TypesInfo),
		ignores:   ignores,
		skipFiles: skipFiles,
		reported:  make(map[token.Pos]bool),
	}
}

func (c *checker) check(insp *inspector.Inspector) error {
	nodeFilter := []ast.Node{
		(*ast.SelectorExpr)(nil),
		(*ast.StarExpr)(nil),
		(*ast.CallExpr)(nil),
	}

	var firstErr error
	insp.WithStack(nodeFilter, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push || firstErr != nil {
			return false
		}
		filename := c.pass.Fset.Position(n.Pos()).Filename
		if c.skipFiles[filename] {
			return false
		}

		operand, what := c.operandOf(n)
		if operand == nil {
			return true
		}
		if err := c.checkOperand(operand, n, stack, what); err != nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// operandOf extracts the identifier whose nilness decides the finding, and
// a noun describing the use. Non-identifier operands are skipped: chasing
// nilness through arbitrary expressions belongs to the transfer function,
// and reporting on synthesized temporaries reads poorly.
func (c *checker) operandOf(n ast.Node) (*ast.Ident, string) {
	switch n := n.(type) {
	case *ast.SelectorExpr:
		if ident, ok := n.X.(*ast.Ident); ok && c.isPointerish(ident) {
			return ident, "dereference"
		}
	case *ast.StarExpr:
		if ident, ok := n.X.(*ast.Ident); ok && c.isPointerish(ident) {
			return ident, "dereference"
		}
	case *ast.CallExpr:
		if ident, ok := n.Fun.(*ast.Ident); ok && c.isFuncValue(ident) {
			return ident, "call"
		}
	}
	return nil, ""
}

func (c *checker) checkOperand(operand *ast.Ident, use ast.Node, stack []ast.Node, what string) error {
	// Innermost-first path: the operand, its use, then the enclosing stack.
	path := make([]ast.Node, 0, len(stack)+1)
	path = append(path, operand)
	for i := len(stack) - 1; i >= 0; i-- {
		path = append(path, stack[i])
	}

	v, ok, err := c.cache.ExpressionValue(path, c.ctx, c.transfer)
	if err != nil {
		return err
	}
	if !ok || v != nullness.Null {
		return nil
	}
	c.report(operand.Pos(), fmt.Sprintf("nil %s: %s is always nil here", what, operand.Name))
	return nil
}

// report reports a finding if not ignored or already reported.
func (c *checker) report(pos token.Pos, message string) {
	if c.reported[pos] {
		return
	}
	c.reported[pos] = true

	position := c.pass.Fset.Position(pos)
	if m := c.ignores[position.Filename]; m.shouldIgnore(position.Line) {
		return
	}
	c.pass.Reportf(pos, "%s", message)
}

// isPointerish reports whether the identifier is a variable whose nilness
// makes a dereference meaningful.
func (c *checker) isPointerish(ident *ast.Ident) bool {
	obj, ok := c.pass.TypesInfo.ObjectOf(ident).(*types.Var)
	if !ok {
		return false
	}
	switch obj.Type().Underlying().(type) {
	case *types.Pointer, *types.Interface, *types.Map:
		return true
	}
	return false
}

// isFuncValue reports whether the identifier is a variable of function type,
// as opposed to a declared function, builtin, or type conversion.
func (c *checker) isFuncValue(ident *ast.Ident) bool {
	obj, ok := c.pass.TypesInfo.ObjectOf(ident).(*types.Var)
	if !ok {
		return false
	}
	_, isFunc := obj.Type().Underlying().(*types.Signature)
	return isFunc
}
