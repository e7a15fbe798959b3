package nullness

import (
	"go/ast"
	"go/token"
	"go/types"
	"maps"

	"github.com/dandycheung/error-prone/dataflow/engine"
	"github.com/dandycheung/error-prone/dataflow/graph"
)

// store maps in-scope variables to their nullness at a program point.
type store map[types.Object]Nullness

func (s store) clone() store { return maps.Clone(s) }

// transferKey is the cache identity of a nullness analysis. It captures only
// semantic configuration; the *types.Info handle is auxiliary and must never
// influence cache collisions.
type transferKey struct {
	analysis     string
	paramDefault Nullness
}

// Transfer implements engine.TransferFunction for the nullness lattice.
//
// The rules are deliberately modest: definite facts come from nil literals,
// zero-valued declarations, address-taking, and composite/function literals;
// calls and loads from memory are Nullable. There is no branch-condition
// refinement (`if x != nil`), so facts only ever weaken along a path.
type Transfer struct {
	info *types.Info

	// paramDefault is the assumed nullness of incoming parameters of
	// nilable type. Nullable unless a caller opts into stricter contracts.
	paramDefault Nullness
}

// New returns a nullness transfer function resolving objects through info.
func New(info *types.Info) *Transfer {
	return &Transfer{info: info, paramDefault: Nullable}
}

// CacheKey identifies the analysis configuration. Two Transfers built from
// different *types.Info handles for the same compilation are value-equal.
func (t *Transfer) CacheKey() any {
	return transferKey{analysis: "nullness", paramDefault: t.paramDefault}
}

// EntryStore seeds parameters and receivers with the parameter default and
// named results with their zero value.
func (t *Transfer) EntryStore(u graph.Unit, ctx *graph.Context) engine.Store {
	st := make(store)
	var ftype *ast.FuncType
	switch decl := u.Decl.(type) {
	case *ast.FuncDecl:
		ftype = decl.Type
		if decl.Recv != nil {
			t.seedFields(st, decl.Recv, t.paramDefault)
		}
	case *ast.FuncLit:
		ftype = decl.Type
	default:
		return st
	}
	if ftype.Params != nil {
		t.seedFields(st, ftype.Params, t.paramDefault)
	}
	if ftype.Results != nil {
		// Named results start life as their zero value.
		t.seedFields(st, ftype.Results, Null)
	}
	return st
}

func (t *Transfer) seedFields(st store, fields *ast.FieldList, nilableValue Nullness) {
	for _, field := range fields.List {
		for _, name := range field.Names {
			obj := t.info.Defs[name]
			if obj == nil {
				continue
			}
			if isNilable(obj.Type()) {
				st[obj] = nilableValue
			} else {
				st[obj] = NonNull
			}
		}
	}
}

// Transfer computes the state after one graph node and records an abstract
// value for every expression evaluated along the way.
func (t *Transfer) Transfer(node ast.Node, in engine.Store) engine.Flow {
	st := in.(store)
	vals := make(map[ast.Expr]engine.Value)

	switch n := node.(type) {
	case *ast.AssignStmt:
		return engine.Flow{Out: t.transferAssign(n, st, vals), Values: vals}
	case *ast.DeclStmt:
		return engine.Flow{Out: t.transferDecl(n, st, vals), Values: vals}
	case *ast.ExprStmt:
		t.eval(n.X, st, vals)
	case *ast.ReturnStmt:
		for _, res := range n.Results {
			t.eval(res, st, vals)
		}
	case *ast.IncDecStmt:
		t.eval(n.X, st, vals)
	case *ast.SendStmt:
		t.eval(n.Chan, st, vals)
		t.eval(n.Value, st, vals)
	case ast.Expr:
		// Conditions and other bare expressions lowered into the graph.
		t.eval(n, st, vals)
	default:
		// Statement kinds with no dataflow effect we model (labels,
		// branches, defers). The store passes through unchanged.
	}
	return engine.Flow{Out: st, Values: vals}
}

// Join merges two stores pointwise. A variable missing on one side is
// Bottom there, so the join keeps the other side's fact.
func (t *Transfer) Join(a, b engine.Store) engine.Store {
	sa, sb := a.(store), b.(store)
	out := sa.clone()
	for obj, v := range sb {
		out[obj] = out[obj].LeastUpperBound(v)
	}
	return out
}

// Equal reports pointwise equality of two stores.
func (t *Transfer) Equal(a, b engine.Store) bool {
	return maps.Equal(a.(store), b.(store))
}

func (t *Transfer) transferAssign(n *ast.AssignStmt, st store, vals map[ast.Expr]engine.Value) store {
	out := st.clone()
	if len(n.Lhs) == len(n.Rhs) && (n.Tok == token.ASSIGN || n.Tok == token.DEFINE) {
		for i, lhs := range n.Lhs {
			v := t.eval(n.Rhs[i], st, vals)
			t.assign(out, lhs, v, vals)
		}
		return out
	}
	// Multi-value or compound assignment: evaluate, then weaken each target
	// to its type default.
	for _, rhs := range n.Rhs {
		t.eval(rhs, st, vals)
	}
	for _, lhs := range n.Lhs {
		t.assign(out, lhs, t.typeDefault(lhs), vals)
	}
	return out
}

func (t *Transfer) transferDecl(n *ast.DeclStmt, st store, vals map[ast.Expr]engine.Value) store {
	decl, ok := n.Decl.(*ast.GenDecl)
	if !ok || decl.Tok != token.VAR {
		return st
	}
	out := st.clone()
	for _, s := range decl.Specs {
		spec, ok := s.(*ast.ValueSpec)
		if !ok {
			continue
		}
		for i, name := range spec.Names {
			var v Nullness
			if i < len(spec.Values) {
				v = t.eval(spec.Values[i], st, vals)
			} else if len(spec.Values) > 0 {
				// var a, b = f() style: unknown component values.
				v = t.typeDefault(name)
			} else {
				// Zero value: nil for nilable types.
				v = t.zeroValue(name)
			}
			t.assign(out, name, v, vals)
		}
		for i := len(spec.Names); i < len(spec.Values); i++ {
			t.eval(spec.Values[i], st, vals)
		}
	}
	return out
}

// assign updates the store for an identifier target and records the
// assigned value as the target expression's own abstract value.
func (t *Transfer) assign(out store, lhs ast.Expr, v Nullness, vals map[ast.Expr]engine.Value) {
	ident, ok := lhs.(*ast.Ident)
	if !ok {
		// Writes through selectors, indexes, or derefs are not tracked.
		return
	}
	vals[ident] = v
	if ident.Name == "_" {
		return
	}
	obj := t.info.ObjectOf(ident)
	if obj == nil {
		return
	}
	out[obj] = v
}

// eval computes the abstract value of an expression under st, recording a
// value for the expression and every subexpression it visits.
func (t *Transfer) eval(e ast.Expr, st store, vals map[ast.Expr]engine.Value) Nullness {
	var v Nullness
	switch e := e.(type) {
	case *ast.Ident:
		v = t.evalIdent(e, st)
	case *ast.BasicLit:
		v = NonNull
	case *ast.CompositeLit:
		v = NonNull
	case *ast.FuncLit:
		// The literal value itself is non-nil. Its body is a separate
		// analyzable unit and is not entered here.
		v = NonNull
	case *ast.ParenExpr:
		v = t.eval(e.X, st, vals)
	case *ast.UnaryExpr:
		t.eval(e.X, st, vals)
		if e.Op == token.AND {
			v = NonNull
		} else {
			v = t.typeDefault(e)
		}
	case *ast.BinaryExpr:
		t.eval(e.X, st, vals)
		t.eval(e.Y, st, vals)
		v = t.typeDefault(e)
	case *ast.CallExpr:
		v = t.evalCall(e, st, vals)
	case *ast.SelectorExpr:
		t.eval(e.X, st, vals)
		v = t.typeDefault(e)
	case *ast.StarExpr:
		t.eval(e.X, st, vals)
		v = t.typeDefault(e)
	case *ast.IndexExpr:
		t.eval(e.X, st, vals)
		t.eval(e.Index, st, vals)
		v = t.typeDefault(e)
	case *ast.SliceExpr:
		t.eval(e.X, st, vals)
		v = t.typeDefault(e)
	case *ast.TypeAssertExpr:
		t.eval(e.X, st, vals)
		v = t.typeDefault(e)
	default:
		v = t.typeDefault(e)
	}
	vals[e] = v
	return v
}

func (t *Transfer) evalIdent(e *ast.Ident, st store) Nullness {
	if e.Name == "nil" {
		return Null
	}
	if obj := t.info.ObjectOf(e); obj != nil {
		if v, ok := st[obj]; ok {
			return v
		}
	}
	return t.typeDefault(e)
}

func (t *Transfer) evalCall(e *ast.CallExpr, st store, vals map[ast.Expr]engine.Value) Nullness {
	t.eval(e.Fun, st, vals)
	for _, arg := range e.Args {
		t.eval(arg, st, vals)
	}
	if ident, ok := e.Fun.(*ast.Ident); ok && ident.Name == "new" {
		if _, isBuiltin := t.info.ObjectOf(ident).(*types.Builtin); isBuiltin {
			return NonNull
		}
	}
	// Unknown callee: no contract information.
	return t.typeDefault(e)
}

// typeDefault returns the weakest sound fact for an expression: Nullable for
// nilable types, NonNull otherwise (nilness is meaningless for value types).
func (t *Transfer) typeDefault(e ast.Expr) Nullness {
	var typ types.Type
	if tv, ok := t.info.Types[e]; ok {
		typ = tv.Type
	}
	if typ == nil {
		// Identifiers are often recorded only in Defs/Uses.
		if ident, ok := e.(*ast.Ident); ok {
			if obj := t.info.ObjectOf(ident); obj != nil {
				typ = obj.Type()
			}
		}
	}
	if typ != nil && !isNilable(typ) {
		return NonNull
	}
	return Nullable
}

// zeroValue returns the nullness of a variable's zero value.
func (t *Transfer) zeroValue(name *ast.Ident) Nullness {
	obj := t.info.ObjectOf(name)
	if obj == nil {
		return Nullable
	}
	if isNilable(obj.Type()) {
		return Null
	}
	return NonNull
}

// isNilable reports whether values of the type can be nil.
func isNilable(typ types.Type) bool {
	switch u := typ.Underlying().(type) {
	case *types.Pointer, *types.Interface, *types.Map, *types.Slice, *types.Chan, *types.Signature:
		return true
	case *types.Basic:
		return u.Kind() == types.UnsafePointer || u.Kind() == types.UntypedNil
	default:
		return false
	}
}
