package nilderef

// Package-level initializers are analyzable units of their own; each spec is
// analyzed separately.

var defaultBox = &box{}

var defaultN = defaultBox.n // fine: package-level state is nullable, not nil

var describe = func(b *box) int {
	var inner *box
	return inner.n // want `nil dereference: inner is always nil here`
}
