package nilderef

type box struct {
	n    int
	next *box
}

func zeroValue() int {
	var b *box
	return b.n // want `nil dereference: b is always nil here`
}

func assignedNil() {
	b := &box{}
	_ = b.n // fine: freshly allocated
	b = nil
	_ = b.n // want `nil dereference: b is always nil here`
}

func reassigned() {
	var b *box
	b = &box{}
	_ = b.n // fine: non-nil on the only path
}

func branchy(cond bool) int {
	var b *box
	if cond {
		b = &box{}
	}
	return b.n // fine: nullable, not definitely nil
}

func bothBranchesNil(cond bool) int {
	var b *box
	if cond {
		b = nil
	}
	return b.n // want `nil dereference: b is always nil here`
}

func deref() int {
	var p *int
	return *p // want `nil dereference: p is always nil here`
}

func nilFunc() {
	var f func()
	f() // want `nil call: f is always nil here`
}

func assignedFunc() {
	f := func() {}
	f() // fine
}

func insideLambda() {
	f := func() int {
		var b *box
		return b.n // want `nil dereference: b is always nil here`
	}
	_ = f()
}

func loop(n int) {
	b := &box{}
	for i := 0; i < n; i++ {
		_ = b.n // fine: nullable after the back edge, never definitely nil
		b = b.next
	}
}

func param(b *box) int {
	return b.n // fine: parameters are assumed nullable, not nil
}
