package nilderef

func suppressedPrevLine() int {
	var b *box
	//nilderef:ignore
	return b.n
}

func suppressedSameLine() int {
	var b *box
	return b.n //nilderef:ignore
}

func unusedDirective() {
	b := &box{}
	_ = b.n /*nilderef:ignore*/ // want `unused nilderef:ignore directive`
}
