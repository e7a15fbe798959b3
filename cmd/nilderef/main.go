// Command nilderef is a static analysis tool that reports dereferences and
// calls of values that are definitely nil.
//
// Usage:
//
//	nilderef ./...
//
// Or as a vet tool:
//
//	go vet -vettool=$(which nilderef) ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/dandycheung/error-prone/nilderef"
)

func main() {
	singlechecker.Main(nilderef.Analyzer)
}
