package nilderef_test

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/dandycheung/error-prone/nilderef"
)

func TestAnalyzer(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, nilderef.Analyzer, "nilderef")
}
