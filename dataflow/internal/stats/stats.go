// Package stats instruments the dataflow cache.
//
// The single-slot graph cache rests on an assumed traversal order ("all
// analyses for a unit finish before the next unit is visited"). Violating
// the order is harmless for correctness but silently destroys reuse, so the
// hit/miss counters here are the signal to watch before touching the policy.
package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Counters aggregates cache effectiveness over one traversal.
type Counters struct {
	GraphHits      uint64
	GraphMisses    uint64
	AnalysisHits   uint64
	AnalysisMisses uint64
	// Invalidations counts graph slot swaps that actually dropped cached
	// analyses.
	Invalidations uint64
}

// GraphHitRate returns hits over total graph lookups, or 0 with no lookups.
func (c Counters) GraphHitRate() float64 {
	return rate(c.GraphHits, c.GraphMisses)
}

// AnalysisHitRate returns hits over total analysis lookups, or 0 with no
// lookups.
func (c Counters) AnalysisHitRate() float64 {
	return rate(c.AnalysisHits, c.AnalysisMisses)
}

func rate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Tracer writes one line per cache event. A nil Tracer discards everything,
// so call sites need no guards.
type Tracer struct {
	w io.Writer
}

// NewTracer returns a tracer writing to w, or nil when w is nil.
func NewTracer(w io.Writer) *Tracer {
	if w == nil {
		return nil
	}
	return &Tracer{w: w}
}

// Event writes a single trace line: "dataflow: <kind> key=<digest>".
func (t *Tracer) Event(kind string, keyParts ...string) {
	if t == nil {
		return
	}
	fmt.Fprintf(t.w, "dataflow: %s key=%s\n", kind, Digest(keyParts...))
}

// Digest returns a compact stable fingerprint of the given key parts,
// suitable for correlating trace lines without printing syntax nodes.
func Digest(parts ...string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(parts, "\x00")))
}
