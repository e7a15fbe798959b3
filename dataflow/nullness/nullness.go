// Package nullness is a dataflow analysis tracking whether expressions of
// nilable types are nil.
//
// The lattice has four points:
//
//	        Nullable
//	       /        \
//	    Null      NonNull
//	       \        /
//	        Bottom
//
// Bottom means "no information yet" (unreachable, or never assigned);
// Null and NonNull are definite facts; Nullable is the top, "could be
// either". Non-nilable types (basic types, structs, arrays) are always
// NonNull: nilness is meaningless for them, and treating them as NonNull
// keeps the transfer function total.
package nullness

// Nullness is one point of the nullness lattice.
type Nullness uint8

const (
	// Bottom carries no information.
	Bottom Nullness = iota
	// Null means definitely nil on every path reaching this point.
	Null
	// NonNull means definitely not nil on every path reaching this point.
	NonNull
	// Nullable means nil on some paths and not on others.
	Nullable
)

// String returns the conventional name of the lattice point.
func (n Nullness) String() string {
	switch n {
	case Bottom:
		return "bottom"
	case Null:
		return "null"
	case NonNull:
		return "non-null"
	case Nullable:
		return "nullable"
	default:
		return "invalid"
	}
}

// LeastUpperBound joins two lattice points: Bottom is the identity, equal
// points join to themselves, and any disagreement goes to Nullable.
func (n Nullness) LeastUpperBound(o Nullness) Nullness {
	switch {
	case n == o:
		return n
	case n == Bottom:
		return o
	case o == Bottom:
		return n
	default:
		return Nullable
	}
}
