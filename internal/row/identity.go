package row

import "fmt"

// StableKey is the unique identifier of an object within a result set.
type StableKey string

// SectionKey names a section derived from the configured section key path.
type SectionKey string

// IndexPath addresses a row within a sectioned layout.
type IndexPath struct {
	Section int
	Row     int
}

// String formats an index path as "(section,row)".
func (p IndexPath) String() string {
	return fmt.Sprintf("(%d,%d)", p.Section, p.Row)
}

// SortKind distinguishes the scalar types a sort value can carry.
type SortKind int

const (
	// SortString is a string-valued sort attribute.
	SortString SortKind = iota + 1
	// SortInt is an integer-valued sort attribute.
	SortInt
	// SortFloat is a float-valued sort attribute.
	SortFloat
	// SortBool is a boolean-valued sort attribute.
	SortBool
)

// SortValue is a tagged scalar holding one sort-descriptor attribute value.
// Exactly the field matching Kind is meaningful; the zero value is invalid.
type SortValue struct {
	Kind SortKind
	Str  string
	Int  int64
	F    float64
	Bool bool
}

// String creates a string sort value.
func String(s string) SortValue { return SortValue{Kind: SortString, Str: s} }

// Int creates an integer sort value.
func Int(i int64) SortValue { return SortValue{Kind: SortInt, Int: i} }

// Float creates a float sort value.
func Float(f float64) SortValue { return SortValue{Kind: SortFloat, F: f} }

// Bool creates a boolean sort value.
func Bool(b bool) SortValue { return SortValue{Kind: SortBool, Bool: b} }

// Equal reports whether two sort values carry the same kind and payload.
func (v SortValue) Equal(o SortValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case SortString:
		return v.Str == o.Str
	case SortInt:
		return v.Int == o.Int
	case SortFloat:
		return v.F == o.F
	case SortBool:
		return v.Bool == o.Bool
	default:
		return false
	}
}

// RowIdentity is a comparable, copyable representation of a matched object.
//
// Equality for identity purposes is by ID alone. Equality for "needs
// update" purposes compares AttrDigest. SortValues must keep the same arity
// and type signature as the configured sort descriptors for the lifetime of
// the owning controller.
type RowIdentity struct {
	// ID is unique within the result set at any instant.
	ID StableKey

	// HasSection reports whether Section is meaningful. A controller with
	// no section key path produces identities with HasSection false; the
	// whole result is then one implicit, unnamed section.
	HasSection bool

	// Section is the value derived from the configured section key path.
	Section SectionKey

	// SortValues holds the configured sort-descriptor attribute values in
	// descriptor order.
	SortValues []SortValue

	// AttrDigest is a content hash over the tracked non-sort attributes.
	// Rows loaded from a persisted layout have an empty digest (attribute
	// values are not persisted, only identity and order).
	AttrDigest string
}

// SortChanged reports whether the sort-value tuples of two identities for
// the same object differ. An arity or type mismatch counts as changed; the
// caller validates arity against the configured descriptors separately.
func SortChanged(old, next RowIdentity) bool {
	if len(old.SortValues) != len(next.SortValues) {
		return true
	}
	for i := range old.SortValues {
		if !old.SortValues[i].Equal(next.SortValues[i]) {
			return true
		}
	}
	return false
}

// NeedsUpdate reports whether the tracked non-sort attributes changed
// between two identities for the same object. Identities carried forward
// from a persisted layout have no digest; they never report an update
// (attribute state is unknown, and fabricating updates would be wrong).
func NeedsUpdate(old, next RowIdentity) bool {
	if old.AttrDigest == "" || next.AttrDigest == "" {
		return false
	}
	return old.AttrDigest != next.AttrDigest
}

// SameSection reports whether two identities belong to the same section.
func SameSection(a, b RowIdentity) bool {
	if a.HasSection != b.HasSection {
		return false
	}
	if !a.HasSection {
		return true
	}
	return a.Section == b.Section
}
