// Package row defines the minimal identity-bearing representation of a
// matched object: a stable identifier, its section key (if the controller
// groups results), and the values of the attributes used for sorting.
//
// RowIdentity is the unit of exchange between the query engine boundary,
// the diff engine, and the layout cache. Identity comparisons use the ID
// alone; "needs update" comparisons use the tracked-attribute digest; move
// detection uses the sort-value tuple.
//
// The package also computes content-addressed configuration signatures via
// SHA-256 with domain separation over canonical JSON (sorted keys, NFC
// normalized strings, no HTML escaping). A signature change invalidates any
// persisted layout for that cache name.
package row
