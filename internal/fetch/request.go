package fetch

import (
	"fmt"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/sectional/internal/row"
)

// SortDescriptor names one sort attribute and its direction.
type SortDescriptor struct {
	Key       string
	Ascending bool
}

// Request describes one controller configuration: which objects to match
// and how to order and group them. A Request is immutable after
// construction; changing any field changes the config signature and
// invalidates persisted layouts.
type Request struct {
	// Entity is the object type to query.
	Entity string

	// Predicate is an opaque filter expression evaluated by the query
	// engine. Empty matches everything.
	Predicate string

	// SortDescriptors order the result. At least one is required; without
	// a total order, index paths would not be stable across fetches.
	SortDescriptors []SortDescriptor

	// SectionKeyPath derives section membership. Empty means no grouping:
	// the whole result forms one implicit, unnamed section. When set, it
	// must equal the first sort descriptor's key so that rows arrive
	// grouped by section.
	SectionKeyPath string

	// Locale selects the collation used to order section names. The zero
	// value falls back to und (locale-neutral ordering).
	Locale language.Tag
}

// ConfigurationError reports an invalid Request. It is fatal at controller
// construction; a controller with an invalid request never reaches the
// fetched state.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid fetch request: %s: %s", e.Field, e.Message)
}

// Validate checks the request invariants.
func (r Request) Validate() error {
	if r.Entity == "" {
		return &ConfigurationError{Field: "entity", Message: "entity is required"}
	}
	if len(r.SortDescriptors) == 0 {
		return &ConfigurationError{Field: "sort", Message: "at least one sort descriptor is required"}
	}
	seen := make(map[string]bool, len(r.SortDescriptors))
	for _, d := range r.SortDescriptors {
		if d.Key == "" {
			return &ConfigurationError{Field: "sort", Message: "sort descriptor key must not be empty"}
		}
		if seen[d.Key] {
			return &ConfigurationError{Field: "sort", Message: fmt.Sprintf("duplicate sort descriptor key %q", d.Key)}
		}
		seen[d.Key] = true
	}
	if r.SectionKeyPath != "" && r.SectionKeyPath != r.SortDescriptors[0].Key {
		return &ConfigurationError{
			Field:   "section_key_path",
			Message: fmt.Sprintf("section key path %q must equal the primary sort key %q", r.SectionKeyPath, r.SortDescriptors[0].Key),
		}
	}
	return nil
}

// Grouped reports whether the request partitions results into named
// sections.
func (r Request) Grouped() bool {
	return r.SectionKeyPath != ""
}

// Collator returns the collator that orders section names for this
// request. The zero Locale is language.Und, which gives locale-neutral
// ordering.
func (r Request) Collator() *collate.Collator {
	return collate.New(r.Locale)
}

// Signature computes the content-addressed configuration signature used to
// key and invalidate persisted layouts.
func (r Request) Signature() (string, error) {
	keys := make([]string, len(r.SortDescriptors))
	asc := make([]bool, len(r.SortDescriptors))
	for i, d := range r.SortDescriptors {
		keys[i] = d.Key
		asc[i] = d.Ascending
	}
	return row.ConfigSignature(row.ConfigSignatureFields{
		Entity:          r.Entity,
		Predicate:       r.Predicate,
		SortKeys:        keys,
		SortAscending:   asc,
		SectionKeyPath:  r.SectionKeyPath,
		CollationLocale: r.Locale.String(),
	})
}
