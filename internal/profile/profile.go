// Package profile loads YAML fetch profiles and validates them against an
// embedded CUE schema. Profiles are the admin CLI's way of describing a
// query configuration outside of code.
package profile

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sectional/internal/fetch"
)

// SortKey is one sort descriptor in a profile file.
type SortKey struct {
	Key       string `yaml:"key" json:"key"`
	Ascending bool   `yaml:"ascending" json:"ascending"`
}

// Profile is the on-disk description of a query configuration.
type Profile struct {
	Name           string    `yaml:"name" json:"name"`
	Entity         string    `yaml:"entity" json:"entity"`
	Predicate      string    `yaml:"predicate" json:"predicate"`
	Sort           []SortKey `yaml:"sort" json:"sort"`
	SectionKeyPath string    `yaml:"section_key_path" json:"section_key_path"`
	CacheName      string    `yaml:"cache_name" json:"cache_name"`
	Locale         string    `yaml:"locale" json:"locale"`
}

// Load reads and decodes a profile file. Unknown fields are rejected so a
// typo in a key name fails loudly instead of silently dropping the value.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}

	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", path, err)
	}
	return p, nil
}

// Request converts the profile into a fetch request. The locale must be a
// well-formed BCP 47 tag; an empty locale means unspecified ordering
// (language.Und).
func (p Profile) Request() (fetch.Request, error) {
	var tag language.Tag
	if p.Locale != "" {
		var err error
		tag, err = language.Parse(p.Locale)
		if err != nil {
			return fetch.Request{}, &fetch.ConfigurationError{
				Field:   "locale",
				Message: fmt.Sprintf("invalid BCP 47 tag %q: %v", p.Locale, err),
			}
		}
	}

	descs := make([]fetch.SortDescriptor, len(p.Sort))
	for i, s := range p.Sort {
		descs[i] = fetch.SortDescriptor{Key: s.Key, Ascending: s.Ascending}
	}

	return fetch.Request{
		Entity:          p.Entity,
		Predicate:       p.Predicate,
		SortDescriptors: descs,
		SectionKeyPath:  p.SectionKeyPath,
		Locale:          tag,
	}, nil
}
