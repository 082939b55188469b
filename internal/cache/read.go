package cache

import (
	"context"

	"github.com/roach88/sectional/internal/layout"
	"github.com/roach88/sectional/internal/row"
)

// Load returns the last durable layout for a cache name, or an empty
// layout if none exists or the stored configuration signature differs
// from the given one (the configuration changed, so the persisted layout
// no longer describes this controller's result shape).
//
// Restored identities carry only what was persisted: stable key, section
// name, and order. Sort values and attribute digests are recomputed from
// the next fresh fetch.
func (c *Cache) Load(ctx context.Context, name, signature string) (layout.Layout, error) {
	var storedSig string
	var grouped bool
	err := c.db.QueryRowContext(ctx,
		`SELECT config_signature, grouped FROM layouts WHERE cache_name = ?`, name,
	).Scan(&storedSig, &grouped)
	if err != nil {
		if isNoRows(err) {
			return layout.Layout{}, nil
		}
		return layout.Layout{}, &CacheIOError{Op: "load", Err: err}
	}
	if storedSig != signature {
		return layout.Layout{}, nil
	}

	sections, err := c.loadSections(ctx, name, grouped)
	if err != nil {
		return layout.Layout{}, err
	}
	return layout.Layout{Sections: sections}, nil
}

// loadSections rebuilds the stored section and row order. The grouped
// flag restores section membership; a grouped section key may legitimately
// be the empty string, so the name alone cannot tell the two apart.
func (c *Cache) loadSections(ctx context.Context, name string, grouped bool) ([]layout.Section, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT position, name FROM layout_sections WHERE cache_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, &CacheIOError{Op: "load sections", Err: err}
	}
	defer rows.Close()

	var sections []layout.Section
	for rows.Next() {
		var pos int
		var sectionName string
		if err := rows.Scan(&pos, &sectionName); err != nil {
			return nil, &CacheIOError{Op: "load sections", Err: err}
		}
		sections = append(sections, layout.Section{Name: row.SectionKey(sectionName)})
	}
	if err := rows.Err(); err != nil {
		return nil, &CacheIOError{Op: "load sections", Err: err}
	}

	rowRows, err := c.db.QueryContext(ctx,
		`SELECT section_position, object_id FROM layout_rows
		 WHERE cache_name = ? ORDER BY section_position, position`, name)
	if err != nil {
		return nil, &CacheIOError{Op: "load rows", Err: err}
	}
	defer rowRows.Close()

	for rowRows.Next() {
		var sectionPos int
		var objectID string
		if err := rowRows.Scan(&sectionPos, &objectID); err != nil {
			return nil, &CacheIOError{Op: "load rows", Err: err}
		}
		if sectionPos < 0 || sectionPos >= len(sections) {
			return nil, &CacheIOError{Op: "load rows", Err: &layout.InvariantError{
				Message: "row references a section position outside the stored layout",
			}}
		}
		s := &sections[sectionPos]
		s.Rows = append(s.Rows, row.RowIdentity{
			ID:         row.StableKey(objectID),
			HasSection: grouped,
			Section:    s.Name,
		})
	}
	if err := rowRows.Err(); err != nil {
		return nil, &CacheIOError{Op: "load rows", Err: err}
	}

	return sections, nil
}

// Info describes one persisted cache entry, signature included. The
// administrative surface uses it to dump a layout without knowing the
// controller configuration that produced it.
type Info struct {
	CacheName  string
	Signature  string
	UpdatedSeq int64
	Layout     layout.Layout
}

// Inspect returns the persisted entry for a cache name regardless of its
// configuration signature. The second return is false when the name has
// no persisted layout.
func (c *Cache) Inspect(ctx context.Context, name string) (Info, bool, error) {
	info := Info{CacheName: name}
	var grouped bool
	err := c.db.QueryRowContext(ctx,
		`SELECT config_signature, grouped, updated_seq FROM layouts WHERE cache_name = ?`, name,
	).Scan(&info.Signature, &grouped, &info.UpdatedSeq)
	if err != nil {
		if isNoRows(err) {
			return Info{}, false, nil
		}
		return Info{}, false, &CacheIOError{Op: "inspect", Err: err}
	}

	sections, err := c.loadSections(ctx, name, grouped)
	if err != nil {
		return Info{}, false, err
	}
	info.Layout = layout.Layout{Sections: sections}
	return info, true, nil
}

// UpdatedSeq returns the number of writes applied to a cache name, or 0 if
// the name has no persisted layout. Used by the administrative surface.
func (c *Cache) UpdatedSeq(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := c.db.QueryRowContext(ctx,
		`SELECT updated_seq FROM layouts WHERE cache_name = ?`, name,
	).Scan(&seq)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, &CacheIOError{Op: "read seq", Err: err}
	}
	return seq, nil
}
