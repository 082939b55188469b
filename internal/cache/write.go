package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sectional/internal/diff"
	"github.com/roach88/sectional/internal/layout"
)

// Store atomically replaces the whole layout for a cache name. The
// replacement is a single transaction: a reader never observes a partially
// written layout.
func (c *Cache) Store(ctx context.Context, name, signature string, l layout.Layout) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &CacheIOError{Op: "store: begin tx", Err: err}
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO layouts (cache_name, config_signature, grouped, updated_seq)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(cache_name) DO UPDATE SET
			config_signature = excluded.config_signature,
			grouped = excluded.grouped,
			updated_seq = updated_seq + 1
	`, name, signature, l.Grouped()); err != nil {
		return &CacheIOError{Op: "store: upsert layout", Err: err}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM layout_sections WHERE cache_name = ?`, name); err != nil {
		return &CacheIOError{Op: "store: clear sections", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM layout_rows WHERE cache_name = ?`, name); err != nil {
		return &CacheIOError{Op: "store: clear rows", Err: err}
	}

	for si, s := range l.Sections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO layout_sections (cache_name, position, name)
			VALUES (?, ?, ?)
		`, name, si, string(s.Name)); err != nil {
			return &CacheIOError{Op: "store: insert section", Err: err}
		}
		for ri, r := range s.Rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO layout_rows (cache_name, section_position, position, object_id)
				VALUES (?, ?, ?, ?)
			`, name, si, ri, string(r.ID)); err != nil {
				return &CacheIOError{Op: "store: insert row", Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &CacheIOError{Op: "store: commit", Err: err}
	}
	return nil
}

// ApplyEvents replays one diff cycle's events against the persisted
// layout for a cache name, inside a single transaction. Later events'
// index paths depend on earlier events having been applied; replaying them
// in order against the durable state keeps it exactly in step with the
// in-memory cursor that produced them.
//
// RowUpdate events are no-ops here: only identity and order are persisted.
func (c *Cache) ApplyEvents(ctx context.Context, name string, events []diff.ChangeEvent) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &CacheIOError{Op: "apply: begin tx", Err: err}
	}
	defer tx.Rollback()

	for _, ev := range events {
		switch e := ev.(type) {
		case diff.SectionInsert:
			err = applySectionInsert(ctx, tx, name, e.Index, string(e.Name))
		case diff.SectionDelete:
			err = applySectionDelete(ctx, tx, name, e.Index)
		case diff.RowInsert:
			err = applyRowInsert(ctx, tx, name, e.Path.Section, e.Path.Row, string(e.Row.ID))
		case diff.RowDelete:
			err = applyRowDelete(ctx, tx, name, e.Path.Section, e.Path.Row)
		case diff.RowMove:
			if err = applyRowDelete(ctx, tx, name, e.From.Section, e.From.Row); err == nil {
				err = applyRowInsert(ctx, tx, name, e.To.Section, e.To.Row, string(e.Row.ID))
			}
		case diff.RowUpdate:
			// Attribute state is not persisted.
		default:
			err = fmt.Errorf("unknown event type %T", ev)
		}
		if err != nil {
			return &CacheIOError{Op: fmt.Sprintf("apply %s", ev), Err: err}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE layouts SET updated_seq = updated_seq + 1 WHERE cache_name = ?`, name); err != nil {
		return &CacheIOError{Op: "apply: bump seq", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &CacheIOError{Op: "apply: commit", Err: err}
	}
	return nil
}

// shiftSections renumbers section positions at or after from by delta
// (+1 or -1), in both layout_sections and layout_rows. The two-step
// sign flip avoids transient primary-key collisions during the shift.
func shiftSections(ctx context.Context, tx *sql.Tx, name string, from, delta int) error {
	steps := []struct {
		query string
		args  []any
	}{
		{`UPDATE layout_sections SET position = -(position + ?) WHERE cache_name = ? AND position >= ?`, []any{delta, name, from}},
		{`UPDATE layout_sections SET position = -position WHERE cache_name = ? AND position < 0`, []any{name}},
		{`UPDATE layout_rows SET section_position = -(section_position + ?) WHERE cache_name = ? AND section_position >= ?`, []any{delta, name, from}},
		{`UPDATE layout_rows SET section_position = -section_position WHERE cache_name = ? AND section_position < 0`, []any{name}},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return err
		}
	}
	return nil
}

// shiftRows renumbers row positions at or after from within one section.
func shiftRows(ctx context.Context, tx *sql.Tx, name string, section, from, delta int) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE layout_rows SET position = -(position + ?)
		WHERE cache_name = ? AND section_position = ? AND position >= ?
	`, delta, name, section, from); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE layout_rows SET position = -position
		WHERE cache_name = ? AND section_position = ? AND position < 0
	`, name, section)
	return err
}

func applySectionInsert(ctx context.Context, tx *sql.Tx, name string, at int, sectionName string) error {
	if err := shiftSections(ctx, tx, name, at, 1); err != nil {
		return fmt.Errorf("shift sections: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO layout_sections (cache_name, position, name) VALUES (?, ?, ?)
	`, name, at, sectionName); err != nil {
		return fmt.Errorf("insert section: %w", err)
	}
	return nil
}

func applySectionDelete(ctx context.Context, tx *sql.Tx, name string, at int) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM layout_rows WHERE cache_name = ? AND section_position = ?
	`, name, at); err != nil {
		return fmt.Errorf("delete section rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM layout_sections WHERE cache_name = ? AND position = ?
	`, name, at); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	if err := shiftSections(ctx, tx, name, at+1, -1); err != nil {
		return fmt.Errorf("shift sections: %w", err)
	}
	return nil
}

func applyRowInsert(ctx context.Context, tx *sql.Tx, name string, section, at int, objectID string) error {
	if err := shiftRows(ctx, tx, name, section, at, 1); err != nil {
		return fmt.Errorf("shift rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO layout_rows (cache_name, section_position, position, object_id)
		VALUES (?, ?, ?, ?)
	`, name, section, at, objectID); err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

func applyRowDelete(ctx context.Context, tx *sql.Tx, name string, section, at int) error {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM layout_rows WHERE cache_name = ? AND section_position = ? AND position = ?
	`, name, section, at)
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete row: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete row: no row at section %d position %d", section, at)
	}
	if err := shiftRows(ctx, tx, name, section, at+1, -1); err != nil {
		return fmt.Errorf("shift rows: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
