package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MetaUpdate carries generated text. A nil or empty field leaves the stored
// value untouched.
type MetaUpdate struct {
	AltText     *string
	Title       *string
	Description *string
}

func present(s *string) bool { return s != nil && *s != "" }

// ApplyUpdate writes the alt text on its own, then title and description
// together in a single statement.
func (s *Store) ApplyUpdate(ctx context.Context, id int64, u MetaUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback on error

	now := time.Now().UTC()

	if present(u.AltText) {
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE attachments SET alt_text = ?, updated_at = ? WHERE id = ?`),
			*u.AltText, now, id)
		if err != nil {
			return fmt.Errorf("could not update alt text for %d: %w", id, err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
	}

	var (
		sets []string
		args []any
	)
	if present(u.Description) {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if present(u.Title) {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, now, id)
		q := `UPDATE attachments SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
		res, err := tx.ExecContext(ctx, s.rebind(q), args...)
		if err != nil {
			return fmt.Errorf("could not update attachment %d: %w", id, err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
	}

	return tx.Commit()
}
