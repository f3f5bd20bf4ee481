package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/model"
)

// pinSelect joins each pin with its author so a pin is always returned whole.
const pinSelect = `
	SELECT p.id, p.title, p.image, p.content, p.latitude, p.longitude, p.created_at,
	       u.id, u.name, u.email, u.picture, u.created_at
	FROM pins p
	JOIN users u ON u.id = p.author_id`

// CreatePin inserts pin for pin.Author.ID.
//
// The author must exist; the foreign key rejects anything else, which we report
// as NotFound for the user rather than a raw constraint error.
func (db *DB) CreatePin(ctx context.Context, pin *model.Pin) error {
	author, err := db.GetByID(ctx, pin.Author.ID)
	if err != nil {
		return err
	}

	pin.ID = xid.New().String()
	pin.CreatedAt = time.Now().UTC()
	pin.Author = *author
	pin.Comments = []model.Comment{}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO pins (id, title, image, content, latitude, longitude, author_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pin.ID,
		pin.Title,
		pin.Image,
		pin.Content,
		pin.Latitude,
		pin.Longitude,
		pin.Author.ID,
		pin.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting pin: %w", err)
	}

	return nil
}

// GetPin returns one pin with its author and comments.
func (db *DB) GetPin(ctx context.Context, id string) (*model.Pin, error) {
	row := db.conn.QueryRowContext(ctx, pinSelect+` WHERE p.id = ?`, id)

	pin, err := scanPin(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("pin", id)
		}
		return nil, fmt.Errorf("sqlite: getting pin %s: %w", id, err)
	}

	comments, err := db.commentsFor(ctx, []string{pin.ID})
	if err != nil {
		return nil, err
	}
	pin.Comments = comments[pin.ID]
	if pin.Comments == nil {
		pin.Comments = []model.Comment{}
	}

	return pin, nil
}

// ListPins returns all pins oldest first, the order clients append them in.
func (db *DB) ListPins(ctx context.Context) ([]model.Pin, error) {
	rows, err := db.conn.QueryContext(ctx, pinSelect+` ORDER BY p.created_at ASC, p.rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing pins: %w", err)
	}
	defer rows.Close()

	pins := []model.Pin{}
	for rows.Next() {
		pin, err := scanPin(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning pin: %w", err)
		}
		pins = append(pins, *pin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating pins: %w", err)
	}

	if len(pins) == 0 {
		return pins, nil
	}

	ids := make([]string, len(pins))
	for i := range pins {
		ids[i] = pins[i].ID
	}
	comments, err := db.commentsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range pins {
		if c, ok := comments[pins[i].ID]; ok {
			pins[i].Comments = c
		} else {
			pins[i].Comments = []model.Comment{}
		}
	}

	return pins, nil
}

// DeletePin removes a pin; its comments go with it (ON DELETE CASCADE).
func (db *DB) DeletePin(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM pins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting pin %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("pin", id)
	}

	return nil
}

// AddComment stores comment under pinID and returns the refreshed pin.
func (db *DB) AddComment(ctx context.Context, pinID string, comment model.Comment) (*model.Pin, error) {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (pin_id, author_id, text, created_at) VALUES (?, ?, ?, ?)`,
		pinID,
		comment.Author.ID,
		comment.Text,
		comment.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return nil, apperror.NotFound("pin", pinID)
		}
		return nil, fmt.Errorf("sqlite: inserting comment on pin %s: %w", pinID, err)
	}

	return db.GetPin(ctx, pinID)
}

// commentsFor loads comments for the given pins keyed by pin ID, oldest first.
func (db *DB) commentsFor(ctx context.Context, pinIDs []string) (map[string][]model.Comment, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(pinIDs)), ",")
	args := make([]any, len(pinIDs))
	for i, id := range pinIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.pin_id, c.text, c.created_at, u.id, u.name, u.email, u.picture, u.created_at
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.pin_id IN (`+placeholders+`)
		 ORDER BY c.id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading comments: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.Comment)
	for rows.Next() {
		var pinID string
		var c model.Comment
		if err := rows.Scan(
			&pinID,
			&c.Text,
			&c.CreatedAt,
			&c.Author.ID,
			&c.Author.Name,
			&c.Author.Email,
			&c.Author.Picture,
			&c.Author.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment: %w", err)
		}
		out[pinID] = append(out[pinID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return out, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPin(s scanner) (*model.Pin, error) {
	var p model.Pin
	err := s.Scan(
		&p.ID,
		&p.Title,
		&p.Image,
		&p.Content,
		&p.Latitude,
		&p.Longitude,
		&p.CreatedAt,
		&p.Author.ID,
		&p.Author.Name,
		&p.Author.Email,
		&p.Author.Picture,
		&p.Author.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
