package storage

import (
	"context"
	"fmt"

	"moneta/internal/core"
)

// CreateCategory inserts a category and fills in its id.
func (r *Repository) CreateCategory(ctx context.Context, c *core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name) VALUES (?, ?)`, c.UserID, c.Name)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("category id: %w", err)
	}
	return nil
}

// ListCategories returns a user's categories.
func (r *Repository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateParty inserts a counterparty and fills in its id.
func (r *Repository) CreateParty(ctx context.Context, p *core.Party) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO parties (user_id, name) VALUES (?, ?)`, p.UserID, p.Name)
	if err != nil {
		return fmt.Errorf("create party: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("party id: %w", err)
	}
	return nil
}

// ListParties returns a user's counterparties.
func (r *Repository) ListParties(ctx context.Context, userID int64) ([]core.Party, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name FROM parties WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	var out []core.Party
	for rows.Next() {
		var p core.Party
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
