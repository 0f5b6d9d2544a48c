package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrShoeNotFound = errors.New("shoe not found")

type Repository interface {
	GetShoe(ctx context.Context, id uint) (*Shoe, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetShoe(ctx context.Context, id uint) (*Shoe, error) {
	query := `
		SELECT id, name, price, offer_price, available
		FROM shoes
		WHERE id = $1
	`

	var s Shoe
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &s.Name, &s.Price, &s.OfferPrice, &s.Available)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShoeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query shoe %d: %w", id, err)
	}

	return &s, nil
}
