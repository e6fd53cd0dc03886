package venue

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrVenueNotFound = errors.New("venue not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, req CreateVenueRequest) (*Venue, error) {
	query := `
		INSERT INTO venues (name, area, address, postcode, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, area, address, postcode, latitude, longitude, created_at
	`

	var v Venue
	err := r.db.GetContext(ctx, &v, query, req.Name, req.Area, req.Address, req.Postcode, req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

func (r *Repository) GetAll(ctx context.Context) ([]Venue, error) {
	query := `
		SELECT id, name, area, address, postcode, latitude, longitude, created_at
		FROM venues
		ORDER BY created_at DESC
	`

	var venues []Venue
	err := r.db.SelectContext(ctx, &venues, query)
	if err != nil {
		return nil, err
	}

	return venues, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Venue, error) {
	query := `
		SELECT id, name, area, address, postcode, latitude, longitude, created_at
		FROM venues
		WHERE id = $1
	`

	var v Venue
	err := r.db.GetContext(ctx, &v, query, id)
	if err != nil {
		return nil, ErrVenueNotFound
	}

	return &v, nil
}
