package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/rohitwebstep/synco-sub000/internal/auth"
)

var ErrAccountNotFound = errors.New("account not found")

type Repository struct {
	db *sqlx.DB

	// Password assigned to auto-provisioned parent accounts.
	parentDefaultPassword string
}

func NewRepository(db *sqlx.DB, parentDefaultPassword string) *Repository {
	return &Repository{db: db, parentDefaultPassword: parentDefaultPassword}
}

func (r *Repository) Create(ctx context.Context, firstName, lastName, email, phone, passwordHash string, roleID int) (*Account, error) {
	query := `
		INSERT INTO accounts (first_name, last_name, email, phone, password_hash, role_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, first_name, last_name, email, phone, password_hash, role_id, created_at
	`

	var a Account
	err := r.db.GetContext(ctx, &a, query, firstName, lastName, strings.ToLower(strings.TrimSpace(email)), phone, passwordHash, roleID)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, password_hash, role_id, created_at
		FROM accounts
		WHERE email = $1
	`

	var a Account
	err := r.db.GetContext(ctx, &a, query, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *Repository) FindByID(ctx context.Context, id int) (*Account, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, password_hash, role_id, created_at
		FROM accounts
		WHERE id = $1
	`

	var a Account
	err := r.db.GetContext(ctx, &a, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *Repository) EmailExists(ctx context.Context, q sqlx.QueryerContext, email string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, err
	}

	return exists, nil
}

// EnsureParentAccount finds or creates a parent login account for the
// self-service booking flow. An existing account keyed by the normalized email
// is updated in place rather than rejected; a new one gets the parent role and
// the default password. Idempotent with respect to the email.
func (r *Repository) EnsureParentAccount(ctx context.Context, tx *sqlx.Tx, firstName, lastName, email, phone string) (*Account, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	var a Account
	err := tx.GetContext(ctx, &a, `
		SELECT id, first_name, last_name, email, phone, password_hash, role_id, created_at
		FROM accounts
		WHERE email = $1
	`, normalized)
	if err == nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE accounts
			SET first_name = $1, last_name = $2, phone = $3
			WHERE id = $4
		`, firstName, lastName, phone, a.ID)
		if err != nil {
			return nil, err
		}
		a.FirstName = firstName
		a.LastName = lastName
		a.Phone = phone
		return &a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(r.parentDefaultPassword)
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &a, `
		INSERT INTO accounts (first_name, last_name, email, phone, password_hash, role_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, first_name, last_name, email, phone, password_hash, role_id, created_at
	`, firstName, lastName, normalized, phone, passwordHash, RoleParent)
	if err != nil {
		return nil, err
	}

	return &a, nil
}
