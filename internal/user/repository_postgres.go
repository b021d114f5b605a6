package user

import (
	"context"
	"database/sql"
)

const (
	userExistsQuery = `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`
	countUsersQuery = `SELECT COUNT(*) FROM users`
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, userExistsQuery, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countUsersQuery).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
