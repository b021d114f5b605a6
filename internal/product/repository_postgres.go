package product

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CountByIDs counts matching rows. id is the primary key so duplicates in
// ids cannot inflate the result. An empty slice returns 0 without a query.
func (r *PostgresRepository) CountByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE id = ANY($1::text[])`, pq.Array(ids)).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepository) FindSummaries(ctx context.Context, ids []string) ([]Summary, error) {
	if len(ids) == 0 {
		return []Summary{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, selling_price, COALESCE(image_url, ''), COALESCE(category, '')
		FROM products WHERE id = ANY($1::text[])
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.SellingPrice, &s.ImageURL, &s.Category); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
