package admin

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

const listRecipientIDsQuery = `
	SELECT id
	FROM admin_users
	WHERE is_active = TRUE AND role = ANY($1::text[])
	ORDER BY id
`

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListRecipientIDs(ctx context.Context, roles []Role) ([]string, error) {
	if len(roles) == 0 {
		return []string{}, nil
	}

	rows, err := r.db.QueryContext(ctx, listRecipientIDsQuery, pq.Array(roleStrings(roles)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
