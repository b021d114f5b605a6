package push

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

const (
	upsertSubscriptionQuery = `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, browser, device, last_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (endpoint) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			browser = EXCLUDED.browser,
			device = EXCLUDED.device,
			last_active = EXCLUDED.last_active
		WHERE push_subscriptions.user_id <> EXCLUDED.user_id
	`
	deleteSubscriptionQuery = `DELETE FROM push_subscriptions WHERE endpoint = $1`
	listSubscriptionsQuery  = `
		SELECT id, user_id, endpoint, p256dh, auth, browser, device, last_active, created_at
		FROM push_subscriptions
		WHERE user_id = ANY($1::text[])
	`
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, sub Subscription) (bool, error) {
	res, err := r.db.ExecContext(ctx, upsertSubscriptionQuery,
		sub.ID, sub.UserID, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth,
		sub.Browser, sub.Device, sub.LastActive, sub.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := r.db.ExecContext(ctx, deleteSubscriptionQuery, endpoint)
	return err
}

func (r *PostgresRepository) ListByUserIDs(ctx context.Context, userIDs []string) ([]Subscription, error) {
	if len(userIDs) == 0 {
		return []Subscription{}, nil
	}

	rows, err := r.db.QueryContext(ctx, listSubscriptionsQuery, pq.Array(userIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]Subscription, 0)
	for rows.Next() {
		var s Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.Keys.P256dh, &s.Keys.Auth,
			&s.Browser, &s.Device, &s.LastActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
