package ordermode

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	selectModeQuery = `
		SELECT is_quick_active, is_scheduled_active, updated_by, created_at, updated_at
		FROM order_modes
		WHERE singleton_key = $1
	`
	insertDefaultModeQuery = `
		INSERT INTO order_modes (singleton_key, is_quick_active, is_scheduled_active, created_at, updated_at)
		VALUES ($1, TRUE, TRUE, $2, $2)
		ON CONFLICT (singleton_key) DO NOTHING
	`
	upsertModeQuery = `
		INSERT INTO order_modes (singleton_key, is_quick_active, is_scheduled_active, updated_by, created_at, updated_at)
		VALUES ($1, COALESCE($2, TRUE), COALESCE($3, TRUE), $4, $5, $5)
		ON CONFLICT (singleton_key) DO UPDATE
		SET is_quick_active = COALESCE($2, order_modes.is_quick_active),
			is_scheduled_active = COALESCE($3, order_modes.is_scheduled_active),
			updated_by = COALESCE($4, order_modes.updated_by),
			updated_at = $5
		RETURNING is_quick_active, is_scheduled_active, updated_by, created_at, updated_at
	`
)

type rowScanner interface {
	Scan(dest ...any) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate reads first and only inserts when the row is missing. The
// insert is ON CONFLICT DO NOTHING, so a racing creator loses quietly and
// both callers read back the same row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, now time.Time) (OrderMode, error) {
	m, err := scanMode(r.db.QueryRowContext(ctx, selectModeQuery, SingletonKey))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return OrderMode{}, err
	}

	if _, err := r.db.ExecContext(ctx, insertDefaultModeQuery, SingletonKey, now); err != nil {
		return OrderMode{}, err
	}
	return scanMode(r.db.QueryRowContext(ctx, selectModeQuery, SingletonKey))
}

func (r *PostgresRepository) Update(ctx context.Context, p Patch, now time.Time) (OrderMode, error) {
	quick := sql.NullBool{}
	if p.IsQuickActive != nil {
		quick = sql.NullBool{Bool: *p.IsQuickActive, Valid: true}
	}
	scheduled := sql.NullBool{}
	if p.IsScheduledActive != nil {
		scheduled = sql.NullBool{Bool: *p.IsScheduledActive, Valid: true}
	}
	updatedBy := sql.NullString{String: p.UpdatedBy, Valid: p.UpdatedBy != ""}

	return scanMode(r.db.QueryRowContext(ctx, upsertModeQuery, SingletonKey, quick, scheduled, updatedBy, now))
}

func scanMode(row rowScanner) (OrderMode, error) {
	var (
		m         OrderMode
		updatedBy sql.NullString
	)
	if err := row.Scan(&m.IsQuickActive, &m.IsScheduledActive, &updatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return OrderMode{}, err
	}
	if updatedBy.Valid {
		m.UpdatedBy = &updatedBy.String
	}
	return m, nil
}
