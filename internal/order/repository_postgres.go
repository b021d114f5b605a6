package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	orderColumns = `id, user_id, name, mobile, items, total_amount, status, transaction_id,
		payment_method, delivery_status, order_type, delivery_slot, delivery_address,
		otp_hash, otp_issued_at, created_at, updated_at`

	uniqueViolation = "23505"
)

var (
	insertOrderQuery = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	selectOrderByIDQuery  = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	listOrdersQuery       = `SELECT ` + orderColumns + ` FROM orders`
	transactionExistQuery = `SELECT EXISTS(SELECT 1 FROM orders WHERE transaction_id = $1)`
	deleteOrderQuery      = `DELETE FROM orders WHERE id = $1`
	setOTPQuery           = `UPDATE orders SET otp_hash = $2, otp_issued_at = $3, updated_at = $3 WHERE id = $1`
	clearOTPQuery         = `
		UPDATE orders SET otp_hash = NULL, otp_issued_at = NULL, updated_at = $3
		WHERE id = $1 AND otp_hash = $2
	`
	countOrdersQuery         = `SELECT COUNT(*) FROM orders`
	countOrdersByStatusQuery = `SELECT COUNT(*) FROM orders WHERE delivery_status = $1`
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

func (r *PostgresRepository) Create(ctx context.Context, o Order) (Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, err
	}
	address, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return Order{}, err
	}

	_, err = r.db.ExecContext(ctx, insertOrderQuery,
		o.ID, o.User, nullString(o.Name), nullString(o.Mobile), items, o.TotalAmount,
		o.Status, o.TransactionID, o.PaymentMethod, o.DeliveryStatus, o.OrderType,
		o.DeliverySlot, address, o.OTPHash, o.OTPIssuedAt, o.CreatedAt, o.UpdatedAt,
	)
	if isDuplicateTransaction(err) {
		return Order{}, ErrDuplicateTransaction
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, selectOrderByIDQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	var (
		conds []string
		args  []any
	)
	where := func(column string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.Status != "" {
		where("status", f.Status)
	}
	if f.PaymentMethod != "" {
		where("payment_method", f.PaymentMethod)
	}
	if f.DeliveryStatus != "" {
		where("delivery_status", f.DeliveryStatus)
	}

	query := listOrdersQuery
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *PostgresRepository) TransactionExists(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, transactionExistQuery, transactionID).Scan(&exists)
	return exists, err
}

// Update builds the SET list from the non-nil patch fields so that a
// delivery-status change and its forced payment status land in the same
// statement.
func (r *PostgresRepository) Update(ctx context.Context, id string, p Patch, now time.Time) (Order, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.User != nil {
		add("user_id", *p.User)
	}
	if p.Items != nil {
		items, err := json.Marshal(p.Items)
		if err != nil {
			return Order{}, err
		}
		add("items", items)
	}
	if p.TotalAmount != nil {
		add("total_amount", *p.TotalAmount)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.PaymentMethod != nil {
		add("payment_method", *p.PaymentMethod)
	}
	if p.DeliveryStatus != nil {
		add("delivery_status", *p.DeliveryStatus)
	}
	if p.DeliveryAddress != nil {
		address, err := json.Marshal(p.DeliveryAddress)
		if err != nil {
			return Order{}, err
		}
		add("delivery_address", address)
	}
	add("updated_at", now)

	args = append(args, id)
	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), orderColumns)

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteOrderQuery, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepository) SetOTP(ctx context.Context, id, hash string, issuedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, setOTPQuery, id, hash, issuedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepository) ClearOTP(ctx context.Context, id, hash string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, clearOTPQuery, id, hash, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) Count(ctx context.Context, status DeliveryStatus) (int, error) {
	var (
		n   int
		err error
	)
	if status == "" {
		err = r.db.QueryRowContext(ctx, countOrdersQuery).Scan(&n)
	} else {
		err = r.db.QueryRowContext(ctx, countOrdersByStatusQuery, status).Scan(&n)
	}
	return n, err
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o                   Order
		name, mobile        sql.NullString
		slot, otpHash       sql.NullString
		otpIssuedAt         sql.NullTime
		itemsRaw, addrRaw   []byte
		status, method      string
		delivery, orderType string
	)
	err := row.Scan(&o.ID, &o.User, &name, &mobile, &itemsRaw, &o.TotalAmount, &status,
		&o.TransactionID, &method, &delivery, &orderType, &slot, &addrRaw,
		&otpHash, &otpIssuedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
		return Order{}, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(addrRaw, &o.DeliveryAddress); err != nil {
		return Order{}, fmt.Errorf("decode address of order %s: %w", o.ID, err)
	}

	o.Name, o.Mobile = name.String, mobile.String
	o.Status = PaymentStatus(status)
	o.PaymentMethod = PaymentMethod(method)
	o.DeliveryStatus = DeliveryStatus(delivery)
	o.OrderType = Type(orderType)
	if slot.Valid {
		o.DeliverySlot = &slot.String
	}
	if otpHash.Valid {
		o.OTPHash = &otpHash.String
	}
	if otpIssuedAt.Valid {
		o.OTPIssuedAt = &otpIssuedAt.Time
	}
	return o, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isDuplicateTransaction(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "transaction_id")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
