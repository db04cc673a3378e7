package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herafy/marketplace/internal/domain/payment"
)

const (
	getPaymentSQL = `SELECT id, order_id, user_id, method, amount, status, transaction_id, error_message, created_at
		FROM payments WHERE id = $1`

	getPaymentForUpdateSQL = getPaymentSQL + ` FOR UPDATE`

	getPaymentByOrderSQL = `SELECT id, order_id, user_id, method, amount, status, transaction_id, error_message, created_at
		FROM payments WHERE order_id = $1`

	insertPaymentSQL = `INSERT INTO payments (id, order_id, user_id, method, amount, status, transaction_id, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updatePaymentSQL = `UPDATE payments SET status = $2, transaction_id = $3, error_message = $4 WHERE id = $1`
)

// uniqueViolation is the PostgreSQL error code raised by the UNIQUE
// constraint on payments.order_id.
const uniqueViolation = "23505"

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// GetByID returns the payment, or payment.ErrNotFound.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*payment.Payment, error) {
	return r.get(ctx, getPaymentSQL, id)
}

// GetForUpdate returns the payment locking its row until the surrounding
// transaction ends.
func (r *PaymentRepository) GetForUpdate(ctx context.Context, id string) (*payment.Payment, error) {
	return r.get(ctx, getPaymentForUpdateSQL, id)
}

// GetByOrderID returns the payment linked to the order, or
// payment.ErrNotFound.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*payment.Payment, error) {
	return r.get(ctx, getPaymentByOrderSQL, orderID)
}

func (r *PaymentRepository) get(ctx context.Context, query, arg string) (*payment.Payment, error) {
	rows, err := db(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting payment %q: %w", arg, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment %q: %w", arg, err)
	}
	return &p, nil
}

// Create persists a new payment. The unique constraint on order_id turns a
// concurrent double-create into payment.ErrDuplicate.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := db(ctx, r.pool).Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, p.UserID, p.Method, p.Amount, string(p.Status),
		p.TransactionID, p.ErrorMessage, p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return payment.ErrDuplicate
		}
		return fmt.Errorf("creating payment %q: %w", p.ID, err)
	}
	return nil
}

// Update writes back the payment status and provider report.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	tag, err := db(ctx, r.pool).Exec(ctx, updatePaymentSQL,
		p.ID, string(p.Status), p.TransactionID, p.ErrorMessage)
	if err != nil {
		return fmt.Errorf("updating payment %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrNotFound
	}
	return nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p      payment.Payment
		status string
	)
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Method, &p.Amount, &status,
		&p.TransactionID, &p.ErrorMessage, &p.CreatedAt)
	p.Status = payment.Status(status)
	return p, err
}
