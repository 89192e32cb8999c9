package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `transaction_id, user_id, plan_id, provider, amount, currency, duration_months,
       stripe_payment_intent_id, moko_reference, status, failure_note, created_at, updated_at, completed_at`

func (r *PaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  transaction_id, user_id, plan_id, provider, amount, currency, duration_months,
  stripe_payment_intent_id, moko_reference, status, failure_note, created_at, updated_at, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		p.TransactionID, p.UserID, p.PlanID, p.Provider, p.Amount, p.Currency, p.DurationMonths,
		nullable(p.StripePaymentIntentID), nullable(p.MokoReference), p.Status, nullable(p.FailureNote),
		p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *PaymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.findOne(ctx, tx, q, transactionID)
}

func (r *PaymentRepo) FindByProviderReference(ctx context.Context, tx repository.Tx, reference string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
 WHERE stripe_payment_intent_id=$1 OR moko_reference=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.findOne(ctx, tx, q, reference)
}

func (r *PaymentRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.Payment, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanPayment(ex.QueryRow(ctx, q, arg))
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var planID, provider, status string
	var intentID, mokoRef, note *string
	err := row.Scan(&p.TransactionID, &p.UserID, &planID, &provider, &p.Amount, &p.Currency,
		&p.DurationMonths, &intentID, &mokoRef, &status, &note, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.PlanID = model.PlanID(planID)
	p.Provider = model.PaymentProvider(provider)
	p.Status = model.PaymentStatus(status)
	if intentID != nil {
		p.StripePaymentIntentID = *intentID
	}
	if mokoRef != nil {
		p.MokoReference = *mokoRef
	}
	if note != nil {
		p.FailureNote = *note
	}
	return p, nil
}

func (r *PaymentRepo) SetProviderReference(ctx context.Context, tx repository.Tx, transactionID string, p *model.Payment) error {
	const q = `UPDATE payments
  SET stripe_payment_intent_id=COALESCE($2, stripe_payment_intent_id),
      moko_reference=COALESCE($3, moko_reference),
      updated_at=NOW()
 WHERE transaction_id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, transactionID, nullable(p.StripePaymentIntentID), nullable(p.MokoReference))
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, transactionID string, status model.PaymentStatus, note string, completedAt *time.Time) error {
	const q = `UPDATE payments
  SET status=$2, failure_note=COALESCE($3, failure_note),
      completed_at=COALESCE($4, completed_at), updated_at=NOW()
 WHERE transaction_id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, transactionID, status, nullable(note), completedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
 WHERE status='pending' AND created_at < $1
 ORDER BY created_at ASC
 LIMIT $2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// nullable maps "" to NULL so COALESCE-based updates keep existing values.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
