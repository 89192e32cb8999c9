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

var _ repository.SubscriptionRepository = (*SubscriptionRepo)(nil)

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

const subscriptionColumns = `user_id, is_subscribed, plan_id, status, auto_renew,
       trial_start_date, trial_end_date, trial_extended, trial_scans_used,
       monthly_scans_used, billing_period_start, billing_period_end,
       subscription_start_date, subscription_end_date,
       last_payment_date, last_payment_amount, transaction_id, created_at, updated_at`

func (r *SubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}

	s := &model.Subscription{}
	var planID, status string
	var txnID *string
	err = ex.QueryRow(ctx, q, userID).Scan(
		&s.UserID, &s.IsSubscribed, &planID, &status, &s.AutoRenew,
		&s.TrialStartDate, &s.TrialEndDate, &s.TrialExtended, &s.TrialScansUsed,
		&s.MonthlyScansUsed, &s.CurrentBillingPeriodStart, &s.CurrentBillingPeriodEnd,
		&s.SubscriptionStartDate, &s.SubscriptionEndDate,
		&s.LastPaymentDate, &s.LastPaymentAmount, &txnID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.PlanID = model.PlanID(planID)
	s.Status = model.SubscriptionStatus(status)
	if txnID != nil {
		s.TransactionID = *txnID
	}
	return s, nil
}

// Save upserts the whole document. Callers hold the row lock via FindByUser
// inside a transaction, so the upsert cannot clobber a concurrent writer.
func (r *SubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  user_id, is_subscribed, plan_id, status, auto_renew,
  trial_start_date, trial_end_date, trial_extended, trial_scans_used,
  monthly_scans_used, billing_period_start, billing_period_end,
  subscription_start_date, subscription_end_date,
  last_payment_date, last_payment_amount, transaction_id, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (user_id) DO UPDATE SET
  is_subscribed=$2, plan_id=$3, status=$4, auto_renew=$5,
  trial_start_date=$6, trial_end_date=$7, trial_extended=$8, trial_scans_used=$9,
  monthly_scans_used=$10, billing_period_start=$11, billing_period_end=$12,
  subscription_start_date=$13, subscription_end_date=$14,
  last_payment_date=$15, last_payment_amount=$16, transaction_id=$17, updated_at=$19;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		sub.UserID, sub.IsSubscribed, sub.PlanID, sub.Status, sub.AutoRenew,
		sub.TrialStartDate, sub.TrialEndDate, sub.TrialExtended, sub.TrialScansUsed,
		sub.MonthlyScansUsed, sub.CurrentBillingPeriodStart, sub.CurrentBillingPeriodEnd,
		sub.SubscriptionStartDate, sub.SubscriptionEndDate,
		sub.LastPaymentDate, sub.LastPaymentAmount, nullable(sub.TransactionID),
		sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *SubscriptionRepo) ListExpiredSubscriptions(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	const q = `SELECT user_id FROM subscriptions
 WHERE is_subscribed = TRUE AND subscription_end_date <= $1
 ORDER BY subscription_end_date ASC
 LIMIT $2;`
	return r.listUserIDs(ctx, tx, q, now, limit)
}

func (r *SubscriptionRepo) ListExpiredTrials(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	const q = `SELECT user_id FROM subscriptions
 WHERE status = 'trial' AND trial_end_date <= $1
 ORDER BY trial_end_date ASC
 LIMIT $2;`
	return r.listUserIDs(ctx, tx, q, now, limit)
}

func (r *SubscriptionRepo) ListLapsedBillingPeriods(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	const q = `SELECT user_id FROM subscriptions
 WHERE is_subscribed = TRUE AND billing_period_end <= $1
 ORDER BY billing_period_end ASC
 LIMIT $2;`
	return r.listUserIDs(ctx, tx, q, now, limit)
}

func (r *SubscriptionRepo) ListExpiringSoon(ctx context.Context, tx repository.Tx, now, within time.Time, limit int) ([]string, error) {
	const q = `SELECT user_id FROM subscriptions
 WHERE status = 'active' AND subscription_end_date > $1 AND subscription_end_date <= $2
 ORDER BY subscription_end_date ASC
 LIMIT $3;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, now, within, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectUserIDs(rows)
}

func (r *SubscriptionRepo) listUserIDs(ctx context.Context, tx repository.Tx, q string, now time.Time, limit int) ([]string, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, now, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectUserIDs(rows)
}

func collectUserIDs(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = n
	}
	return counts, rows.Err()
}
