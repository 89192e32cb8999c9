package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"goshopper-backend/internal/domain/model"
)

func init() {
	register(
		subscriptionsExpiredTotal,
		trialsExpiredTotal,
		billingRolloversTotal,
		subscriptionsTotal,
		quotaDeniedTotal,
		scansConsumedTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Subscriptions transitioned to expired by the sweeper.",
		},
	)

	trialsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trials_expired_total",
			Help: "Trials transitioned to expired by the sweeper.",
		},
	)

	billingRolloversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_rollovers_total",
			Help: "Billing periods rolled forward by the sweeper.",
		},
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by status.",
		},
		[]string{"status"},
	)

	quotaDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_denied_total",
			Help: "Metered actions rejected with resource-exhausted.",
		},
	)

	scansConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_consumed_total",
			Help: "Granted metered scans, labeled by entitlement source.",
		},
		[]string{"source"}, // 'trial', 'subscription'
	)
)

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncTrialsExpired(count int) {
	trialsExpiredTotal.Add(float64(count))
}

func IncBillingRollovers(count int) {
	billingRolloversTotal.Add(float64(count))
}

func IncQuotaDenied() {
	quotaDeniedTotal.Inc()
}

func IncScanConsumed(source string) {
	scansConsumedTotal.WithLabelValues(norm(source)).Inc()
}

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusTrial,
		model.SubscriptionStatusActive,
		model.SubscriptionStatusCancelled,
		model.SubscriptionStatusExpiringSoon,
		model.SubscriptionStatusExpired,
	}
	for _, status := range statuses {
		if count, ok := counts[status]; ok {
			subscriptionsTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}
