package rewards

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// метрики

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_ledger_operations_total",
			Help: "Кол-во операций с баллами",
		},
		[]string{"op", "result"},
	)

	pointsMoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_points_total",
			Help: "Сумма начисленных и списанных баллов",
		},
		[]string{"type"},
	)

	fraudFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rewards_fraud_flags_total",
			Help: "Кол-во флагов мошенничества",
		},
		[]string{"severity"},
	)

	negativeBalances = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rewards_negative_balance_total",
			Help: "Кол-во чтений отрицательного баланса",
		},
	)
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ledgerOperations.WithLabelValues(op, result).Inc()
}
