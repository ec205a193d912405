package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций с lease (значения label "result").
const (
	ResultAcquired = "acquired"
	ResultDenied   = "denied"
	ResultRenewed  = "renewed"
	ResultLost     = "lost"
	ResultError    = "error"
)

var (
	// LeaseAcquireTotal — попытки захвата lease.
	LeaseAcquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coffee_lease_acquire_total",
		Help: "Lease acquisition attempts by result",
	}, []string{"result"})

	// LeaseRenewTotal — попытки продления lease.
	LeaseRenewTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coffee_lease_renew_total",
		Help: "Lease renewal attempts by result",
	}, []string{"result"})

	// LeaseHeld — 1, если этот процесс владеет lease.
	LeaseHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coffee_lease_held",
		Help: "Whether this instance currently holds the scheduler lease",
	})

	// TickDuration — длительность тика планировщика.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coffee_scheduler_tick_duration_seconds",
		Help:    "Duration of scheduler ticks",
		Buckets: prometheus.DefBuckets,
	})

	// TickErrorsTotal — тики, завершившиеся ошибкой, по scope.
	TickErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coffee_scheduler_tick_errors_total",
		Help: "Failed scheduler ticks by scope",
	}, []string{"scope"})

	// CyclesOpenedTotal — открытые окна сбора согласий.
	CyclesOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coffee_cycles_opened_total",
		Help: "Opt-in windows opened by scope",
	}, []string{"scope"})

	// CyclesCommittedTotal — зафиксированные циклы.
	CyclesCommittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coffee_cycles_committed_total",
		Help: "Committed pairing cycles by scope and outcome",
	}, []string{"scope", "outcome"})

	// CycleGroups — количество групп в последнем зафиксированном цикле.
	CycleGroups = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coffee_cycle_groups",
		Help: "Number of groups in the last committed cycle",
	}, []string{"scope"})

	// PairingRepeats — повторные знакомства в результате распределения.
	PairingRepeats = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coffee_pairing_repeats",
		Help:    "Repeated introductions per computed pairing",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})

	// NotificationsTotal — передача результатов в уведомления.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coffee_notifications_total",
		Help: "Notification hand-offs by event and result",
	}, []string{"event", "result"})

	// HTTPRequestDuration — длительность HTTP запросов по маршруту и статусу.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coffee_http_request_duration_seconds",
		Help:    "Duration of HTTP API requests by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
