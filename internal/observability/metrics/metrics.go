package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "hivegrid_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	settlementTotal   *prometheus.CounterVec
	settlementLatency *prometheus.HistogramVec
	settlementNet     prometheus.Counter

	depositTotal  *prometheus.CounterVec
	withdrawTotal *prometheus.CounterVec

	registryMutations *prometheus.CounterVec
)

// Init registers observability metrics.
func Init() {
	registerOnce.Do(func() {
		settlementTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlements_total",
				Help: "Total settlement submissions by result",
			},
			[]string{"result"},
		)
		settlementLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_latency_seconds",
				Help:    "Settlement submission latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		settlementNet = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_slots_settled_total",
				Help: "Total (meter, slot) pairs marked settled",
			},
		)
		depositTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escrow_deposits_total",
				Help: "Total escrow deposits by result",
			},
			[]string{"result"},
		)
		withdrawTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escrow_withdrawals_total",
				Help: "Total escrow withdrawals by result",
			},
			[]string{"result"},
		)
		registryMutations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "registry_mutations_total",
				Help: "Total registry mutations by registry, operation and result",
			},
			[]string{"registry", "operation", "result"},
		)

		prometheus.MustRegister(
			settlementTotal,
			settlementLatency,
			settlementNet,
			depositTotal,
			withdrawTotal,
			registryMutations,
		)
	})
}

func resultLabel(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// ObserveSettlement records one settlement submission.
func ObserveSettlement(start time.Time, err error) {
	if settlementTotal == nil {
		return
	}
	result := resultLabel(err)
	settlementTotal.WithLabelValues(result).Inc()
	settlementLatency.WithLabelValues(result).Observe(time.Since(start).Seconds())
	if err == nil {
		settlementNet.Inc()
	}
}

// ObserveDeposit records one escrow deposit attempt.
func ObserveDeposit(err error) {
	if depositTotal == nil {
		return
	}
	depositTotal.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveWithdrawal records one escrow withdrawal attempt.
func ObserveWithdrawal(err error) {
	if withdrawTotal == nil {
		return
	}
	withdrawTotal.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveRegistryMutation records one registry mutation attempt.
func ObserveRegistryMutation(registry, operation string, err error) {
	if registryMutations == nil {
		return
	}
	registryMutations.WithLabelValues(registry, operation, resultLabel(err)).Inc()
}
