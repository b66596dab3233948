package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the claims engine.
// Tracks claim lifecycle counts, stake flow and command durations.
type Metrics struct {
	ClaimsProposed  *prometheus.CounterVec
	VouchesCast     *prometheus.CounterVec
	ClaimsResolved  *prometheus.CounterVec
	StakeEscrowed   prometheus.Counter
	StakeReturned   prometheus.Counter
	StakeSlashed    prometheus.Counter
	CommandDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance registered with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClaimsProposed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "knomee_claims_proposed_total",
			Help: "Claims created, by claim type",
		}, []string{"type"}),
		VouchesCast: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "knomee_vouches_cast_total",
			Help: "Vouches recorded, by side",
		}, []string{"side"}),
		ClaimsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "knomee_claims_resolved_total",
			Help: "Claims moved to a terminal status, by type and status",
		}, []string{"type", "status"}),
		StakeEscrowed: factory.NewCounter(prometheus.CounterOpts{
			Name: "knomee_stake_escrowed_total",
			Help: "Stake moved into custody by proposals and vouches",
		}),
		StakeReturned: factory.NewCounter(prometheus.CounterOpts{
			Name: "knomee_stake_returned_total",
			Help: "Stake returned to winning voters on settlement",
		}),
		StakeSlashed: factory.NewCounter(prometheus.CounterOpts{
			Name: "knomee_stake_slashed_total",
			Help: "Stake forfeited by losing voters on settlement",
		}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "knomee_claims_command_duration_seconds",
			Help:    "Duration of claims engine commands",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"command"}),
	}
}

func (m *Metrics) IncrementProposed(claimType string, stake uint64) {
	m.ClaimsProposed.WithLabelValues(claimType).Inc()
	m.StakeEscrowed.Add(float64(stake))
}

func (m *Metrics) IncrementVouch(supports bool, stake uint64) {
	side := "against"
	if supports {
		side = "for"
	}
	m.VouchesCast.WithLabelValues(side).Inc()
	m.StakeEscrowed.Add(float64(stake))
}

func (m *Metrics) IncrementResolved(claimType, status string) {
	m.ClaimsResolved.WithLabelValues(claimType, status).Inc()
}

// ObserveSettlement records where a settled stake went.
func (m *Metrics) ObserveSettlement(returned, slashed uint64) {
	m.StakeReturned.Add(float64(returned))
	m.StakeSlashed.Add(float64(slashed))
}

// ObserveCommand records the duration of a command.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCommand(command string, start time.Time) {
	m.CommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}
