package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the metrics registry.
type Config struct {
	Enabled     bool
	Addr        string
	ServiceName string
	Environment string
}

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

const (
	LineStateOverdue    = "overdue"
	LineStateEndsToday  = "ends_today"
	LineStateEndingSoon = "ending_soon"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	rentalCommits  *prometheus.CounterVec
	reservations   *prometheus.CounterVec
	ledgerPostings *prometheus.CounterVec
	cashMovements  *prometheus.CounterVec
	linesDue       *prometheus.GaugeVec
}

// New builds the domain instruments and registers them on registerer.
func New(cfg Config, registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabels(cfg)

	m := &Metrics{
		rentalCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "equiprent_rental_commits_total",
			Help:        "Rental commits by operation and result.",
			ConstLabels: constLabels,
		}, []string{"operation", "result"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "equiprent_equipment_reservations_total",
			Help:        "Equipment reservation attempts by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		ledgerPostings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "equiprent_ledger_postings_total",
			Help:        "Service record writes by source type.",
			ConstLabels: constLabels,
		}, []string{"source_type"}),
		cashMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "equiprent_cash_movements_total",
			Help:        "Payments applied by direction.",
			ConstLabels: constLabels,
		}, []string{"direction"}),
		linesDue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "equiprent_rental_lines_due",
			Help:        "Active rental line items by due state at the last scan.",
			ConstLabels: constLabels,
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{m.rentalCommits, m.reservations, m.ledgerPostings, m.cashMovements, m.linesDue} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "equiprent"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

// RecordRentalCommit counts a create/update/delete/finalize commit.
func (m *Metrics) RecordRentalCommit(operation, result string) {
	if m == nil {
		return
	}
	m.rentalCommits.WithLabelValues(operation, result).Inc()
}

// RecordReservation counts an equipment reservation attempt.
func (m *Metrics) RecordReservation(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
}

// RecordLedgerPosting counts a service record write.
func (m *Metrics) RecordLedgerPosting(sourceType string) {
	if m == nil {
		return
	}
	m.ledgerPostings.WithLabelValues(strings.TrimSpace(sourceType)).Inc()
}

// RecordCashMovement counts an applied payment.
func (m *Metrics) RecordCashMovement(direction string) {
	if m == nil {
		return
	}
	m.cashMovements.WithLabelValues(strings.TrimSpace(direction)).Inc()
}

// SetLinesDue publishes the latest due-scan count for state.
func (m *Metrics) SetLinesDue(state string, count int) {
	if m == nil {
		return
	}
	m.linesDue.WithLabelValues(state).Set(float64(count))
}
