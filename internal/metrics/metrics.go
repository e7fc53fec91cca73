// Package metrics counts what beaconctl commands did. Collectors live on a
// private registry that a run can push to a Pushgateway when it ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Bidon15/beaconctl/internal/ledger"
	"github.com/Bidon15/beaconctl/internal/wallet"
)

const namespace = "beaconctl"

// Outcome label values.
const (
	OutcomeDeployed    = "deployed"
	OutcomeReused      = "reused"
	OutcomeTransferred = "transferred"
	OutcomeSkipped     = "skipped"
	OutcomeOK          = "ok"
	OutcomeError       = "error"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	deployments     *prometheus.CounterVec
	fundings        *prometheus.CounterVec
	documents       prometheus.Counter
	commandDuration *prometheus.HistogramVec
}

var _ ledger.Observer = (*Metrics)(nil)

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Contract get-or-deploy calls by outcome.",
		}, []string{"network", "outcome"}),
		fundings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fundings_total",
			Help:      "Funding protocol runs by outcome.",
		}, []string{"network", "outcome"}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descriptor_documents_written_total",
			Help:      "Descriptor documents written.",
		}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command run time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command", "outcome"}),
	}
	m.registry.MustRegister(m.deployments, m.fundings, m.documents, m.commandDuration)
	return m
}

// Registry returns the registry the collectors are on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Deployed(rec ledger.Record) {
	m.deployments.WithLabelValues(rec.Network, OutcomeDeployed).Inc()
}

func (m *Metrics) Reused(rec ledger.Record) {
	m.deployments.WithLabelValues(rec.Network, OutcomeReused).Inc()
}

// Funded records the result of wallet.Fund.
func (m *Metrics) Funded(network string, res *wallet.FundResult) {
	outcome := OutcomeSkipped
	if res != nil && res.Transferred {
		outcome = OutcomeTransferred
	}
	m.fundings.WithLabelValues(network, outcome).Inc()
}

// DocumentsWritten adds n published documents.
func (m *Metrics) DocumentsWritten(n int) {
	m.documents.Add(float64(n))
}

// ObserveCommand records how long command took and whether it failed.
func (m *Metrics) ObserveCommand(command string, took time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.commandDuration.WithLabelValues(command, outcome).Observe(took.Seconds())
}

// Push sends every collector to the Pushgateway at url under job, grouped by
// run so concurrent runs do not replace each other.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	p := push.New(url, job).Gatherer(m.registry)
	if runID != "" {
		p = p.Grouping("run", runID)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
