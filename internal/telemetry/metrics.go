// Package telemetry keeps the prometheus metrics of deposits, transaction
// lifecycles, vault snapshots and the signing service.
package telemetry

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultdeposit/internal/vault"
)

type Registry struct {
	registry         *prometheus.Registry
	txTransitions    *prometheus.CounterVec
	txConfirmSeconds *prometheus.HistogramVec
	depositsTotal    *prometheus.CounterVec
	signaturesTotal  *prometheus.CounterVec
	vaultValues      *prometheus.GaugeVec
	vaultBlock       prometheus.Gauge
}

func NewRegistry() *Registry {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultdeposit_tx_transitions_total",
		Help: "Transaction lifecycle transitions by kind and state",
	}, []string{"kind", "state"})

	confirm := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaultdeposit_tx_confirm_seconds",
		Help:    "Time from broadcast to a final receipt",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"kind"})

	deposits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultdeposit_deposits_total",
		Help: "Deposit attempts by outcome",
	}, []string{"status"})

	signatures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultdeposit_signatures_total",
		Help: "Signing requests served by the remote signer",
	}, []string{"status"})

	values := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vaultdeposit_vault_value",
		Help: "Last observed vault metrics in token units (balance in shares)",
	}, []string{"field"})

	block := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vaultdeposit_vault_block",
		Help: "Block the last vault snapshot was read at",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(transitions, confirm, deposits, signatures, values, block)

	return &Registry{
		registry:         r,
		txTransitions:    transitions,
		txConfirmSeconds: confirm,
		depositsTotal:    deposits,
		signaturesTotal:  signatures,
		vaultValues:      values,
		vaultBlock:       block,
	}
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnTransition makes the registry a vault.Observer.
func (m *Registry) OnTransition(_ context.Context, t vault.Transition) {
	m.txTransitions.WithLabelValues(string(t.Kind), string(t.State)).Inc()
	if t.State.Final() && t.Elapsed > 0 {
		m.txConfirmSeconds.WithLabelValues(string(t.Kind)).Observe(t.Elapsed.Seconds())
	}
}

// ObserveDeposit counts a finished deposit attempt by its error kind.
func (m *Registry) ObserveDeposit(err error) {
	m.depositsTotal.WithLabelValues(depositStatus(err)).Inc()
}

func (m *Registry) ObserveSignature(status string) {
	m.signaturesTotal.WithLabelValues(status).Inc()
}

func (m *Registry) SetVaultMetrics(snapshot *vault.Metrics, decimals int32) {
	for _, f := range snapshot.Fields(decimals) {
		m.vaultValues.WithLabelValues(f.Name).Set(f.Value.InexactFloat64())
	}
	m.vaultBlock.Set(float64(snapshot.BlockNumber))
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func depositStatus(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, vault.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, vault.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, vault.ErrApprovalFailed):
		return "approval_failed"
	case errors.Is(err, vault.ErrDepositFailed):
		return "deposit_failed"
	case errors.Is(err, vault.ErrNetwork):
		return "network"
	default:
		return "error"
	}
}
