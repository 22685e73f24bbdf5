// Package metrics exposes Prometheus-format counters for the attestation
// pipeline and runs the standalone metrics HTTP server.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	vm "github.com/VictoriaMetrics/metrics"

	"github.com/ruteri/content-attestation-engine/common"
)

var (
	attestationsStarted = vm.NewCounter("attestations_started_total")
	oraclePolls         = vm.NewCounter("oracle_polls_total")
	oracleRetries       = vm.NewCounter("oracle_poll_retries_total")
)

// IncAttestationStarted counts a new attestation entering the pipeline.
func IncAttestationStarted() {
	attestationsStarted.Inc()
}

// IncAttestationFinished counts a finished attestation by outcome
// (confirmed, failed, rejected, timed_out).
func IncAttestationFinished(outcome string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`attestations_finished_total{outcome=%q}`, outcome)).Inc()
}

// IncOraclePoll counts one status poll against the oracle.
func IncOraclePoll() {
	oraclePolls.Inc()
}

// IncOracleRetry counts a transient oracle error absorbed by backoff.
func IncOracleRetry() {
	oracleRetries.Inc()
}

// IncLedgerPoll counts one transaction status query against a ledger.
func IncLedgerPoll(chainID string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`ledger_polls_total{chain=%q}`, chainID)).Inc()
}

// IncLedgerError counts a failed ledger query.
func IncLedgerError(chainID string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`ledger_poll_errors_total{chain=%q}`, chainID)).Inc()
}

// IncVerification counts a verification run by verdict (VERIFIED, FAILED).
func IncVerification(verdict string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`verifications_total{verdict=%q}`, verdict)).Inc()
}

// MetricsServer serves the /metrics endpoint on its own listen address,
// separate from the API server.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given service name and listen address.
func New(name, addr string) (*MetricsServer, error) {
	vm.GetOrCreateGauge(fmt.Sprintf(`build_info{service=%q,version=%q}`, name, common.Version), func() float64 {
		return 1
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vm.WritePrometheus(w, true)
	})

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving metrics until Shutdown or a listener error.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
