// Package oracle implements the attestation oracle collaborators: a polling
// client that drives requests through their state machine, the HTTP oracle
// service, and an in-memory signing stub for development and tests.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sethvargo/go-retry"

	"github.com/ruteri/content-attestation-engine/cryptoutils"
	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/metrics"
)

// Default client parameters, used for zero config fields.
const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxInterval = 30 * time.Second
	DefaultCeiling         = 5 * time.Minute
	DefaultStalenessWindow = 10 * time.Minute
)

// ClientConfig configures the oracle client.
type ClientConfig struct {
	// PollInterval is the pause between healthy status polls and the base
	// interval for exponential backoff on transient errors.
	PollInterval time.Duration

	// PollMaxInterval caps the transient-error backoff.
	PollMaxInterval time.Duration

	// Ceiling is the wall-clock budget for one request, submission included.
	// A request that is not terminal when the ceiling elapses times out
	// regardless of backoff state.
	Ceiling time.Duration

	// StalenessWindow bounds how old a report's issue timestamp may be
	// before the report is flagged stale. Stale reports are accepted and
	// flagged, not rejected.
	StalenessWindow time.Duration

	// AuthorizedSigners are the oracle addresses allowed to sign reports.
	AuthorizedSigners []common.Address

	// OnTransition, if set, observes every request state change.
	OnTransition func(interfaces.AttestationRequest)

	Log *slog.Logger
}

// Result is the outcome of an attestation request that reached a terminal
// state. Report and Anchors are set only when the request finalized.
type Result struct {
	Request interfaces.AttestationRequest
	Report  *interfaces.OracleReport
	Anchors []interfaces.ChainAnchor

	// Stale flags a report whose issue timestamp fell outside the staleness
	// window. The report is validated and usable regardless.
	Stale bool
}

// Client drives attestation requests against an oracle service. Transient
// oracle errors are absorbed with exponential backoff up to the wall-clock
// ceiling; validation failures reject the request and are never retried.
type Client struct {
	service interfaces.OracleService
	cfg     ClientConfig
	log     *slog.Logger

	nudge chan struct{}
}

// NewClient creates an oracle client. Zero config fields fall back to the
// package defaults.
func NewClient(service interfaces.OracleService, cfg ClientConfig) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollMaxInterval <= 0 {
		cfg.PollMaxInterval = DefaultPollMaxInterval
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultCeiling
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &Client{
		service: service,
		cfg:     cfg,
		log:     cfg.Log,
		nudge:   make(chan struct{}, 1),
	}
}

// Nudge triggers an immediate status poll on in-flight requests instead of
// waiting out the current poll interval. Callers wired to oracle push
// notifications use it to cut finalization latency.
func (c *Client) Nudge() {
	select {
	case c.nudge <- struct{}{}:
	default:
	}
}

// Attest submits a document to the oracle and drives the request to a
// terminal state. It blocks until the request finalizes, is rejected, hits
// the wall-clock ceiling, or ctx is canceled. The returned result always
// carries the request with its terminal state; a rejected or timed out
// request is returned together with the error describing why.
func (c *Client) Attest(ctx context.Context, documentID interfaces.DocumentID, locator interfaces.ContentLocator) (*Result, error) {
	req := interfaces.AttestationRequest{
		DocumentID: documentID,
		Locator:    locator,
	}
	c.transition(&req, interfaces.StateCreated)

	ctx, cancel := context.WithDeadline(ctx, time.Now().Add(c.cfg.Ceiling))
	defer cancel()

	requestID, err := c.submit(ctx, documentID, locator)
	if err != nil {
		return c.finish(&req, err)
	}

	req.RequestID = requestID
	req.SubmittedAt = time.Now().UTC()
	c.transition(&req, interfaces.StateSubmitted)
	c.transition(&req, interfaces.StatePolling)

	return c.poll(ctx, &req)
}

func (c *Client) transition(req *interfaces.AttestationRequest, state interfaces.RequestState) {
	req.State = state
	c.log.Debug("attestation request state change",
		slog.String("request_id", req.RequestID),
		slog.String("document_id", req.DocumentID.String()),
		slog.String("state", state.String()))

	if c.cfg.OnTransition != nil {
		c.cfg.OnTransition(*req)
	}
}

// finish settles a request that cannot proceed. The ceiling elapsing times
// the request out, caller cancellation abandons it as-is, and anything else
// rejects it.
func (c *Client) finish(req *interfaces.AttestationRequest, err error) (*Result, error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.transition(req, interfaces.StateTimedOut)
		return &Result{Request: *req}, &interfaces.TimeoutError{
			Op:      "attestation of document " + req.DocumentID.String(),
			Ceiling: c.cfg.Ceiling,
		}
	case errors.Is(err, context.Canceled):
		return &Result{Request: *req}, err
	default:
		c.transition(req, interfaces.StateRejected)
		return &Result{Request: *req}, err
	}
}

func (c *Client) backoff() retry.Backoff {
	backoff := retry.NewExponential(c.cfg.PollInterval)
	backoff = retry.WithCappedDuration(c.cfg.PollMaxInterval, backoff)
	backoff = retry.WithJitterPercent(10, backoff)
	return backoff
}

func (c *Client) submit(ctx context.Context, documentID interfaces.DocumentID, locator interfaces.ContentLocator) (string, error) {
	var requestID string
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		id, err := c.service.Submit(ctx, documentID, locator)
		if err != nil {
			if interfaces.IsTransient(err) {
				c.log.Warn("transient oracle submit error, retrying", "document_id", documentID.String(), "err", err)
				metrics.IncOracleRetry()
				return retry.RetryableError(err)
			}
			return err
		}
		requestID = id
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("submitting attestation request: %w", err)
	}

	return requestID, nil
}

func (c *Client) poll(ctx context.Context, req *interfaces.AttestationRequest) (*Result, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := c.pollOnce(ctx, req.RequestID)
		if err != nil {
			return c.finish(req, err)
		}

		switch status.State {
		case interfaces.OracleStatusFinalized:
			return c.acceptReport(req, status)

		case interfaces.OracleStatusRejected:
			reason := status.Reason
			if reason == "" {
				reason = "oracle rejected the request"
			}
			return c.finish(req, &interfaces.ValidationError{Field: "request", Reason: reason})

		case interfaces.OracleStatusPending:
			// Keep polling.

		default:
			return c.finish(req, &interfaces.ValidationError{
				Field:  "state",
				Reason: fmt.Sprintf("oracle returned unknown state %q", status.State),
			})
		}

		select {
		case <-ctx.Done():
			return c.finish(req, ctx.Err())
		case <-ticker.C:
		case <-c.nudge:
			c.log.Debug("nudged, polling early", slog.String("request_id", req.RequestID))
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, requestID string) (interfaces.OracleStatus, error) {
	var status interfaces.OracleStatus
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		metrics.IncOraclePoll()
		s, err := c.service.Status(ctx, requestID)
		if err != nil {
			if interfaces.IsTransient(err) {
				c.log.Warn("transient oracle status error, retrying", "request_id", requestID, "err", err)
				metrics.IncOracleRetry()
				return retry.RetryableError(err)
			}
			return err
		}
		status = s
		return nil
	})
	if err != nil {
		return interfaces.OracleStatus{}, fmt.Errorf("polling oracle status: %w", err)
	}

	return status, nil
}

// acceptReport validates a finalized report before the client accepts it.
// Any validation failure rejects the request; a mismatch is never silently
// accepted and a rejected request is never retried.
func (c *Client) acceptReport(req *interfaces.AttestationRequest, status interfaces.OracleStatus) (*Result, error) {
	report := status.Report
	if report == nil {
		return c.finish(req, &interfaces.ValidationError{Field: "report", Reason: "oracle finalized without a report"})
	}

	if report.RequestID != req.RequestID {
		return c.finish(req, &interfaces.ValidationError{
			Field:  "request_id",
			Reason: fmt.Sprintf("report names request %q, expected %q", report.RequestID, req.RequestID),
		})
	}

	if !report.ReportedDigest.Equal(req.DocumentID) {
		return c.finish(req, &interfaces.ValidationError{
			Field:  "reported_digest",
			Reason: fmt.Sprintf("oracle reported digest %s, submitted document is %s", report.ReportedDigest, req.DocumentID),
		})
	}

	if err := cryptoutils.VerifyReportSignature(report, c.cfg.AuthorizedSigners); err != nil {
		return c.finish(req, &interfaces.ValidationError{Field: "signature", Reason: err.Error()})
	}

	stale := false
	if age := time.Since(report.IssuedAt); age > c.cfg.StalenessWindow {
		stale = true
		c.log.Warn("oracle report is stale, accepting flagged",
			slog.String("request_id", req.RequestID),
			slog.Duration("age", age),
			slog.Duration("staleness_window", c.cfg.StalenessWindow))
	}

	c.transition(req, interfaces.StateFinalized)

	return &Result{
		Request: *req,
		Report:  report,
		Anchors: status.Anchors,
		Stale:   stale,
	}, nil
}
