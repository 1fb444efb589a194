// Package sink delivers relay payloads to the downstream HTTP endpoint.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultTimeout caps a single delivery attempt end to end.
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes bounds how much of a sink response is read for diagnostics.
	maxBodyBytes = 64 << 10

	// logBodyLimit truncates response bodies in log output.
	logBodyLimit = 512
)

// OutcomeKind classifies the result of one delivery attempt.
type OutcomeKind int

const (
	// Success: sink answered with a 2xx status.
	Success OutcomeKind = iota
	// Rejected: sink was reachable but answered with a non-2xx status.
	Rejected
	// NetworkFailure: the sink could not be reached (timeout, refused, DNS).
	NetworkFailure
	// UnexpectedFailure: anything else went wrong before or during the attempt.
	UnexpectedFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Rejected:
		return "rejected"
	case NetworkFailure:
		return "network_failure"
	default:
		return "unexpected_failure"
	}
}

// Outcome is the classified result of Deliver. Status and Body are set
// only when the sink responded; Err only for failure kinds.
type Outcome struct {
	Kind   OutcomeKind
	Status int
	Body   string
	Err    error
}

// Client posts payloads to a single configured sink URL.
// Safe for concurrent use; the underlying http.Client pools connections.
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a delivery client for the given sink URL.
// A timeout of 0 means DefaultTimeout.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		url:     url,
		timeout: timeout,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// URL returns the configured sink endpoint.
func (c *Client) URL() string { return c.url }

// Deliver posts the payload as JSON and classifies the result. It never
// returns an error; every failure mode maps to an Outcome kind, and the
// retry decision belongs to the caller.
func (c *Client) Deliver(ctx context.Context, p Payload) Outcome {
	body, err := json.Marshal(p)
	if err != nil {
		// Payload is plain data; this indicates a programming error.
		c.logger.Error("sink payload marshal failed", "err", err)
		return Outcome{Kind: UnexpectedFailure, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("sink request build failed", "url", c.url, "err", err)
		return Outcome{Kind: UnexpectedFailure, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Everything http.Client.Do reports is transport-level:
		// timeouts, refused connections, DNS failures.
		c.logger.Error("sink unreachable", "url", c.url, "err", err)
		return Outcome{Kind: NetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		c.logger.Error("sink response read failed", "status", resp.StatusCode, "err", readErr)
		return Outcome{Kind: UnexpectedFailure, Status: resp.StatusCode, Err: readErr}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Info("payload delivered",
			"status", resp.StatusCode,
			"chat_id", p.ChatID,
			"message_id", p.MessageID,
		)
		return Outcome{Kind: Success, Status: resp.StatusCode, Body: string(respBody)}
	}

	c.logger.Error("sink rejected payload",
		"status", resp.StatusCode,
		"chat_id", p.ChatID,
		"message_id", p.MessageID,
		"body", truncate(string(respBody), logBodyLimit),
	)
	return Outcome{Kind: Rejected, Status: resp.StatusCode, Body: string(respBody)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
