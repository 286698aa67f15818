// Package relay implements the HTTP client for shop terminal devices. A
// "launch" is a momentary pulse on the machine's lock relay: assert the
// relay, hold briefly, deassert it. Electrically this is pressing the
// unlock button.
//
// The terminal API is a single endpoint, POST {base}/api/washing-machines/send-raw,
// taking a JSON body {"command": "lockNN=1"} or {"command": "lockNN=0"}
// where NN is the zero-padded controller number. HTTP 200 is the only
// success status.
//
// Failure semantics matter here: if the "on" call fails the "off" call is
// never sent, and the pulse fails with PhaseOn. If "on" succeeded but "off"
// failed, the pulse fails with PhaseOff; at that point the relay was
// asserted and the deassert is unconfirmed, so the true hardware state is
// unknown. The client reports this as an ordinary failure and attempts no
// reconciliation. No retries at this layer.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/washpoint/launchbot/internal/config"
	"github.com/washpoint/launchbot/internal/observability"
)

// sendRawPath is the terminal's raw-command endpoint, relative to the
// shop's terminal base URL.
const sendRawPath = "/api/washing-machines/send-raw"

// maxDetailBytes caps how much of a terminal response body is kept in
// error details and logs.
const maxDetailBytes = 512

// Phase identifies which half of the pulse failed.
type Phase string

const (
	// PhaseOn is the assert command (lockNN=1).
	PhaseOn Phase = "on"
	// PhaseOff is the deassert command (lockNN=0).
	PhaseOff Phase = "off"
)

// Error is a failed pulse. Phase tells whether the relay had already been
// asserted when the failure happened.
type Error struct {
	Phase   Phase
	Command string // the raw command that failed, e.g. "lock03=1"
	Detail  string // status line or transport error text
	Err     error  // underlying transport error, when there was one
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("relay pulse %s (%s): %s", e.Phase, e.Command, e.Detail)
}

// Unwrap exposes the underlying transport error for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// command is the JSON body of a send-raw request.
type command struct {
	Command string `json:"command"`
}

// Client performs relay pulses against shop terminals. One client serves
// all terminals; the target base URL is supplied per pulse.
type Client struct {
	// HTTPClient is used for both pulse calls. Its Timeout bounds each
	// request end to end.
	HTTPClient *http.Client
	// Hold is the pause between the on and off commands.
	Hold time.Duration
	// Metrics records pulse outcomes; may be nil in tests.
	Metrics *observability.Metrics

	sleep func(time.Duration) // test seam
}

// NewClient constructs a Client from relay configuration: a dedicated
// transport with the configured connect timeout, the configured per-request
// timeout, and the configured pulse hold.
func NewClient(cfg config.RelayConfig, m *observability.Metrics) *Client {
	return &Client{
		HTTPClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
			},
		},
		Hold:    cfg.PulseHold,
		Metrics: m,
		sleep:   time.Sleep,
	}
}

// FormatController renders a controller number the way terminal firmware
// expects it: zero-padded to two digits. Numbers of three or more digits
// are printed in full, never truncated.
func FormatController(controller int64) string {
	return fmt.Sprintf("%02d", controller)
}

// Pulse performs the two-call unlock sequence against the terminal at
// terminalBaseURL: lockNN=1, hold, lockNN=0. A single trailing slash on the
// base URL is tolerated. The returned error, when non-nil, is a *Error
// carrying the failed phase.
//
// Once the on call has succeeded the off call is always attempted, even if
// ctx has been cancelled during the hold: leaving the relay asserted is
// worse than finishing late.
func (c *Client) Pulse(ctx context.Context, terminalBaseURL string, controller int64) error {
	start := time.Now()

	base := strings.TrimSuffix(terminalBaseURL, "/")
	endpoint := base + sendRawPath
	nn := FormatController(controller)

	if err := c.send(ctx, endpoint, fmt.Sprintf("lock%s=1", nn), PhaseOn); err != nil {
		c.record(PhaseOn, start)
		return err
	}

	c.sleep(c.Hold)

	if err := c.send(context.WithoutCancel(ctx), endpoint, fmt.Sprintf("lock%s=0", nn), PhaseOff); err != nil {
		c.record(PhaseOff, start)
		return err
	}

	c.record("", start)
	log.Info().Str("terminal", base).Str("controller", nn).Msg("relay: pulse complete")
	return nil
}

// send POSTs one raw command and classifies the outcome under phase.
func (c *Client) send(ctx context.Context, endpoint, cmd string, phase Phase) error {
	body, err := json.Marshal(command{Command: cmd})
	if err != nil {
		return &Error{Phase: phase, Command: cmd, Detail: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Phase: phase, Command: cmd, Detail: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("relay: request failed")
		return &Error{Phase: phase, Command: cmd, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("command", cmd).
			Str("response", string(snippet)).Msg("relay: terminal rejected command")
		return &Error{
			Phase:   phase,
			Command: cmd,
			Detail:  fmt.Sprintf("status=%d body=%q", resp.StatusCode, snippet),
		}
	}

	log.Debug().Str("command", cmd).Str("response", string(snippet)).Msg("relay: command accepted")
	return nil
}

// record feeds the pulse outcome into metrics. An empty phase means the
// pulse completed.
func (c *Client) record(failedPhase Phase, start time.Time) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.Pulse(string(failedPhase), time.Since(start))
}
