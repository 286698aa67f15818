// Package sysutil – network diagnostics
//
// Shop terminals sit behind flaky residential links and allow-list the
// bot's outbound address, so operators regularly need two answers from a
// running instance: which local address does it egress from, and can it
// reach the tunnel endpoint at all. These helpers back the bot's /ip and
// /test commands.
package sysutil

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
)

// outboundProbeAddr is only dialed on UDP, so no packet is actually sent;
// the kernel just picks the route and local address that would be used.
const outboundProbeAddr = "8.8.8.8:80"

// OutboundIP reports the local IP address the host would use for outbound
// traffic.
func OutboundIP() (string, error) {
	conn, err := net.Dial("udp", outboundProbeAddr)
	if err != nil {
		return "", fmt.Errorf("resolve outbound address: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}

// ProbeResult is the outcome of a successful connectivity probe.
type ProbeResult struct {
	URL    string
	Status int
	Body   string // response body, truncated
}

// probeBodyLimit caps how much of the probe response is reported back.
const probeBodyLimit = 256

// Probe issues a GET against url with the provided client and reports the
// status and a snippet of the body. Transport failures come back as
// errors; any HTTP status counts as reachable.
func Probe(ctx context.Context, client *http.Client, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	return &ProbeResult{
		URL:    url,
		Status: resp.StatusCode,
		Body:   string(body),
	}, nil
}
