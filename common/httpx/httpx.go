package httpx

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/common/logger"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/config"
)

// Client guards outbound model traffic with a host allowlist and a circuit
// breaker that opens after consecutive failures. It does not retry.
type Client struct {
	hc        *http.Client
	base      http.RoundTripper
	opt       Options
	fail      int32 // consecutive failures
	openUntil int64 // unix nanos for circuit open deadline
	now       func() time.Time
}

type Options struct {
	Timeout            time.Duration
	HostAllowlist      []string
	MaxConsecutiveFail int
	CircuitOpen        time.Duration
}

var ErrCircuitOpen = errors.New("circuit open")
var ErrHostNotAllowed = errors.New("host not allowed")

func NewFromConfig(cfg *config.HTTPClientConfig) *Client {
	// defaults
	to := 90 * time.Second
	if cfg != nil && cfg.TimeoutMs > 0 {
		to = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	mcf := 5
	if cfg != nil && cfg.MaxConsecutiveFailures > 0 {
		mcf = cfg.MaxConsecutiveFailures
	}
	cop := 10 * time.Second
	if cfg != nil && cfg.CircuitOpenSeconds > 0 {
		cop = time.Duration(cfg.CircuitOpenSeconds) * time.Second
	}
	var allow []string
	if cfg != nil {
		allow = cfg.HostAllowlist
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     30 * time.Second,
	}
	return New(transport, Options{
		Timeout:            to,
		HostAllowlist:      allow,
		MaxConsecutiveFail: mcf,
		CircuitOpen:        cop,
	})
}

// New wraps base (http.DefaultTransport when nil) with the given options.
func New(base http.RoundTripper, opt Options) *Client {
	if base == nil {
		base = http.DefaultTransport
	}
	if opt.MaxConsecutiveFail <= 0 {
		opt.MaxConsecutiveFail = 5
	}
	c := &Client{base: base, opt: opt, now: time.Now}
	c.hc = &http.Client{Timeout: opt.Timeout, Transport: c}
	return c
}

// HTTPClient returns a standard client whose transport goes through c.
func (c *Client) HTTPClient() *http.Client {
	return c.hc
}

// Do sends req through the guarded client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.hc.Do(req)
}

// RoundTrip implements http.RoundTripper.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	if !c.allowed(req.URL.Hostname()) {
		logger.Warnf("httpx: blocked outbound host: %s", req.URL.Host)
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, req.URL.Host)
	}
	if atomic.LoadInt64(&c.openUntil) > c.now().UnixNano() {
		return nil, ErrCircuitOpen
	}

	resp, err := c.base.RoundTrip(req)
	if err == nil && resp.StatusCode < 500 {
		atomic.StoreInt32(&c.fail, 0)
		return resp, nil
	}
	if err != nil {
		logger.Warnf("httpx: request to %s failed: %v", req.URL.Host, err)
	} else {
		logger.Warnf("httpx: request to %s returned status %d", req.URL.Host, resp.StatusCode)
	}
	// open circuit on consecutive failures
	if atomic.AddInt32(&c.fail, 1) >= int32(c.opt.MaxConsecutiveFail) {
		atomic.StoreInt64(&c.openUntil, c.now().Add(c.opt.CircuitOpen).UnixNano())
		atomic.StoreInt32(&c.fail, 0)
		logger.Warnf("httpx: circuit opened for %v", c.opt.CircuitOpen)
	}
	return resp, err
}

func (c *Client) allowed(host string) bool {
	if len(c.opt.HostAllowlist) == 0 {
		return true
	}
	for _, h := range c.opt.HostAllowlist {
		if matchHost(h, host) {
			return true
		}
	}
	return false
}

func matchHost(pattern, host string) bool {
	if pattern == "*" {
		return true
	}
	if strings.EqualFold(pattern, host) {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suf := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(host, "."+suf) || host == suf
	}
	return false
}
