package poetry

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"getpoetry/internal/aggregate"
	"getpoetry/internal/config"
	"getpoetry/internal/fetch"
	"getpoetry/internal/metrics"
	"getpoetry/internal/reactor"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger shared by the client and its attempts.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records every dispatched attempt and resolution.
func WithMetrics(m *metrics.Fetch) Option {
	return func(c *Client) { c.metrics = m }
}

// WithDialer replaces the TCP dialer.
func WithDialer(d fetch.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithDeadlinePolicy replaces the even-port deadline rule.
func WithDeadlinePolicy(p fetch.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithObserver calls fn with every resolution as it is consumed, before
// Run returns. fn runs on the goroutine that called Run.
func WithObserver(fn func(fetch.Resolution)) Option {
	return func(c *Client) { c.observe = fn }
}

// Client downloads poems from many servers at once.
type Client struct {
	logger  *slog.Logger
	metrics *metrics.Fetch
	dialer  fetch.Dialer
	policy  fetch.Policy
	observe func(fetch.Resolution)
}

// New returns a client with the default deadline and dial timeout.
func New(opts ...Option) *Client {
	c := &Client{
		logger: slog.New(slog.DiscardHandler),
		dialer: &net.Dialer{Timeout: config.DefaultDialTimeout},
		policy: fetch.EvenPortPolicy(config.DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig returns a client honouring cfg's timeouts.
func FromConfig(cfg config.Config, opts ...Option) *Client {
	base := []Option{
		WithDialer(&net.Dialer{Timeout: cfg.DialTimeout}),
		WithDeadlinePolicy(fetch.EvenPortPolicy(cfg.Timeout)),
	}
	return New(append(base, opts...)...)
}

// Run fetches a poem from every address and returns once each attempt has
// resolved. Poems are listed in the order they completed.
//
// If ctx ends first, Run returns what was collected so far together with
// ctx.Err(); outstanding attempts are abandoned.
func (c *Client) Run(ctx context.Context, addrs []config.Address) (aggregate.Result, error) {
	agg := aggregate.New()
	agg.Register(len(addrs))
	if len(addrs) == 0 {
		return agg.Result(), nil
	}

	loop := reactor.NewLoop()
	go loop.Run()
	defer loop.Stop()

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	results := make(chan fetch.Resolution, len(addrs))
	for _, addr := range addrs {
		a := fetch.NewAttempt(addr, loop, results,
			fetch.WithDialer(c.dialer),
			fetch.WithDeadlinePolicy(c.policy),
			fetch.WithLogger(c.logger),
		)
		c.metrics.Dispatched()
		a.Start(dialCtx)
	}
	c.logger.Debug("client.dispatched", "attempts", len(addrs))

	for {
		select {
		case <-agg.Done():
			c.logger.Debug("client.done", "elapsed", time.Since(start))
			return agg.Result(), nil
		case res := <-results:
			c.record(agg, res)
		case <-ctx.Done():
			resolved, expected := agg.Resolved()
			c.logger.Warn("client.cancelled", "resolved", resolved, "expected", expected)
			return agg.Result(), ctx.Err()
		}
	}
}

func (c *Client) record(agg *aggregate.Aggregator, res fetch.Resolution) {
	agg.Report(res.Address, res.Outcome)
	c.metrics.Observe(res)

	resolved, expected := agg.Resolved()
	if res.Outcome.Failed() {
		c.logger.Info("client.failed", "addr", res.Address.String(),
			"kind", res.Outcome.Kind.String(), "error", res.Outcome.Err,
			"progress", progress(resolved, expected))
	} else {
		c.logger.Info("client.poem", "addr", res.Address.String(),
			"bytes", res.Bytes, "elapsed", res.Elapsed,
			"progress", progress(resolved, expected))
	}

	if c.observe != nil {
		c.observe(res)
	}
}

func progress(resolved, expected int) string {
	return strconv.Itoa(resolved) + "/" + strconv.Itoa(expected)
}
