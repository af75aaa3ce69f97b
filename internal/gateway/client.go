// Package gateway implements a typed client for the commerce backend's bot
// API.
//
// Reads never return errors: they return a remote.Result that tells
// "nothing found" apart from "could not ask". Order creation is the only
// call whose failure is reported as an error.
package gateway

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const (
	instrumentationName = "github.com/xenking/shopbot/internal/gateway"
	maxBodySize         = 4 << 20
)

var (
	// ErrMalformedResponse is returned when a successful response lacks
	// the fields the caller depends on.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.Code)
}

// Config holds connection settings for the backend.
type Config struct {
	// BaseURL is the API root, e.g. https://shop.example.com/api/bot.
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// Timeout bounds every call including retries.
	Timeout time.Duration
	// Retries is the number of extra attempts for idempotent reads.
	Retries int
	// RetryWait is the first backoff delay, doubled per attempt.
	RetryWait time.Duration
	Breaker   BreakerConfig
}

// BreakerConfig controls the circuit breaker around backend calls.
type BreakerConfig struct {
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// FailureRatio trips the breaker once reached.
	FailureRatio float64
	// MinRequests is the sample size needed before FailureRatio applies.
	MinRequests uint32
}

// Options holds optional dependencies.
type Options struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	HTTPClient     *http.Client
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(o.TracerProvider),
				otelhttp.WithMeterProvider(o.MeterProvider),
			),
		}
	}
}

// Client talks to the backend bot API.
type Client struct {
	base      *url.URL
	token     string
	timeout   time.Duration
	retries   int
	retryWait time.Duration

	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[response]
	lg       *zap.Logger
	tracer   trace.Tracer
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a Client.
func New(cfg Config, opts Options) (*Client, error) {
	opts.setDefaults()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 300 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	calls, err := meter.Int64Counter("shopbot.gateway.calls",
		metric.WithDescription("Backend calls by operation and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create calls counter")
	}
	duration, err := meter.Float64Histogram("shopbot.gateway.duration",
		metric.WithDescription("Backend call duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create duration histogram")
	}

	c := &Client{
		base:      base,
		token:     cfg.Token,
		timeout:   cfg.Timeout,
		retries:   cfg.Retries,
		retryWait: cfg.RetryWait,
		http:      opts.HTTPClient,
		lg:        opts.Logger,
		tracer:    opts.TracerProvider.Tracer(instrumentationName),
		calls:     calls,
		duration:  duration,
	}
	c.breaker = newBreaker(cfg.Breaker, opts.Logger)
	return c, nil
}

func newBreaker(cfg BreakerConfig, lg *zap.Logger) *gobreaker.CircuitBreaker[response] {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	return gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
}

type request struct {
	op             string
	method         string
	path           []string
	query          url.Values
	body           []byte
	idempotencyKey string
}

type response struct {
	code int
	body []byte
}

// do executes req with timeout, breaker and, for GET, retries.
func (c *Client) do(ctx context.Context, req request) (_ response, rerr error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "gateway."+req.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gateway.op", req.op),
			attribute.String("http.request.method", req.method),
		),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		if rerr != nil {
			outcome = "error"
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		attrs := metric.WithAttributes(
			attribute.String("op", req.op),
			attribute.String("outcome", outcome),
		)
		c.calls.Add(ctx, 1, attrs)
		c.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.End()
	}()

	attempts := 1
	if req.method == http.MethodGet {
		attempts += c.retries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.retryWait * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return response{}, errors.Wrap(lastErr, "retry aborted")
			}
		}

		res, err := c.breaker.Execute(func() (response, error) {
			return c.roundTrip(ctx, req)
		})
		if err == nil {
			span.SetAttributes(attribute.Int("http.response.status_code", res.code))
			return res, nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return response{}, lastErr
}

func (c *Client) roundTrip(ctx context.Context, req request) (response, error) {
	u := c.base.JoinPath(req.path...)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	body := io.Reader(http.NoBody)
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return response{}, errors.Wrap(err, "create request")
	}
	hr.Header.Set("Accept", "application/json")
	if req.body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		hr.Header.Set("Authorization", "Bearer "+c.token)
	}
	if req.idempotencyKey != "" {
		hr.Header.Set("Idempotency-Key", req.idempotencyKey)
	}

	resp, err := c.http.Do(hr)
	if err != nil {
		return response{}, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return response{}, errors.Wrap(err, "read body")
	}
	// 5xx count as breaker failures.
	if resp.StatusCode >= http.StatusInternalServerError {
		return response{}, &StatusError{Code: resp.StatusCode}
	}
	return response{code: resp.StatusCode, body: data}, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code != http.StatusNotImplemented
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func isSuccess(code int) bool {
	return code == http.StatusOK || code == http.StatusCreated
}

// Ping reports whether the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, request{op: "ping", method: http.MethodGet, path: []string{"categories"}})
	return err
}
