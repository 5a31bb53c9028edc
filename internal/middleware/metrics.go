package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

const metricsNamespace = "web3core"

// Metrics counts requests and observes their latency, labelled by method and outcome.
// The outcome label is "ok" or the lowercase error code, "unknown" for foreign errors.
//
// Collectors already present in reg (e.g. from an earlier session) are reused.
func Metrics(reg prometheus.Registerer) (Middleware, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "rpc_requests_total",
		Help:      "The total number of RPC requests sent through the pipeline",
	}, []string{"method", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "rpc_request_duration_seconds",
		Help:      "Latency of RPC requests sent through the pipeline",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}

	return func(next RequestFunc, _ Context) RequestFunc {
		return func(ctx context.Context, method string, params []any) (json.RawMessage, error) {
			start := time.Now()
			result, err := next(ctx, method, params)

			duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			requests.WithLabelValues(method, outcome(err)).Inc()
			return result, err
		}
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metrics: %w", err)
	}
	return c, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	code := web3err.CodeOf(err)
	if code == "" {
		return "unknown"
	}
	return string(code)
}
