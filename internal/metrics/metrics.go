// Package metrics defines the Prometheus collectors exported by the user registry.
// Every collector is registered with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "user_registry"

// Outcome labels for UsersCreatedTotal.
const (
	ResultCreated   = "created"
	ResultDuplicate = "duplicate"
	ResultInvalid   = "invalid"
	ResultError     = "error"
)

// UsersCreatedTotal counts create-user attempts by outcome.
// Label:
//   - result: "created", "duplicate", "invalid" or "error"
var UsersCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_created_total",
		Help:      "Total number of create-user attempts, labelled by outcome.",
	},
	[]string{"result"},
)

// HTTPRequestDuration measures request latency per route.
// Labels:
//   - method: HTTP method
//   - route: the matched gin route pattern (e.g. "/users/:id"), or "unmatched"
//   - status: response status code
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the registry.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)
