// Package telemetry holds the request-outcome and build-outcome counters
// threaded through every stage of the news-harvest pipeline, alongside an
// ambient Prometheus export of the same data.
package telemetry

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// requestKey is the composite key RequestOutcome counts are bucketed by.
type requestKey struct {
	method string
	status int
}

// providerCounts tracks build outcomes for a single provider host.
type providerCounts struct {
	successful int
	failed     int
}

// Report is a point-in-time, read-only snapshot of a Telemetry instance.
type Report struct {
	Requests map[string]int // "method:status" -> count
	Builds   map[string]BuildCount
}

// BuildCount is the successful/failed tally for one provider host.
type BuildCount struct {
	Successful int
	Failed     int
}

// Telemetry is the in-memory, concurrency-safe counter set for a single
// pipeline run (spec: "Telemetry counters live for the duration of one
// pipeline run"). It is safe for concurrent use by the worker pool.
type Telemetry struct {
	mu       sync.Mutex
	requests map[requestKey]int
	builds   map[string]*providerCounts

	requestsTotal *prometheus.CounterVec
	buildsTotal   *prometheus.CounterVec
}

// New constructs a Telemetry instance and registers its Prometheus metrics
// against reg. Pass prometheus.NewRegistry() in tests to avoid collisions
// with other instances; pass prometheus.DefaultRegisterer in the CLI.
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		requests: make(map[requestKey]int),
		builds:   make(map[string]*providerCounts),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_request_outcomes_total",
			Help: "Count of WebContentFetcher/NewsSource request attempts by method and status.",
		}, []string{"method", "status"}),
		buildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_build_outcomes_total",
			Help: "Count of ArticleBuilder outcomes by provider host and result.",
		}, []string{"provider", "result"}),
	}
	if reg != nil {
		reg.MustRegister(t.requestsTotal, t.buildsTotal)
	}
	return t
}

// RecordRequest increments the (method, status) counter for a single fetch
// or news-source attempt. method is one of the WebContentFetcher stage keys
// (custom_<host>_request, basic_request, postman_request, playwright_request,
// all_methods_failed) or a NewsSource-call identifier.
func (t *Telemetry) RecordRequest(method string, status int) {
	t.mu.Lock()
	t.requests[requestKey{method: method, status: status}]++
	t.mu.Unlock()

	t.requestsTotal.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
}

// RecordBuild increments the success/failure counter for providerHost.
func (t *Telemetry) RecordBuild(providerHost string, success bool) {
	t.mu.Lock()
	pc, ok := t.builds[providerHost]
	if !ok {
		pc = &providerCounts{}
		t.builds[providerHost] = pc
	}
	if success {
		pc.successful++
	} else {
		pc.failed++
	}
	t.mu.Unlock()

	result := "failed"
	if success {
		result = "successful"
	}
	t.buildsTotal.WithLabelValues(providerHost, result).Inc()
}

// Snapshot returns a read-only copy of the current counters.
func (t *Telemetry) Snapshot() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := Report{
		Requests: make(map[string]int, len(t.requests)),
		Builds:   make(map[string]BuildCount, len(t.builds)),
	}
	for k, v := range t.requests {
		r.Requests[fmt.Sprintf("%s:%d", k.method, k.status)] = v
	}
	for host, pc := range t.builds {
		r.Builds[host] = BuildCount{Successful: pc.successful, Failed: pc.failed}
	}
	return r
}

// RequestCount returns the current count for a specific (method, status)
// pair. It is a convenience accessor mainly used by tests asserting exact
// scenario counters (spec §8 scenarios 4 and 5).
func (t *Telemetry) RequestCount(method string, status int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests[requestKey{method: method, status: status}]
}
