package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory counters and latency totals for HTTP
// requests. It coordinates concurrent writers via a RWMutex and exposes the
// aggregate state in a Prometheus-compatible text form.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
	}
}

// Default returns the process-wide Recorder instance.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest records one completed HTTP request.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   path,
		status: strconv.Itoa(status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// RequestCount returns the number of observed requests for the label, mainly
// for tests.
func (r *Recorder) RequestCount(method, path string, status int) uint64 {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   path,
		status: strconv.Itoa(status),
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requestCount[label]
}

// Handler serves the recorded metrics in text exposition format.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.mu.RLock()
		labels := make([]requestLabel, 0, len(r.requestCount))
		for label := range r.requestCount {
			labels = append(labels, label)
		}
		sort.Slice(labels, func(i, j int) bool {
			if labels[i].path != labels[j].path {
				return labels[i].path < labels[j].path
			}
			if labels[i].method != labels[j].method {
				return labels[i].method < labels[j].method
			}
			return labels[i].status < labels[j].status
		})
		fmt.Fprintln(w, "# TYPE tunehall_http_requests_total counter")
		for _, label := range labels {
			fmt.Fprintf(w, "tunehall_http_requests_total{method=%q,path=%q,status=%q} %d\n",
				label.method, label.path, label.status, r.requestCount[label])
		}
		fmt.Fprintln(w, "# TYPE tunehall_http_request_duration_seconds_sum counter")
		for _, label := range labels {
			fmt.Fprintf(w, "tunehall_http_request_duration_seconds_sum{method=%q,path=%q,status=%q} %f\n",
				label.method, label.path, label.status, r.requestDuration[label].Seconds())
		}
		r.mu.RUnlock()
	})
}
