/*
Copyright The CloudNativePG Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics carries the Prometheus collectors the core engine
// updates while building a manifest and planning a block delta. A
// Recorder is built once per process and threaded through explicitly,
// the same way internal/corelog threads a Logger, rather than reached
// for through the default registry's global state.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "pgbackrest_core"

// Recorder is the set of collectors the engine updates during a build
// or a block-delta plan. Callers that don't need metrics can use
// NewUnregistered and never register it with a gatherer.
type Recorder struct {
	BuildDuration prometheus.Histogram

	FilesTotal      *prometheus.CounterVec
	BlockDeltaReads prometheus.Counter
	LockWaitSeconds prometheus.Histogram
}

// fileStatus labels the file_total counter: one of "copied",
// "reference" (unchanged, stored as a pointer to a prior backup), or
// "delta" (block-incremental).
type fileStatus = string

const (
	FileCopied    fileStatus = "copied"
	FileReference fileStatus = "reference"
	FileDelta     fileStatus = "delta"
)

// New builds a Recorder with its collectors registered against reg. Pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to expose it on the process-wide
// /metrics endpoint.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Time spent building a backup manifest, from scan start to manifest save.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		FilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files processed during a manifest build, by how their content was stored.",
		}, []string{"status"}),
		BlockDeltaReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_delta_reads_total",
			Help:      "Coalesced Reads planned across all block-delta files.",
		}),
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent polling for a stanza lock before it was acquired or the wait timed out.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(r.BuildDuration, r.FilesTotal, r.BlockDeltaReads, r.LockWaitSeconds)
	return r
}

// NewUnregistered builds a Recorder backed by its own private registry,
// for callers (tests, one-shot CLI invocations) that want the counters
// updated without exposing them anywhere.
func NewUnregistered() *Recorder {
	return New(prometheus.NewRegistry())
}

// ObserveFile increments the file counter for the given status.
func (r *Recorder) ObserveFile(status fileStatus) {
	r.FilesTotal.WithLabelValues(status).Inc()
}

// ObserveBlockDeltaReads adds n coalesced Reads to the running total.
func (r *Recorder) ObserveBlockDeltaReads(n int) {
	r.BlockDeltaReads.Add(float64(n))
}
