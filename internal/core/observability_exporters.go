package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationTotals aggregates the outcomes of one service operation.
type OperationTotals struct {
	Success    int64   `json:"success"`
	Error      int64   `json:"error"`
	DurationMS float64 `json:"duration_ms_total"`
}

// WorkflowLoad is the last reported size of one workflow.
type WorkflowLoad struct {
	Crucibles int `json:"crucibles"`
	Jars      int `json:"jars"`
	EthanolUL int `json:"ethanol_ul"`
}

// ExpvarMetricsSnapshot is a read-only view of the recorded totals.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationTotals `json:"operations"`
	Workflows  map[string]WorkflowLoad    `json:"workflows"`
	RecordedAt time.Time                  `json:"recorded_at"`
}

// ExpvarMetricsRecorder publishes per-operation totals and per-workflow load
// gauges via expvar for deployments that want process-local metrics without
// an external scrape target. Durations accumulate in milliseconds.
type ExpvarMetricsRecorder struct {
	name       string
	mu         sync.Mutex
	operations map[string]OperationTotals
	workflows  map[string]WorkflowLoad
}

// NewExpvarMetricsRecorder constructs a recorder published under name. An
// empty name gets a generated unique identifier.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("labman_workflow_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{
		name:       name,
		operations: make(map[string]OperationTotals),
		workflows:  make(map[string]WorkflowLoad),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot returns an immutable copy of the aggregated totals.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	operations := make(map[string]OperationTotals, len(r.operations))
	for op, totals := range r.operations {
		operations[op] = totals
	}
	workflows := make(map[string]WorkflowLoad, len(r.workflows))
	for name, load := range r.workflows {
		workflows[name] = load
	}
	return ExpvarMetricsSnapshot{
		Operations: operations,
		Workflows:  workflows,
		RecordedAt: time.Now().UTC(),
	}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := r.operations[operation]
	if success {
		totals.Success++
	} else {
		totals.Error++
	}
	totals.DurationMS += float64(duration) / float64(time.Millisecond)
	r.operations[operation] = totals
}

// RecordWorkload implements WorkloadRecorder.
func (r *ExpvarMetricsRecorder) RecordWorkload(workflow string, crucibles, jars, ethanolUL int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[workflow] = WorkflowLoad{Crucibles: crucibles, Jars: jars, EthanolUL: ethanolUL}
}

// TraceEntry is one serialized span emitted by JSONTraceTracer.
type TraceEntry struct {
	Operation  string    `json:"op"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"start"`
	EndedAt    time.Time `json:"end"`
}

// JSONTraceTracer writes spans as JSON lines and retains them for
// inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []TraceEntry
	enc     *json.Encoder
}

// NewJSONTracer constructs a tracer writing to w. A nil writer only retains
// spans in memory.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{
		tracer:    t,
		operation: operation,
		started:   time.Now().UTC(),
	}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := time.Now().UTC()
	entry := TraceEntry{
		Operation:  s.operation,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}
