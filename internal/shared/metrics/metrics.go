package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	scoringStartedTotal   atomic.Uint64
	scoringCompletedTotal atomic.Uint64
	scoringFailedTotal    atomic.Uint64

	jobsReceivedTotal  atomic.Uint64
	jobsRetriedTotal   atomic.Uint64
	jobsDeadTotal      atomic.Uint64
	recordsRequeuedTot atomic.Uint64

	scoringDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 30000})
)

// IncScoringStarted increments the started counter.
func IncScoringStarted() {
	scoringStartedTotal.Add(1)
}

// IncScoringCompleted increments the completed counter.
func IncScoringCompleted() {
	scoringCompletedTotal.Add(1)
}

// IncScoringFailed increments the failed counter.
func IncScoringFailed() {
	scoringFailedTotal.Add(1)
}

// IncJobsReceived increments the received-jobs counter.
func IncJobsReceived() {
	jobsReceivedTotal.Add(1)
}

// IncJobsRetried increments the retried-jobs counter.
func IncJobsRetried() {
	jobsRetriedTotal.Add(1)
}

// IncJobsDead increments the dead-letter counter.
func IncJobsDead() {
	jobsDeadTotal.Add(1)
}

// IncRecordsRequeued counts records re-enqueued by the reconcile sweep.
func IncRecordsRequeued() {
	recordsRequeuedTot.Add(1)
}

// ObserveScoringDurationMs records a scoring duration in milliseconds.
func ObserveScoringDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	scoringDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "scoring_started_total", "Total scoring runs started", scoringStartedTotal.Load())
	writeCounter(&buf, "scoring_completed_total", "Total scoring runs completed", scoringCompletedTotal.Load())
	writeCounter(&buf, "scoring_failed_total", "Total scoring runs failed", scoringFailedTotal.Load())
	writeCounter(&buf, "scoring_jobs_received_total", "Total scoring jobs received", jobsReceivedTotal.Load())
	writeCounter(&buf, "scoring_jobs_retried_total", "Total scoring jobs rescheduled for retry", jobsRetriedTotal.Load())
	writeCounter(&buf, "scoring_jobs_dead_total", "Total scoring jobs moved to the dead list", jobsDeadTotal.Load())
	writeCounter(&buf, "records_requeued_total", "Total stale pending records re-enqueued", recordsRequeuedTot.Load())
	writeHistogram(&buf, "scoring_duration_ms", "Scoring duration in milliseconds", scoringDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	// counts are per-bucket; rendering cumulates them into le buckets.
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
