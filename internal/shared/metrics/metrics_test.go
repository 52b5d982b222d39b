package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestHistogramBucketsCumulateOnce(t *testing.T) {
	h := newHistogram([]float64{100, 500, 1000})
	h.Observe(50)
	h.Observe(50)
	h.Observe(300)
	h.Observe(2000)

	snap := h.Snapshot()
	if snap.count != 4 {
		t.Fatalf("count = %d, want 4", snap.count)
	}
	if snap.sum != 2400 {
		t.Fatalf("sum = %v, want 2400", snap.sum)
	}

	var buf bytes.Buffer
	writeHistogram(&buf, "sample_ms", "sample", snap)
	out := buf.String()

	// le buckets must be cumulative but count each observation once.
	for _, line := range []string{
		`sample_ms_bucket{le="100"} 2`,
		`sample_ms_bucket{le="500"} 3`,
		`sample_ms_bucket{le="1000"} 3`,
		`sample_ms_bucket{le="+Inf"} 4`,
		`sample_ms_count 4`,
	} {
		if !strings.Contains(out, line) {
			t.Fatalf("missing %q in:\n%s", line, out)
		}
	}
}
