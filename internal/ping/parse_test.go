package ping

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"pinger/internal/models"
)

type directory map[string]models.Target

func (d directory) Lookup(address string) (models.Target, bool) {
	t, ok := d[address]
	return t, ok
}

func (d directory) Addresses() []string {
	out := make([]string, 0, len(d))
	for addr := range d {
		out = append(out, addr)
	}
	return out
}

var (
	testHost    = models.Host{Name: "probe-01", Location: models.Location{Country: "FI"}}
	testTargets = directory{
		"10.0.0.1": {Address: "10.0.0.1", Name: "core-router"},
		"10.0.0.2": {Address: "10.0.0.2", Name: "edge-gw"},
	}
	capturedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseScenario(t *testing.T) {
	p := NewParser(testHost, testTargets)
	batch, errs, missing := p.Parse("10.0.0.1 : 1.2 1.4 - 1.1\n10.0.0.2 : - - - -", capturedAt)

	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(missing) != 0 {
		t.Errorf("missing = %v, want none", missing)
	}
	if batch.Len() != 2 {
		t.Fatalf("batch has %d records, want 2", batch.Len())
	}
	if !batch.CapturedAt.Equal(capturedAt) {
		t.Errorf("batch.CapturedAt = %v, want %v", batch.CapturedAt, capturedAt)
	}

	router := batch.Records[0]
	if router.Target.Name != "core-router" {
		t.Fatalf("first record target = %q, want core-router", router.Target.Name)
	}
	if router.Latency == nil {
		t.Fatal("core-router latency missing")
	}
	if !almostEqual(router.Latency.AvgMs, (1.2+1.4+1.1)/3) {
		t.Errorf("avg = %v, want ~1.233", router.Latency.AvgMs)
	}
	if router.Latency.MaxMs != 1.4 || router.Latency.MinMs != 1.1 {
		t.Errorf("max/min = %v/%v, want 1.4/1.1", router.Latency.MaxMs, router.Latency.MinMs)
	}
	if router.LossPercent != 25 {
		t.Errorf("core-router loss = %v, want 25", router.LossPercent)
	}
	if router.Host != testHost {
		t.Errorf("record host = %+v, want %+v", router.Host, testHost)
	}

	gw := batch.Records[1]
	if gw.Target.Name != "edge-gw" {
		t.Fatalf("second record target = %q, want edge-gw", gw.Target.Name)
	}
	if gw.Latency != nil {
		t.Errorf("edge-gw latency = %+v, want absent", gw.Latency)
	}
	if gw.LossPercent != 100 {
		t.Errorf("edge-gw loss = %v, want 100", gw.LossPercent)
	}
}

func TestParseLossProperty(t *testing.T) {
	p := NewParser(testHost, testTargets)

	for n := 1; n <= 6; n++ {
		for k := 0; k <= n; k++ {
			readings := make([]string, n)
			for i := range readings {
				if i < k {
					readings[i] = LostSentinel
				} else {
					readings[i] = fmt.Sprintf("%d.5", i)
				}
			}
			line := "10.0.0.1 : " + strings.Join(readings, " ")

			batch, errs, _ := p.Parse(line, capturedAt)
			if len(errs) != 0 || batch.Len() != 1 {
				t.Fatalf("Parse(%q) errs=%v records=%d", line, errs, batch.Len())
			}
			rec := batch.Records[0]
			want := float64(k) / float64(n) * 100
			if !almostEqual(rec.LossPercent, want) {
				t.Errorf("Parse(%q) loss = %v, want %v", line, rec.LossPercent, want)
			}
			if (rec.Latency != nil) != (k < n) {
				t.Errorf("Parse(%q) latency present = %v, want %v", line, rec.Latency != nil, k < n)
			}
		}
	}
}

func TestParseSkipsBadLines(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"unknown address", "192.0.2.7 : 1.0 2.0", "unknown target"},
		{"no separator", "10.0.0.1: Name or service not known", "missing separator"},
		{"no readings", "10.0.0.1 : ", "no readings"},
		{"garbage reading", "10.0.0.1 : 1.0 abc", "invalid reading"},
		{"negative reading", "10.0.0.1 : -3.0", "invalid reading"},
		{"nan reading", "10.0.0.1 : NaN", "invalid reading"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(testHost, testTargets)
			output := tt.line + "\n10.0.0.2 : 3.0 3.5 4.0 -\n"
			batch, errs, _ := p.Parse(output, capturedAt)

			if len(errs) != 1 {
				t.Fatalf("got %d parse errors, want 1", len(errs))
			}
			if !strings.Contains(errs[0].Reason, tt.reason) {
				t.Errorf("reason = %q, want it to contain %q", errs[0].Reason, tt.reason)
			}
			if batch.Len() != 1 || batch.Records[0].Target.Name != "edge-gw" {
				t.Errorf("valid line should still produce a record, got %+v", batch.Records)
			}
		})
	}
}

func TestParseDuplicateAndMissing(t *testing.T) {
	p := NewParser(testHost, testTargets)
	batch, errs, missing := p.Parse("10.0.0.1 : 1.0\n10.0.0.1 : 2.0\n\n", capturedAt)

	if batch.Len() != 1 || batch.Records[0].Latency.AvgMs != 1.0 {
		t.Errorf("expected the first result to win, got %+v", batch.Records)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Reason, "duplicate") {
		t.Errorf("errs = %v, want one duplicate error", errs)
	}
	if len(missing) != 1 || missing[0] != "10.0.0.2" {
		t.Errorf("missing = %v, want [10.0.0.2]", missing)
	}
}

func TestParseSharedTimestamp(t *testing.T) {
	p := NewParser(testHost, testTargets)
	batch, _, _ := p.Parse("10.0.0.1 : 1.0 - 2.0\r\n10.0.0.2 : 0.0 0.0\r\n", capturedAt)

	if batch.Len() != 2 {
		t.Fatalf("batch has %d records, want 2", batch.Len())
	}
	for _, rec := range batch.Records {
		if !rec.CapturedAt.Equal(capturedAt) {
			t.Errorf("record %s captured at %v, want %v", rec.Target.Name, rec.CapturedAt, capturedAt)
		}
	}

	// a measured zero latency is not a loss
	gw := batch.Records[1]
	if gw.Latency == nil || gw.Latency.AvgMs != 0 || gw.LossPercent != 0 {
		t.Errorf("zero-latency record = %+v", gw)
	}
}

func TestParseEmptyOutput(t *testing.T) {
	p := NewParser(testHost, testTargets)
	batch, errs, missing := p.Parse("", capturedAt)
	if batch.Len() != 0 || len(errs) != 0 {
		t.Errorf("Parse(\"\") = %+v, %v", batch, errs)
	}
	if len(missing) != 2 {
		t.Errorf("missing = %v, want both targets", missing)
	}
}
