package models

import "time"

// Location holds optional geographic and network attributes.
type Location struct {
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
	Network string `json:"network,omitempty"`
}

// IsZero reports whether no attribute is set
func (l Location) IsZero() bool {
	return l == Location{}
}

// Merge fills empty attributes of l from other
func (l Location) Merge(other Location) Location {
	if l.Country == "" {
		l.Country = other.Country
	}
	if l.State == "" {
		l.State = other.State
	}
	if l.City == "" {
		l.City = other.City
	}
	if l.Network == "" {
		l.Network = other.Network
	}
	return l
}

// Target is a network endpoint measured every probe cycle
type Target struct {
	Address  string   `json:"address"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
}

// Host identifies the machine running the agent
type Host struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
}

// Latency holds round-trip statistics in milliseconds
type Latency struct {
	AvgMs float64 `json:"avg_ms"`
	MaxMs float64 `json:"max_ms"`
	MinMs float64 `json:"min_ms"`
}

// Record is the measurement of one target in one probe cycle.
// Latency is nil when every probe to the target was lost.
type Record struct {
	Host        Host      `json:"host"`
	Target      Target    `json:"target"`
	CapturedAt  time.Time `json:"captured_at"`
	Latency     *Latency  `json:"latency,omitempty"`
	LossPercent float64   `json:"loss_percent"`
}

// NewRecord builds a record from the numeric readings of one target and the
// number of lost probes. It returns false when there are no readings at all.
func NewRecord(host Host, target Target, capturedAt time.Time, readings []float64, lost int) (Record, bool) {
	total := len(readings) + lost
	if total == 0 {
		return Record{}, false
	}

	rec := Record{
		Host:        host,
		Target:      target,
		CapturedAt:  capturedAt,
		LossPercent: float64(lost) / float64(total) * 100,
	}
	if len(readings) == 0 {
		return rec, true
	}

	lat := Latency{MaxMs: readings[0], MinMs: readings[0]}
	var sum float64
	for _, r := range readings {
		sum += r
		if r > lat.MaxMs {
			lat.MaxMs = r
		}
		if r < lat.MinMs {
			lat.MinMs = r
		}
	}
	lat.AvgMs = sum / float64(len(readings))
	rec.Latency = &lat
	return rec, true
}

// Batch is the set of records produced by one probe cycle
type Batch struct {
	CapturedAt time.Time `json:"captured_at"`
	Records    []Record  `json:"records"`
}

// Len returns the number of records in the batch
func (b Batch) Len() int {
	return len(b.Records)
}
