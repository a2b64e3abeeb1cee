package ping

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"pinger/internal/models"
)

const (
	// Separator splits the address from the readings in a summary line
	Separator = " : "
	// LostSentinel marks a probe that got no reply
	LostSentinel = "-"
)

// ParseError describes a summary line that produced no record
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse probe result %q: %s", e.Line, e.Reason)
}

// Parser turns probe output into measurement batches
type Parser struct {
	host    models.Host
	targets models.Directory
}

// NewParser creates a parser attaching host to every record
func NewParser(host models.Host, targets models.Directory) *Parser {
	return &Parser{host: host, targets: targets}
}

// Parse converts output into a batch stamped with capturedAt. Lines that
// cannot be parsed are skipped and returned as errors; registered targets
// missing from the output are listed in missing.
func (p *Parser) Parse(output string, capturedAt time.Time) (batch models.Batch, errs []*ParseError, missing []string) {
	batch.CapturedAt = capturedAt
	seen := make(map[string]bool)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		rec, err := p.parseLine(line, capturedAt, seen)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batch.Records = append(batch.Records, rec)
	}

	for _, addr := range p.targets.Addresses() {
		if !seen[addr] {
			missing = append(missing, addr)
		}
	}
	return batch, errs, missing
}

func (p *Parser) parseLine(line string, capturedAt time.Time, seen map[string]bool) (models.Record, *ParseError) {
	address, results, ok := strings.Cut(line, Separator)
	if !ok {
		return models.Record{}, &ParseError{Line: line, Reason: "missing separator"}
	}
	address = strings.TrimSpace(address)

	target, ok := p.targets.Lookup(address)
	if !ok {
		return models.Record{}, &ParseError{Line: line, Reason: "unknown target " + address}
	}
	if seen[address] {
		return models.Record{}, &ParseError{Line: line, Reason: "duplicate result for " + address}
	}

	tokens := strings.Fields(results)
	if len(tokens) == 0 {
		return models.Record{}, &ParseError{Line: line, Reason: "no readings"}
	}

	var timings []float64
	lost := 0
	for _, tok := range tokens {
		if tok == LostSentinel {
			lost++
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return models.Record{}, &ParseError{Line: line, Reason: "invalid reading " + strconv.Quote(tok)}
		}
		timings = append(timings, v)
	}

	rec, ok := models.NewRecord(p.host, target, capturedAt, timings, lost)
	if !ok {
		return models.Record{}, &ParseError{Line: line, Reason: "no readings"}
	}
	seen[address] = true
	return rec, nil
}
