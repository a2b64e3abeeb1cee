// Package influx writes measurement batches to InfluxDB 2.x.
package influx

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"pinger/internal/models"
)

// Sink writes batches with the blocking write API
type Sink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
}

// New creates a sink for the given bucket. No request is made until first use.
func New(url, token, org, bucket, measurement string) *Sink {
	client := influxdb2.NewClient(url, token)
	return &Sink{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(org, bucket),
		measurement: measurement,
	}
}

// Write sends every record of the batch in one request
func (s *Sink) Write(ctx context.Context, batch models.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, Points(s.measurement, batch)...); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Ping checks the server health endpoint
func (s *Sink) Ping(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		return fmt.Errorf("InfluxDB health check failed: %s", health.Status)
	}
	return nil
}

// Close releases the client
func (s *Sink) Close() error {
	s.client.Close()
	return nil
}

// Points converts a batch into one point per record. Latency fields are
// omitted when every probe was lost.
func Points(measurement string, batch models.Batch) []*write.Point {
	points := make([]*write.Point, 0, batch.Len())
	for _, rec := range batch.Records {
		tags := map[string]string{
			"host_name":   rec.Host.Name,
			"target_name": rec.Target.Name,
			"target_ip":   rec.Target.Address,
		}
		addLocation(tags, "host_", rec.Host.Location)
		addLocation(tags, "target_", rec.Target.Location)

		fields := map[string]interface{}{
			"loss_percent": rec.LossPercent,
		}
		if rec.Latency != nil {
			fields["avg_ms"] = rec.Latency.AvgMs
			fields["max_ms"] = rec.Latency.MaxMs
			fields["min_ms"] = rec.Latency.MinMs
		}

		points = append(points, influxdb2.NewPoint(measurement, tags, fields, rec.CapturedAt))
	}
	return points
}

func addLocation(tags map[string]string, prefix string, loc models.Location) {
	for k, v := range map[string]string{
		"country": loc.Country,
		"state":   loc.State,
		"city":    loc.City,
		"network": loc.Network,
	} {
		if v != "" {
			tags[prefix+k] = v
		}
	}
}
