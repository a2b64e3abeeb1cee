package database

import (
	"context"
	"fmt"

	"pinger/internal/models"
)

const insertColumns = `host_name, host_country, host_state, host_city, host_network,
        target_name, target_ip, target_country, target_state, target_city, target_network,
        avg_ms, max_ms, min_ms, loss_percent, time`

// Write inserts every record of the batch in one transaction. With
// ClickHouse the prepared statement becomes a single multi-row insert.
func (db *DB) Write(ctx context.Context, batch models.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
        INSERT INTO %s (%s)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, db.table, insertColumns)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range batch.Records {
		avgMs, maxMs, minMs := latencyArgs(rec.Latency)
		_, err := stmt.ExecContext(ctx,
			rec.Host.Name,
			rec.Host.Location.Country,
			rec.Host.Location.State,
			rec.Host.Location.City,
			rec.Host.Location.Network,
			rec.Target.Name,
			rec.Target.Address,
			rec.Target.Location.Country,
			rec.Target.Location.State,
			rec.Target.Location.City,
			rec.Target.Location.Network,
			avgMs, maxMs, minMs,
			rec.LossPercent,
			rec.CapturedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", rec.Target.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// latencyArgs maps absent latency onto SQL NULL
func latencyArgs(l *models.Latency) (avgMs, maxMs, minMs interface{}) {
	if l == nil {
		return nil, nil, nil
	}
	return l.AvgMs, l.MaxMs, l.MinMs
}
