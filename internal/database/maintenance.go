package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Prune deletes measurements captured before the cutoff
func (db *DB) Prune(ctx context.Context, before time.Time) (int64, error) {
	if db.dialect != SQLite {
		return 0, errors.New("retention for ClickHouse is managed with a table TTL")
	}

	res, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE time < ?`, db.table), before.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if n > 0 {
		if err := db.vacuumMonthly(ctx); err != nil {
			return n, err
		}
	}
	return n, nil
}

// vacuumMonthly reclaims space at most once per calendar month
func (db *DB) vacuumMonthly(ctx context.Context) error {
	db.vacuumMu.Lock()
	defer db.vacuumMu.Unlock()

	now := db.now().UTC()
	if !db.lastVacuum.IsZero() && db.lastVacuum.Year() == now.Year() && db.lastVacuum.Month() == now.Month() {
		return nil
	}
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return err
	}
	db.lastVacuum = now
	return nil
}
