package monitor

import (
	"time"

	"pinger/internal/models"
)

// maintenanceWorker prunes old measurements from sinks that keep them locally
func (m *Monitor) maintenanceWorker(p models.Pruner) {
	defer m.bg.Done()

	ticker := time.NewTicker(m.opts.MaintenanceInterval)
	defer ticker.Stop()

	// Run immediately on start
	m.performMaintenance(p)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.performMaintenance(p)
		}
	}
}

// performMaintenance deletes measurements older than the retention period
func (m *Monitor) performMaintenance(p models.Pruner) {
	cutoff := m.now().Add(-m.opts.Retention)
	n, err := p.Prune(m.ctx, cutoff)
	if err != nil {
		m.logger.Error("Failed to prune old measurements", "error", err)
		return
	}
	m.logger.Info("Maintenance complete", "deleted", n, "cutoff", cutoff.UTC())
}
