// Package influxdb records device status history. Each status change
// becomes one point, tagged by home, room, and device, so dashboards can
// chart when things were on, off, locked, or active. The integration is
// optional; when disabled the hub keeps only the latest status in SQLite.
package influxdb
