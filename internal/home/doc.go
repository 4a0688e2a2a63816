// Package home is the household data gateway: homes, rooms, devices,
// activity logs, and member access flags, all scoped by an admin's
// linking id. The service layer enforces that every read and write stays
// inside the caller's linking group and appends activity entries for
// device changes, fanning them out to MQTT and InfluxDB when those
// integrations are up.
package home
