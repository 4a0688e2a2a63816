package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the integration is off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrNotConnected is returned when operations run on a closed client.
	ErrNotConnected = errors.New("influxdb: client not connected")

	// ErrConnectionFailed is returned when the initial connection fails.
	ErrConnectionFailed = errors.New("influxdb: connection failed")
)
