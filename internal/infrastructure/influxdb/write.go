package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceStatus records a device status change.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Status is stored as a field (high cardinality), the ids as tags.
//
// Example:
//
//	client.WriteDeviceStatus("home-1a2b3c4d", "room-9f8e7d6c", "dev-kitchen1", "on", "acc-...")
func (c *Client) WriteDeviceStatus(homeID, roomID, deviceID, status, changedBy string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"home_id":   homeID,
			"room_id":   roomID,
			"device_id": deviceID,
		},
		map[string]interface{}{
			"status":     status,
			"changed_by": changedBy,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point for measurements that don't fit the
// helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
