package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceMetrics holds single-value device metrics.
const MeasurementDeviceMetrics = "device_metrics"

// WriteDeviceMetric writes a single device measurement to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteDeviceMetric("living-room-tv", "poll_duration_ms", 84)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	c.WritePoint(MeasurementDeviceMetrics,
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]any{
			"value": value,
		},
	)
}

// WritePoint writes a point stamped with the current time.
//
// Example:
//
//	client.WritePoint("tv_state",
//	    map[string]string{"device_id": "living-room-tv"},
//	    map[string]any{"power": "on", "volume": 0.5})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with a specific timestamp.
// Points without fields are dropped.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
