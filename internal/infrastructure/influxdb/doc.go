// Package influxdb provides InfluxDB connectivity for the Aquos bridge.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched metric writing and health monitoring.
//
// # Purpose
//
// The bridge records a tv_state point every time the observed TV state
// changes, and per-poll metrics such as poll_duration_ms. Together they
// give a history of when the set was on, what it was watching and how
// responsive its control link was.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, map[string]string{"bridge": "aquos-bridge"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDeviceMetric("living-room-tv", "poll_duration_ms", 84)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write errors are delivered asynchronously to the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
