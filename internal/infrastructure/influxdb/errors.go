package influxdb

import "errors"

// Sentinel errors for telemetry writes.
//
// Telemetry is optional for the bridge: callers treat every one of these
// as a reason to log, never to stop driving the TV.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed means the startup ping failed or the server
	// reported itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrWriteFailed wraps every asynchronous batch error passed to the
	// SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
