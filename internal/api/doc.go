// Package api implements the HTTP control API and WebSocket push for one
// Aquos TV.
//
// This package provides:
//   - REST endpoints to read the TV state, identification, inputs and
//     remote keys, and to run commands
//   - WebSocket hub broadcasting tv.state_changed events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API does not talk to the TV itself. It goes through a Controller
// (the MQTT bridge) so that MQTT commands, API commands and the poll loop
// share one serialised Player:
//
//	HTTP client → api.Server → aquos.Bridge → aquos.Player → TV
//
// Commands use the same names and acknowledgments as the MQTT bridge:
//
//	POST /api/v1/tv/commands
//	{"command": "set_volume", "parameters": {"level": 0.4}}
//
// # Endpoints
//
//	GET  /api/v1/health
//	GET  /api/v1/tv/state
//	GET  /api/v1/tv/info
//	GET  /api/v1/tv/sources
//	GET  /api/v1/tv/remote
//	POST /api/v1/tv/commands
//	GET  /api/v1/ws
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
