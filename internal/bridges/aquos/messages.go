package aquos

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-aquos/internal/infrastructure/mqtt"
)

// MQTT message types exchanged between Gray Logic Core and the Aquos bridge.
// They follow the same bridge contract as the other protocol bridges.

// Protocol is the protocol identifier used in topics and messages.
const Protocol = "aquos"

// CommandMessage is sent from Core to Bridge to drive the TV.
// Topic: graylogic/command/aquos/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the Gray Logic device identifier of the TV.
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g., "turn_on", "set_volume", "select_source").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"level": 0.5} for set_volume
	//   {"source": "HDMI_IN_2"} for select_source
	//   {"button": "menu"} for remote_button
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the TV acknowledged the command.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the TV did not answer within the retry budget.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from Bridge to Core to acknowledge a command.
// Topic: graylogic/ack/aquos/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`

	// Address is the transport endpoint of the TV.
	Address string `json:"address"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeDeviceRejected    = "DEVICE_REJECTED"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeStateUnknown      = "STATE_UNKNOWN"
	ErrCodeTimeout           = "TIMEOUT"
)

// StateMessage is sent from Bridge to Core when the TV state changes.
// Topic: graylogic/state/aquos/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	// State contains the media player view of the TV:
	//   {"power": "on", "muted": false, "volume": 0.5, "source": "HDMI_IN_3"}
	State map[string]any `json:"state"`

	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthOffline   HealthStatus = "offline"
	HealthStarting  HealthStatus = "starting"
	HealthStopping  HealthStatus = "stopping"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/aquos
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// Connection describes the link to the TV.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains transport counters.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// TVPower is the last observed power state.
	TVPower string `json:"tv_power,omitempty"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the transport state.
type ConnectionStatus struct {
	// Status is "connected" or "disconnected".
	Status string `json:"status"`

	Address      string     `json:"address"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// BridgeStatistics contains transport counters.
type BridgeStatistics struct {
	FramesSent      uint64 `json:"frames_sent"`
	RepliesReceived uint64 `json:"replies_received"`
	Timeouts        uint64 `json:"timeouts"`
	Errors          uint64 `json:"errors"`
	Reconnects      uint64 `json:"reconnects"`
}

// RequestMessage is sent from Core to Bridge for request/response operations.
// Topic: graylogic/request/aquos/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation.
	// Values: "read_state", "info", "list_sources", "list_remote_buttons"
	Action string `json:"action"`

	DeviceID   string         `json:"device_id,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage is sent from Bridge to Core in response to a request.
// Topic: graylogic/response/aquos/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalJSON accepts commands with an empty or RFC 3339 timestamp.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment for a command.
func NewAckMessage(cmd CommandMessage, address string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckAccepted,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, address, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
		Address:   address,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message from the observed TV state.
func NewStateMessage(deviceID, address string, state State) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     StateMap(state),
		Protocol:  Protocol,
		Address:   address,
	}
}

// StateMap flattens a State into the media player attributes Core expects.
// Unknown values are omitted.
func StateMap(s State) map[string]any {
	m := map[string]any{
		"power": s.Power.String(),
		"muted": s.Muted,
	}
	if s.VolumeKnown {
		m["volume"] = s.Volume
	}
	if s.InputKnown {
		m["source"] = s.Input.Name
		m["input_index"] = s.Input.Index
	}
	return m
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, address string, stats TransportStats, power PowerState, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:        bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		TVPower:       power.String(),
	}

	msg.Connection = &ConnectionStatus{
		Status:  "disconnected",
		Address: address,
	}
	if stats.Connected {
		lastActivity := stats.LastActivity
		msg.Connection.Status = "connected"
		msg.Connection.LastActivity = &lastActivity
	}

	msg.Statistics = &BridgeStatistics{
		FramesSent:      stats.FramesTx,
		RepliesReceived: stats.RepliesRx,
		Timeouts:        stats.TimeoutsTotal,
		Errors:          stats.ErrorsTotal,
		Reconnects:      stats.ReconnectsTotal,
	}
	return msg
}

// NewLWTMessage creates the Last Will and Testament message for MQTT.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// topics builds every topic this bridge uses; all carry the aquos protocol.
var topics = mqtt.Topics{}

// CommandTopic returns the command topic for a TV.
// Example: graylogic/command/aquos/living-room-tv
func CommandTopic(deviceID string) string { return topics.BridgeCommand(Protocol, deviceID) }

// AckTopic returns the acknowledgment topic for a TV.
func AckTopic(deviceID string) string { return topics.BridgeAck(Protocol, deviceID) }

// StateTopic returns the state topic for a TV.
func StateTopic(deviceID string) string { return topics.BridgeState(Protocol, deviceID) }

// HealthTopic returns the bridge health topic.
func HealthTopic() string { return topics.BridgeHealth(Protocol) }

// RequestTopic returns the request topic for a request ID.
func RequestTopic(requestID string) string { return topics.BridgeRequest(Protocol, requestID) }

// ResponseTopic returns the response topic for a request ID.
func ResponseTopic(requestID string) string { return topics.BridgeResponse(Protocol, requestID) }

// CommandSubscribeTopic returns the subscription pattern for TV commands.
func CommandSubscribeTopic() string { return topics.AllBridgeCommands(Protocol) }

// RequestSubscribeTopic returns the subscription pattern for requests.
func RequestSubscribeTopic() string { return topics.AllBridgeRequests(Protocol) }
