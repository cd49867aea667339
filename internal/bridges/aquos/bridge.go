package aquos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// commandTimeout bounds one command including its retries.
	commandTimeout = 15 * time.Second

	// DefaultPollInterval is how often the TV state is refreshed when unset.
	DefaultPollInterval = 10 * time.Second

	// measurementState is the InfluxDB measurement for TV state points.
	measurementState = "tv_state"
)

// Bridge connects one Aquos TV to Gray Logic Core over MQTT.
// It handles:
//   - Polling the TV and publishing state changes
//   - Translating MQTT commands into Player verbs and acknowledging them
//   - Answering read_state/info/list requests
//   - Health reporting and graceful shutdown
//
// All access to the Player goes through playerMu, so the Client sees a
// single caller even though MQTT, the API and the poll loop run concurrently.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	bridgeID     string
	deviceID     string
	pollInterval time.Duration

	player   *Player
	playerMu sync.Mutex

	mqtt      MQTTClient
	telemetry TelemetryWriter
	health    *HealthReporter

	// Last published state for change detection
	lastState State
	published bool
	stateMu   sync.RWMutex

	listeners   []func(State)
	listenersMu sync.RWMutex

	// refreshNow asks the poll loop for an immediate refresh.
	refreshNow chan struct{}

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
}

// TelemetryWriter records time series. *influxdb.Client satisfies it.
type TelemetryWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
	WriteDeviceMetric(deviceID string, measurement string, value float64)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// BridgeID identifies this bridge in health messages.
	BridgeID string

	// DeviceID is the Gray Logic device ID of the TV.
	DeviceID string

	// Version is reported in health messages.
	Version string

	PollInterval   time.Duration
	HealthInterval time.Duration

	// Player drives the TV. Required.
	Player *Player

	// MQTTClient is required.
	MQTTClient MQTTClient

	// Telemetry is optional; state changes are written when set.
	Telemetry TelemetryWriter

	Logger Logger
}

// NewBridge creates a new bridge instance. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Player == nil {
		return nil, fmt.Errorf("player is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("device ID is required")
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	bridgeID := opts.BridgeID
	if bridgeID == "" {
		bridgeID = Protocol
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		bridgeID:     bridgeID,
		deviceID:     opts.DeviceID,
		pollInterval: pollInterval,
		player:       opts.Player,
		mqtt:         opts.MQTTClient,
		telemetry:    opts.Telemetry,
		refreshNow:   make(chan struct{}, 1),
		done:         make(chan struct{}),
		ctx:          ctx,
		ctxCancel:    ctxCancel,
		logger:       opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  bridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Transport: opts.Player.Client().Transport(),
		Power:     func() PowerState { return b.State().Power },
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to command and request topics, starts polling the TV
// and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	b.wg.Add(1)
	go b.pollLoop(ctx)

	b.health.Start(ctx)

	b.logInfo("bridge started",
		"bridge_id", b.bridgeID,
		"device_id", b.deviceID,
		"address", b.player.Client().Transport().Address(),
		"poll_interval", b.pollInterval.String())

	return nil
}

// Stop gracefully shuts down the bridge. In-flight commands are cancelled.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// DeviceID returns the Gray Logic device ID of the TV.
func (b *Bridge) DeviceID() string {
	return b.deviceID
}

// HealthStatus returns the current bridge health.
func (b *Bridge) HealthStatus() (HealthStatus, string) {
	return b.health.Status()
}

// TransportStats returns the TV link counters.
func (b *Bridge) TransportStats() TransportStats {
	return b.player.Client().Transport().Stats()
}

// State returns the last published TV state.
func (b *Bridge) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.lastState
}

// Sources returns the selectable inputs. No exchange.
func (b *Bridge) Sources() []Input {
	return b.player.Client().InputList()
}

// RemoteButtons returns the remote keys supported by the command map.
func (b *Bridge) RemoteButtons() []string {
	return b.player.Client().RemoteButtonList()
}

// Features returns the media player features of the TV.
func (b *Bridge) Features() Feature {
	return b.player.SupportedFeatures()
}

// Info queries the TV identification.
func (b *Bridge) Info(ctx context.Context) (Info, Outcome) {
	b.playerMu.Lock()
	defer b.playerMu.Unlock()
	return b.player.Info(ctx)
}

// OnStateChange registers fn to be called after each state change.
// fn runs while a refresh holds the TV lock: it must not block or call
// Refresh, Info or Execute.
func (b *Bridge) OnStateChange(fn func(State)) {
	b.listenersMu.Lock()
	b.listeners = append(b.listeners, fn)
	b.listenersMu.Unlock()
}

// Refresh runs one update cycle and publishes the state if it changed.
func (b *Bridge) Refresh(ctx context.Context) Outcome {
	start := time.Now()

	b.playerMu.Lock()
	defer b.playerMu.Unlock()
	return b.refreshLocked(ctx, start)
}

// refreshLocked is Refresh for callers already holding playerMu.
func (b *Bridge) refreshLocked(ctx context.Context, start time.Time) Outcome {
	outcome := b.player.Update(ctx)
	if b.telemetry != nil && outcome.OK() {
		b.telemetry.WriteDeviceMetric(b.deviceID, "poll_duration_ms", float64(time.Since(start).Milliseconds()))
	}

	// Committed under playerMu so snapshots publish in the order they were read.
	b.commit(b.player.State())
	return outcome
}

// RequestRefresh asks the poll loop to refresh as soon as possible.
func (b *Bridge) RequestRefresh() {
	select {
	case b.refreshNow <- struct{}{}:
	default:
	}
}

func (b *Bridge) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	b.Refresh(b.ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.Refresh(b.ctx)
		case <-b.refreshNow:
			b.Refresh(b.ctx)
		}
	}
}

// commit publishes state unless it matches, or is older than, the last
// published state.
func (b *Bridge) commit(state State) {
	b.stateMu.Lock()
	if b.published && (b.lastState.Equal(state) || state.UpdatedAt.Before(b.lastState.UpdatedAt)) {
		b.stateMu.Unlock()
		return
	}
	b.lastState = state
	b.published = true
	b.stateMu.Unlock()

	b.publishState(state)

	if b.telemetry != nil {
		b.telemetry.WritePointWithTime(measurementState,
			map[string]string{"device_id": b.deviceID},
			telemetryFields(state),
			time.Now())
	}

	b.listenersMu.RLock()
	listeners := b.listeners
	b.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(state)
	}

	b.logDebug("tv state changed",
		"power", state.Power.String(),
		"muted", state.Muted,
		"volume", state.Volume,
		"source", state.Input.Name)
}

func telemetryFields(s State) map[string]any {
	fields := map[string]any{
		"power": s.Power == PowerOn,
		"muted": s.Muted,
	}
	if s.VolumeKnown {
		fields["volume"] = s.Volume
	}
	if s.InputKnown {
		fields["input_index"] = s.Input.Index
	}
	return fields
}

func (b *Bridge) publishState(state State) {
	msg := NewStateMessage(b.deviceID, b.player.Client().Transport().Address(), state)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(StateTopic(b.deviceID), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

// handleMQTTMessage routes incoming MQTT messages to the right handler.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts[len(parts)-1], payload)
	case "request":
		b.handleRequest(payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

func (b *Bridge) handleCommand(topicDeviceID string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = topicDeviceID
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	ack := b.Execute(b.ctx, cmd)
	b.publishAck(ack)
}

// Execute runs a command against the TV and returns its acknowledgment.
// Accepted commands that change the TV trigger an immediate refresh.
func (b *Bridge) Execute(ctx context.Context, cmd CommandMessage) AckMessage {
	address := b.player.Client().Transport().Address()

	if cmd.DeviceID != b.deviceID {
		return NewAckError(cmd, address, ErrCodeNotConfigured,
			fmt.Sprintf("device %s not configured", cmd.DeviceID))
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	verb, err := b.resolve(cmd)
	if err != nil {
		code := ErrCodeInvalidParameters
		if errors.Is(err, errUnknownBridgeCommand) {
			code = ErrCodeInvalidCommand
		}
		return NewAckError(cmd, address, code, err.Error())
	}

	b.playerMu.Lock()
	outcome := verb(ctx)
	cause := b.player.Err()
	b.playerMu.Unlock()

	switch outcome {
	case OutcomeAccepted:
		if cmd.Command != "refresh" {
			b.RequestRefresh()
		}
		return NewAckMessage(cmd, address)
	case OutcomeRejected:
		return NewAckError(cmd, address, ErrCodeDeviceRejected, "TV answered ERR")
	case OutcomeInvalid:
		return NewAckError(cmd, address, ErrCodeInvalidParameters, "not supported by this TV")
	case OutcomeSkipped:
		return NewAckError(cmd, address, ErrCodeStateUnknown, "TV state not yet read")
	default:
		if errors.Is(cause, ErrTimeout) {
			return NewAckError(cmd, address, ErrCodeTimeout, "TV did not answer in time")
		}
		return NewAckError(cmd, address, ErrCodeDeviceUnreachable, "TV did not respond")
	}
}

var errUnknownBridgeCommand = errors.New("unknown command")

// resolve maps a command name onto a Player verb. The verb must run under
// playerMu.
func (b *Bridge) resolve(cmd CommandMessage) (func(context.Context) Outcome, error) {
	var verb func(context.Context) Outcome
	switch cmd.Command {
	case "refresh":
		verb = func(ctx context.Context) Outcome { return b.refreshLocked(ctx, time.Now()) }
	case "turn_on":
		verb = b.player.TurnOn
	case "turn_off":
		verb = b.player.TurnOff
	case "volume_up":
		verb = b.player.VolumeUp
	case "volume_down":
		verb = b.player.VolumeDown
	case "mute":
		verb = b.player.MuteVolume
	case "media_play":
		verb = b.player.MediaPlay
	case "media_pause":
		verb = b.player.MediaPause
	case "media_play_pause":
		verb = b.player.MediaPlayPause
	case "media_next_track":
		verb = b.player.MediaNextTrack
	case "media_previous_track":
		verb = b.player.MediaPreviousTrack
	case "set_volume":
		level, err := floatParam(cmd.Parameters, "level")
		if err != nil {
			return nil, err
		}
		if level < 0 || level > 1 {
			return nil, fmt.Errorf("level must be between 0 and 1, got %v", level)
		}
		verb = func(ctx context.Context) Outcome { return b.player.SetVolumeLevel(ctx, level) }
	case "select_source":
		source, err := stringParam(cmd.Parameters, "source")
		if err != nil {
			return nil, err
		}
		verb = func(ctx context.Context) Outcome { return b.player.SelectSource(ctx, source) }
	case "remote_button":
		button, err := stringParam(cmd.Parameters, "button")
		if err != nil {
			return nil, err
		}
		verb = func(ctx context.Context) Outcome { return b.player.PressRemoteButton(ctx, button) }
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownBridgeCommand, cmd.Command)
	}

	return verb, nil
}

func floatParam(params map[string]any, name string) (float64, error) {
	v, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("%s parameter is required", name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", name, v)
	}
}

func stringParam(params map[string]any, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", fmt.Errorf("%s parameter is required", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s must be a non-empty string", name)
	}
	return s, nil
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(AckTopic(ack.DeviceID), payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
	if ack.Error != nil {
		b.logError("command failed",
			fmt.Errorf("command_id=%s code=%s message=%s", ack.CommandID, ack.Error.Code, ack.Error.Message))
	}
}

// handleRequest processes a request message from Core.
func (b *Bridge) handleRequest(payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}

	b.logInfo("received request",
		"request_id", req.RequestID,
		"action", req.Action)

	resp := b.answer(req)

	respPayload, err := json.Marshal(resp)
	if err != nil {
		b.logError("failed to marshal response", err)
		return
	}
	if err := b.mqtt.Publish(ResponseTopic(req.RequestID), respPayload, 1, false); err != nil {
		b.logError("failed to publish response", err)
	}
}

func (b *Bridge) answer(req RequestMessage) ResponseMessage {
	resp := ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
	}
	fail := func(code, message string) ResponseMessage {
		resp.Error = &ResponseError{Code: code, Message: message}
		return resp
	}

	if req.DeviceID != "" && req.DeviceID != b.deviceID {
		return fail(ErrCodeNotConfigured, fmt.Sprintf("device %s not configured", req.DeviceID))
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	switch req.Action {
	case "read_state":
		if outcome := b.Refresh(ctx); !outcome.OK() {
			return fail(ErrCodeDeviceUnreachable, "TV did not respond")
		}
		resp.Data = StateMap(b.State())
	case "info":
		info, outcome := b.Info(ctx)
		if !outcome.OK() {
			return fail(ErrCodeDeviceUnreachable, "TV did not respond")
		}
		resp.Data = map[string]any{
			"name":                info.Name,
			"model":               info.Model,
			"software_version":    info.SoftwareVersion,
			"ip_protocol_version": info.IPProtocolVersion,
		}
	case "list_sources":
		resp.Data = map[string]any{"sources": b.Sources()}
	case "list_remote_buttons":
		resp.Data = map[string]any{"buttons": b.RemoteButtons()}
	default:
		return fail(ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	resp.Success = true
	return resp
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
