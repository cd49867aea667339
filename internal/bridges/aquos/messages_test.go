package aquos

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{CommandTopic("tv-1"), "graylogic/command/aquos/tv-1"},
		{AckTopic("tv-1"), "graylogic/ack/aquos/tv-1"},
		{StateTopic("tv-1"), "graylogic/state/aquos/tv-1"},
		{HealthTopic(), "graylogic/health/aquos"},
		{RequestTopic("r1"), "graylogic/request/aquos/r1"},
		{ResponseTopic("r1"), "graylogic/response/aquos/r1"},
		{CommandSubscribeTopic(), "graylogic/command/aquos/+"},
		{RequestSubscribeTopic(), "graylogic/request/aquos/+"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestStateMap(t *testing.T) {
	unknown := StateMap(State{})
	if unknown["power"] != "unknown" || unknown["muted"] != false {
		t.Errorf("StateMap(zero) = %v", unknown)
	}
	for _, key := range []string{"volume", "source", "input_index"} {
		if _, ok := unknown[key]; ok {
			t.Errorf("StateMap(zero) has %q, want it omitted", key)
		}
	}

	full := StateMap(State{
		Power:       PowerOn,
		Muted:       true,
		Volume:      0.5,
		VolumeKnown: true,
		Input:       Input{Key: "hdmi_2", Name: "HDMI_IN_2", Index: 2},
		InputKnown:  true,
	})
	if full["power"] != "on" || full["muted"] != true || full["volume"] != 0.5 ||
		full["source"] != "HDMI_IN_2" || full["input_index"] != 2 {
		t.Errorf("StateMap(full) = %v", full)
	}
}

func TestCommandMessage_UnmarshalJSON(t *testing.T) {
	var cmd CommandMessage
	data := []byte(`{"id":"c1","timestamp":"2026-03-01T10:00:00Z","device_id":"tv","command":"set_volume","parameters":{"level":0.25}}`)
	if err := json.Unmarshal(data, &cmd); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cmd.ID != "c1" || cmd.Command != "set_volume" || cmd.Parameters["level"] != 0.25 {
		t.Errorf("cmd = %+v", cmd)
	}
	if !cmd.Timestamp.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", cmd.Timestamp)
	}

	var noTime CommandMessage
	if err := json.Unmarshal([]byte(`{"id":"c2","command":"mute"}`), &noTime); err != nil {
		t.Errorf("Unmarshal() without timestamp error = %v", err)
	}

	var bad CommandMessage
	if err := json.Unmarshal([]byte(`{"id":"c3","timestamp":"yesterday"}`), &bad); err == nil {
		t.Error("Unmarshal() with bad timestamp error = nil")
	}
}

func TestNewAckError(t *testing.T) {
	cmd := CommandMessage{ID: "c1", DeviceID: "tv"}

	failed := NewAckError(cmd, "mock://tv", ErrCodeDeviceRejected, "TV answered ERR")
	if failed.Status != AckFailed || failed.Error.Code != ErrCodeDeviceRejected {
		t.Errorf("ack = %+v", failed)
	}

	timeout := NewAckError(cmd, "mock://tv", ErrCodeTimeout, "slow")
	if timeout.Status != AckTimeout {
		t.Errorf("timeout ack status = %s", timeout.Status)
	}

	ok := NewAckMessage(cmd, "mock://tv")
	if ok.Status != AckAccepted || ok.Error != nil || ok.Address != "mock://tv" {
		t.Errorf("ack = %+v", ok)
	}
}

func TestNewHealthMessage_Disconnected(t *testing.T) {
	msg := NewHealthMessage("aquos", "v1", HealthDegraded, "/dev/ttyUSB0",
		TransportStats{TimeoutsTotal: 4}, PowerOff, time.Now().Add(-time.Minute))

	if msg.Connection.Status != "disconnected" || msg.Connection.LastActivity != nil {
		t.Errorf("Connection = %+v", msg.Connection)
	}
	if msg.Statistics.Timeouts != 4 || msg.TVPower != "off" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.UptimeSeconds < 59 {
		t.Errorf("UptimeSeconds = %d", msg.UptimeSeconds)
	}
}
