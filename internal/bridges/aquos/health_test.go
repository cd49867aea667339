package aquos

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestHealthReporter_Status(t *testing.T) {
	tests := []struct {
		name          string
		mqttConnected bool
		transport     func() Transport
		power         PowerState
		want          HealthStatus
	}{
		{"healthy when on", true, func() Transport { return NewMockTransport() }, PowerOn, HealthHealthy},
		{"healthy in standby", true, func() Transport { return NewMockTransport() }, PowerOff, HealthHealthy},
		{"mqtt down", false, func() Transport { return NewMockTransport() }, PowerOn, HealthDegraded},
		{"no transport", true, func() Transport { return nil }, PowerOn, HealthUnhealthy},
		{"link closed", true, func() Transport {
			tr := NewMockTransport()
			tr.Close()
			return tr
		}, PowerOn, HealthDegraded},
		{"not yet read", true, func() Transport { return NewMockTransport() }, PowerUnknown, HealthDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mqtt := NewMockMQTTClient()
			mqtt.SetConnected(tt.mqttConnected)
			power := tt.power

			h := NewHealthReporter(HealthReporterConfig{
				BridgeID:  "aquos",
				Publisher: mqtt,
				Transport: tt.transport(),
				Power:     func() PowerState { return power },
			})

			got, reason := h.Status()
			if got != tt.want {
				t.Errorf("Status() = %s (%s), want %s", got, reason, tt.want)
			}
			if got != HealthHealthy && reason == "" {
				t.Error("non-healthy status without reason")
			}
		})
	}
}

func TestHealthReporter_PublishNow(t *testing.T) {
	mqtt := NewMockMQTTClient()
	tr := NewMockTransport()
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "aquos-1",
		Version:   "1.2.3",
		Publisher: mqtt,
		Transport: tr,
		Power:     func() PowerState { return PowerOn },
	})

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow() error = %v", err)
	}

	published := mqtt.PublishedTo(HealthTopic())
	if len(published) != 1 {
		t.Fatalf("published = %d, want 1", len(published))
	}
	if !published[0].Retained || published[0].QoS != 1 {
		t.Error("health must be published QoS 1 retained")
	}

	var msg HealthMessage
	if err := json.Unmarshal(published[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Bridge != "aquos-1" || msg.Version != "1.2.3" || msg.Status != HealthHealthy {
		t.Errorf("health = %+v", msg)
	}
	if msg.TVPower != "on" {
		t.Errorf("TVPower = %q", msg.TVPower)
	}
	if msg.Connection == nil || msg.Connection.Status != "connected" || msg.Connection.Address != "mock://tv" {
		t.Errorf("Connection = %+v", msg.Connection)
	}
	if msg.Statistics == nil {
		t.Error("Statistics missing")
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	mqtt := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "aquos",
		Interval:  10 * time.Millisecond,
		Publisher: mqtt,
		Transport: NewMockTransport(),
	})

	h.Start(context.Background())
	waitFor(t, "periodic health", func() bool { return len(mqtt.PublishedTo(HealthTopic())) >= 2 })

	h.Stop()
	h.Stop()

	published := mqtt.PublishedTo(HealthTopic())
	var last HealthMessage
	if err := json.Unmarshal(published[len(published)-1].Payload, &last); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if last.Status != HealthStopping {
		t.Errorf("last status = %s, want stopping", last.Status)
	}

	count := len(published)
	time.Sleep(30 * time.Millisecond)
	if len(mqtt.PublishedTo(HealthTopic())) != count {
		t.Error("health published after Stop")
	}
}

func TestLWTPayload(t *testing.T) {
	payload, err := LWTPayload("aquos-1")
	if err != nil {
		t.Fatalf("LWTPayload() error = %v", err)
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Status != HealthOffline || msg.Bridge != "aquos-1" || msg.Reason == "" {
		t.Errorf("LWT = %+v", msg)
	}
}
