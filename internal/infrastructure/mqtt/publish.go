package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps outgoing messages. Bridge state and health payloads
// are a few hundred bytes; anything near this is a bug upstream.
const maxPayloadSize = 64 << 10

// Publish sends a message to topic and waits for the broker's acknowledgment
// (QoS 1/2) or for the write to leave the client (QoS 0).
//
// Retain state and health topics so new subscribers see the current value
// immediately. Never retain commands, acknowledgments or responses.
//
// Example:
//
//	topic := mqtt.Topics{}.BridgeState("aquos", "living-room-tv")
//	err := client.Publish(topic, []byte(`{"state":{"power":"on"}}`), 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return wait(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// PublishRetained publishes a retained message with the configured default QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// wait blocks on token for defaultPublishTimeout. Failures wrap op, and
// timeouts also wrap ErrTimeout.
func wait(token pahomqtt.Token, op error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %w after %v", op, ErrTimeout, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", op, err)
	}
	return nil
}
