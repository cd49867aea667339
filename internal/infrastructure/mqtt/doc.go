// Package mqtt provides MQTT client connectivity for the Aquos bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge publishes TV state and health on the Gray Logic topic
// hierarchy and receives commands and requests from it:
//
//	Gray Logic Core ↔ MQTT Broker ↔ Aquos bridge ↔ TV (RS-232C / IP)
//
// # Presence
//
// Connect takes a Presence describing the retained status topic. The
// bridge passes its health topic and LWT payload so that a crash shows
// up as an offline health message without any extra publisher.
//
// # Security Considerations
//
//   - TLS is recommended outside a trusted LAN (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Presence{
//	    Topic: mqtt.Topics{}.BridgeHealth("aquos"),
//	    Will:  lwt,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllBridgeRequests("aquos"), 1,
//	    func(topic string, payload []byte) error {
//	        return handleRequest(topic, payload)
//	    })
package mqtt
