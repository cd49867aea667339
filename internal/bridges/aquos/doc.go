// Package aquos implements the Sharp Aquos TV bridge for Gray Logic.
//
// Aquos TVs accept a line-oriented text protocol over RS-232C or over
// their IP control port (the same protocol tunnelled through TCP). This
// package speaks that protocol and exposes the TV to Gray Logic Core as a
// media player over MQTT.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐  RS-232C / TCP
//	│   Gray Logic    │   MQTT   │  Aquos Bridge   │◄──────────────► Aquos TV
//	│      Core       │◄────────►│   (this pkg)    │
//	└─────────────────┘          └─────────────────┘
//
// The layers, leaf first:
//
//   - CommandTable: regional name → mnemonic map (commands/*.yaml)
//   - Transport: one serial or TCP connection, one exchange at a time
//   - Encode/Decode: fixed-width frames and OK/ERR/integer/string replies
//   - Client: typed get/set operations and the Update cycle
//   - Retry: bounded retry that degrades the observed state to off
//   - Player: media player verbs over Client+Retry, never returning errors
//   - Bridge: MQTT commands, requests, state and health
//
// # Wire Format
//
// A frame is the mnemonic followed by its parameter, left-justified and
// space-padded to eight characters, then CR LF:
//
//	Encode("POWR", "1")  // "POWR1   \r\n"
//	Encode("VOLM", "?")  // "VOLM?   \r\n"
//
// Replies end with CR and are classified in this order: containing "OK",
// containing "ERR", a whole integer, anything else.
//
// # Example
//
//	table, err := aquos.LoadCommandTable("us")
//	if err != nil {
//	    return err
//	}
//	tr, err := aquos.Open(ctx, aquos.ConnectionParams{Address: "/dev/ttyUSB0"})
//	if err != nil {
//	    return err
//	}
//	client, err := aquos.NewClient(aquos.ClientOptions{Commands: table, Transport: tr})
//	if err != nil {
//	    return err
//	}
//	ok, err := client.SetInput(ctx, "hdmi_2")
//
// # Thread Safety
//
// Client and Player assume a single caller. Bridge serialises every access
// to its Player and is safe for concurrent use.
package aquos
