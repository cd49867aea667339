package aquos

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Wire format constants.
const (
	// frameWidth is the minimum width of the mnemonic+parameter region.
	frameWidth = 8

	// frameTerminator ends every outgoing frame.
	frameTerminator = "\r\n"

	// replyTerminator ends every reply from the TV.
	replyTerminator = '\r'

	// queryParam asks the TV for the current value instead of setting one.
	queryParam = "?"
)

// ReplyKind classifies a decoded reply.
type ReplyKind int

const (
	// ReplyAck is an affirmative acknowledgment ("OK").
	ReplyAck ReplyKind = iota

	// ReplyNack is a negative acknowledgment ("ERR").
	ReplyNack

	// ReplyInteger is a whole decimal value.
	ReplyInteger

	// ReplyString is any other text.
	ReplyString
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyAck:
		return "ack"
	case ReplyNack:
		return "nack"
	case ReplyInteger:
		return "integer"
	case ReplyString:
		return "string"
	default:
		return fmt.Sprintf("ReplyKind(%d)", int(k))
	}
}

// Reply is a decoded TV reply. Int is only meaningful for ReplyInteger.
// Text always holds the trimmed reply.
type Reply struct {
	Kind ReplyKind
	Int  int
	Text string
}

// Encode builds the wire frame for a resolved mnemonic and optional parameter.
//
// The mnemonic+parameter region is left-justified and space-padded to eight
// characters (never truncated), then terminated with CR LF. Characters outside
// Latin-1 are replaced so the frame stays one byte per character.
func Encode(mnemonic, parameter string) []byte {
	body := mnemonic + parameter
	if n := len([]rune(body)); n < frameWidth {
		body += strings.Repeat(" ", frameWidth-n)
	}
	body += frameTerminator

	encoded, err := charmap.ISO8859_1.NewEncoder().String(body)
	if err != nil {
		// Only reachable with runes outside Latin-1.
		encoded = latin1Fallback(body)
	}
	return []byte(encoded)
}

func latin1Fallback(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > 0xFF {
			r = '?'
		}
		b.WriteByte(byte(r))
	}
	return b.String()
}

// Decode classifies a raw reply.
//
// The trimmed text is checked for "OK" before "ERR", so a reply containing
// both is an Ack.
func Decode(raw []byte) Reply {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		decoded = raw
	}
	text := strings.TrimSpace(string(decoded))

	switch {
	case strings.Contains(text, "OK"):
		return Reply{Kind: ReplyAck, Text: text}
	case strings.Contains(text, "ERR"):
		return Reply{Kind: ReplyNack, Text: text}
	}

	if n, err := strconv.Atoi(text); err == nil {
		return Reply{Kind: ReplyInteger, Int: n, Text: text}
	}
	return Reply{Kind: ReplyString, Text: text}
}

// Integer returns the value of an integer reply.
func (r Reply) Integer(operation string) (int, error) {
	if r.Kind != ReplyInteger {
		return 0, &MalformedReplyError{Operation: operation, Reply: r, Want: "integer"}
	}
	return r.Int, nil
}

// Acknowledged maps Ack to true and Nack to false.
func (r Reply) Acknowledged(operation string) (bool, error) {
	switch r.Kind {
	case ReplyAck:
		return true, nil
	case ReplyNack:
		return false, nil
	default:
		return false, &MalformedReplyError{Operation: operation, Reply: r, Want: "OK or ERR"}
	}
}

// String returns the trimmed reply text.
func (r Reply) String() string {
	return r.Text
}
