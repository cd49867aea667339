package aquos

import (
	"errors"
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		mnemonic  string
		parameter string
		want      string
	}{
		{"set power", "POWR", "1", "POWR1   \r\n"},
		{"query", "VOLM", "?", "VOLM?   \r\n"},
		{"no parameter", "RCKY33", "", "RCKY33  \r\n"},
		{"parameter in mnemonic", "IAVD?", "", "IAVD?   \r\n"},
		{"exactly eight", "DA2P", "0504", "DA2P0504\r\n"},
		{"longer than eight is not truncated", "DC2U", "01234", "DC2U01234\r\n"},
		{"empty", "", "", "        \r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Encode(tt.mnemonic, tt.parameter))
			if got != tt.want {
				t.Errorf("Encode(%q, %q) = %q, want %q", tt.mnemonic, tt.parameter, got, tt.want)
			}
		})
	}
}

func TestEncode_RegionBeforeTerminator(t *testing.T) {
	for _, body := range []string{"P", "POWR1", "POWR1234", "POWR12345", "ABCDEFGHIJKL"} {
		frame := string(Encode(body, ""))
		if !strings.HasSuffix(frame, "\r\n") {
			t.Fatalf("frame %q lacks CR LF", frame)
		}
		region := strings.TrimSuffix(frame, "\r\n")
		want := max(len(body), frameWidth)
		if len(region) != want {
			t.Errorf("Encode(%q) region width = %d, want %d", body, len(region), want)
		}
		if !strings.HasPrefix(region, body) {
			t.Errorf("Encode(%q) region = %q, want prefix %q", body, region, body)
		}
	}
}

func TestEncode_SingleBytePerCharacter(t *testing.T) {
	frame := Encode("TVNM", "é")
	if len(frame) != frameWidth+len(frameTerminator) {
		t.Fatalf("len(frame) = %d, want %d", len(frame), frameWidth+len(frameTerminator))
	}
	if frame[4] != 0xE9 {
		t.Errorf("frame[4] = %#x, want Latin-1 0xe9", frame[4])
	}

	frame = Encode("TVNM", "€")
	if len(frame) != frameWidth+len(frameTerminator) {
		t.Errorf("non-Latin-1 frame length = %d, want %d", len(frame), frameWidth+len(frameTerminator))
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind ReplyKind
		wantInt  int
		wantText string
	}{
		{"OK\r", ReplyAck, 0, "OK"},
		{"ERR\r", ReplyNack, 0, "ERR"},
		{"42\r", ReplyInteger, 42, "42"},
		{"  7 \r\n", ReplyInteger, 7, "7"},
		{"-1\r", ReplyInteger, -1, "-1"},
		{"HDMI_IN_2\r", ReplyString, 0, "HDMI_IN_2"},
		{"LC-60LE650U\r", ReplyString, 0, "LC-60LE650U"},
		{"OK ERR\r", ReplyAck, 0, "OK ERR"},
		{"ERR OK\r", ReplyAck, 0, "ERR OK"},
		{"\r", ReplyString, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := Decode([]byte(tt.raw))
			if got.Kind != tt.wantKind {
				t.Errorf("Decode(%q).Kind = %v, want %v", tt.raw, got.Kind, tt.wantKind)
			}
			if got.Int != tt.wantInt {
				t.Errorf("Decode(%q).Int = %d, want %d", tt.raw, got.Int, tt.wantInt)
			}
			if got.Text != tt.wantText {
				t.Errorf("Decode(%q).Text = %q, want %q", tt.raw, got.Text, tt.wantText)
			}
		})
	}
}

func TestEncodeDecode_Replies(t *testing.T) {
	frame := Encode("POWR", "1")
	if string(frame) != "POWR1   \r\n" {
		t.Fatalf("Encode() = %q", frame)
	}

	if r := Decode([]byte("OK\r")); r.Kind != ReplyAck {
		t.Errorf("OK decoded as %v", r.Kind)
	}
	if r := Decode([]byte("ERR\r")); r.Kind != ReplyNack {
		t.Errorf("ERR decoded as %v", r.Kind)
	}
	if r := Decode([]byte("42\r")); r.Kind != ReplyInteger || r.Int != 42 {
		t.Errorf("42 decoded as %v %d", r.Kind, r.Int)
	}
	if r := Decode([]byte("HDMI_IN_2\r")); r.Kind != ReplyString || r.String() != "HDMI_IN_2" {
		t.Errorf("HDMI_IN_2 decoded as %v %q", r.Kind, r.Text)
	}
}

func TestReply_Integer(t *testing.T) {
	n, err := Decode([]byte("30\r")).Integer("volume")
	if err != nil || n != 30 {
		t.Fatalf("Integer() = %d, %v; want 30, nil", n, err)
	}

	_, err = Decode([]byte("ERR\r")).Integer("volume")
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("Integer() on ERR error = %v, want ErrMalformedReply", err)
	}
	var mre *MalformedReplyError
	if !errors.As(err, &mre) {
		t.Fatalf("error is not *MalformedReplyError: %T", err)
	}
	if mre.Operation != "volume" || mre.Reply.Kind != ReplyNack {
		t.Errorf("MalformedReplyError = %+v", mre)
	}
}

func TestReply_Acknowledged(t *testing.T) {
	tests := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{"OK\r", true, false},
		{"ERR\r", false, false},
		{"1\r", false, true},
		{"WAIT\r", false, true},
	}

	for _, tt := range tests {
		got, err := Decode([]byte(tt.raw)).Acknowledged("power")
		if (err != nil) != tt.wantErr {
			t.Errorf("Acknowledged(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("Acknowledged(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestReplyKind_String(t *testing.T) {
	if ReplyAck.String() != "ack" || ReplyNack.String() != "nack" ||
		ReplyInteger.String() != "integer" || ReplyString.String() != "string" {
		t.Error("unexpected ReplyKind names")
	}
	if got := ReplyKind(9).String(); got != "ReplyKind(9)" {
		t.Errorf("ReplyKind(9).String() = %q", got)
	}
}
