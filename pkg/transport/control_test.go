package transport

import (
	"errors"
	"testing"
)

func TestControlMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  ControlMessage
	}{
		{name: "ping with sequence", msg: ControlMessage{Type: ControlPing, Sequence: 42}},
		{name: "pong echoes sequence", msg: ControlMessage{Type: ControlPong, Sequence: 42}},
		{name: "close has no sequence", msg: ControlMessage{Type: ControlClose}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeControlMessage(&tt.msg)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}

			got, err := DecodeControlMessage(data)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got.Type != tt.msg.Type || got.Sequence != tt.msg.Sequence {
				t.Errorf("got %+v, want %+v", got, tt.msg)
			}
		})
	}
}

func TestDecodeControlMessageRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "not CBOR", data: []byte("plain application payload")},
		{name: "empty", data: nil},
		// {1: 0} decodes but 0 is not a valid control type.
		{name: "type out of range", data: []byte{0xa1, 0x01, 0x00}},
		// {1: 1, 3: "x"} looks like a ping but carries an unknown field;
		// such frames are application payloads, not control messages.
		{name: "extra field", data: []byte{0xa2, 0x01, 0x01, 0x03, 0x61, 0x78}},
		// {1: 1, 1: 2} duplicates the type key.
		{name: "duplicate key", data: []byte{0xa2, 0x01, 0x01, 0x01, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeControlMessage(tt.data)
			if !errors.Is(err, ErrNotControl) {
				t.Errorf("expected ErrNotControl, got %v", err)
			}
		})
	}
}

func TestControlTypeString(t *testing.T) {
	if ControlPing.String() != "ping" || ControlPong.String() != "pong" || ControlClose.String() != "close" {
		t.Error("unexpected control type names")
	}
	if ControlType(9).String() != "unknown" {
		t.Error("unexpected name for invalid type")
	}
}
