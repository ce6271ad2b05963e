package transport

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ControlMessage is a transport-level liveness message, separate from
// application payloads.
//
// CBOR encoding:
//
//	{
//	  1: type      // uint: 1=ping, 2=pong, 3=close
//	  2: sequence  // uint: probe sequence number, omitted when zero
//	}
type ControlMessage struct {
	Type     ControlType `cbor:"1,keyasint"`
	Sequence uint32      `cbor:"2,keyasint,omitempty"`
}

// ControlType identifies a control message.
type ControlType uint8

const (
	// ControlPing is a liveness probe.
	ControlPing ControlType = 1

	// ControlPong acknowledges a ping.
	ControlPong ControlType = 2

	// ControlClose announces a graceful close.
	ControlClose ControlType = 3
)

// String returns the control type name.
func (t ControlType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}

// ErrNotControl indicates a frame that is not a control message.
var ErrNotControl = errors.New("not a control message")

// ctrlEncMode is the CBOR encoder mode for control messages.
// Configured for deterministic encoding with integer keys.
var ctrlEncMode cbor.EncMode

// ctrlDecMode is the CBOR decoder mode for control messages.
var ctrlDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	ctrlEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Strict decoding: the decode result discriminates control messages
	// from application payloads, so unknown fields and duplicate keys
	// must reject the frame rather than be skipped. Anything rejected
	// here is delivered as an application payload instead.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}
	ctrlDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// EncodeControlMessage encodes a control message to CBOR bytes.
func EncodeControlMessage(msg *ControlMessage) ([]byte, error) {
	return ctrlEncMode.Marshal(msg)
}

// DecodeControlMessage decodes CBOR bytes into a control message.
// It returns ErrNotControl when the frame is not a well-formed control
// message, letting callers fall through to application payload handling.
// A frame only counts as control when it decodes strictly: exactly the
// control fields, no extras, and a type in range. Application payloads
// that happen to be integer-keyed CBOR maps with additional fields are
// therefore never consumed as control traffic.
func DecodeControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := ctrlDecMode.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotControl, err)
	}
	if msg.Type < ControlPing || msg.Type > ControlClose {
		return nil, fmt.Errorf("%w: type %d out of range", ErrNotControl, msg.Type)
	}
	return &msg, nil
}
