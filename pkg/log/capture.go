package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Capture files are streams of integer-keyed CBOR maps, one per Event.
// Encoding is canonical so two captures of the same exchange are
// byte-comparable; decoding skips unknown fields so readers stay
// compatible with captures written by newer vigil implementations.
var (
	captureEnc cbor.EncMode
	captureDec cbor.DecMode
)

func init() {
	enc, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture encode mode: %v", err))
	}
	captureEnc = enc

	dec, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture decode mode: %v", err))
	}
	captureDec = dec
}

// MarshalEvent encodes a single event in capture wire form.
func MarshalEvent(event Event) ([]byte, error) {
	return captureEnc.Marshal(event)
}

// UnmarshalEvent decodes a single event from capture wire form.
func UnmarshalEvent(data []byte) (Event, error) {
	var event Event
	if err := captureDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Writer appends events to a capture stream. It is the writing counterpart
// of Reader; FileLogger wraps one for .vlog files.
//
// Writer does not serialize concurrent calls; wrap it in a FileLogger (or
// equivalent) when multiple goroutines write.
type Writer struct {
	encoder *cbor.Encoder
}

// NewWriter creates a Writer that appends events to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{encoder: captureEnc.NewEncoder(w)}
}

// Write appends one event to the stream.
func (w *Writer) Write(event Event) error {
	return w.encoder.Encode(event)
}
