package commsutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const codecLogPrefix = "commsutil:codec"

// ErrEmptyPayload is returned when a COMMS message carries no data.
var ErrEmptyPayload = errors.New("empty payload")

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s - encode: %w", codecLogPrefix, err)
	}
	return data, nil
}

// DecodePayload deserializes exactly one JSON document from data into v.
func DecodePayload(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%s - decode: %w", codecLogPrefix, ErrEmptyPayload)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s - decode: %w", codecLogPrefix, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%s - decode: trailing data after JSON document", codecLogPrefix)
	}
	return nil
}
