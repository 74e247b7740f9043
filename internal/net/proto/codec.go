package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format names a wire encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// Codec encodes frames for one wire format.
type Codec interface {
	Format() Format
	ContentType() string
	// Binary reports whether frames must travel as binary websocket messages.
	Binary() bool
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	// JSON is the default codec.
	JSON Codec = jsonCodec{}
	// Msgpack shares the JSON field names so both layouts stay in step.
	Msgpack Codec = msgpackCodec{}
)

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(value string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatJSON:
		return FormatJSON, true
	case FormatMsgpack, "messagepack":
		return FormatMsgpack, true
	}
	return "", false
}

// CodecFor returns the codec for format.
func CodecFor(format Format) (Codec, error) {
	switch format {
	case "", FormatJSON:
		return JSON, nil
	case FormatMsgpack:
		return Msgpack, nil
	}
	return nil, fmt.Errorf("proto: unknown wire format %q", format)
}

// Negotiate picks the codec matching an Accept or Content-Type header,
// falling back to fallback.
func Negotiate(header string, fallback Codec) Codec {
	if fallback == nil {
		fallback = JSON
	}
	switch {
	case strings.Contains(header, Msgpack.ContentType()):
		return Msgpack
	case strings.Contains(header, JSON.ContentType()):
		return JSON
	}
	return fallback
}

type jsonCodec struct{}

func (jsonCodec) Format() Format      { return FormatJSON }
func (jsonCodec) ContentType() string { return "application/json" }
func (jsonCodec) Binary() bool        { return false }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackCodec struct{}

func (msgpackCodec) Format() Format      { return FormatMsgpack }
func (msgpackCodec) ContentType() string { return "application/msgpack" }
func (msgpackCodec) Binary() bool        { return true }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
