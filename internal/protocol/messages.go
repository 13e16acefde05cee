// Package protocol implements the binary wire format of the legacy Samsung
// TV remote-control service: an outer envelope tagged with a fixed
// application name, and inner payloads for authentication requests, key
// presses, and the TV's response signatures. All multi-byte length fields
// are little-endian u16; string fields travel base64-encoded, with the
// length prefix counting the encoded bytes.
package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds 16-bit length field")
	ErrMalformedFrame  = errors.New("malformed frame")
	ErrInvalidAddress  = errors.New("invalid IP address")
)

// EncodeEnvelope wraps payload in the outer transport envelope:
//
//	00 | u16le len | AppName | u16le len | payload
func EncodeEnvelope(payload []byte) ([]byte, error) {
	if len(payload) > MaxFieldSize {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, 0, 1+2+len(AppName)+2+len(payload))
	buf = append(buf, reservedByte)
	buf = appendField(buf, []byte(AppName))
	buf = appendField(buf, payload)
	return buf, nil
}

// DecodeEnvelope extracts the inner payload from a complete envelope held in
// a buffer. The app name is skipped, not validated; declared lengths that
// overrun the buffer fail with ErrMalformedFrame.
func DecodeEnvelope(frame []byte) ([]byte, error) {
	if len(frame) < 3 {
		return nil, fmt.Errorf("%w: %d bytes, need at least 3", ErrMalformedFrame, len(frame))
	}
	rest := frame[1:] // skip reserved byte

	nameLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < nameLen+2 {
		return nil, fmt.Errorf("%w: app name length %d overruns frame", ErrMalformedFrame, nameLen)
	}
	rest = rest[nameLen:]

	payloadLen := int(binary.LittleEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < payloadLen {
		return nil, fmt.Errorf("%w: payload length %d overruns frame", ErrMalformedFrame, payloadLen)
	}
	return rest[:payloadLen], nil
}

// ReadEnvelope reads one envelope from r and returns its inner payload.
// Reads are exact: one reserved byte, the app-name field, the payload field.
// I/O errors (including EOF mid-frame) are returned as-is so callers can
// tell a dead socket from a malformed frame.
func ReadEnvelope(r io.Reader) ([]byte, error) {
	var hdr [3]byte // reserved byte + app-name length
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	nameLen := binary.LittleEndian.Uint16(hdr[1:3])
	if nameLen > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(nameLen)); err != nil {
			return nil, err
		}
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.LittleEndian.Uint16(lenBuf[:]))
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// EncodeAuthPayload builds the authentication request payload:
//
//	64 | 00 | u16le len + base64(ip) | u16le len + base64(id) | u16le len + base64(name)
//
// ip must be a parseable IPv4 or IPv6 literal — the TV displays it on the
// permission prompt, and garbage here is a bug at the caller, not a network
// condition. id is the controller's self-chosen unique identifier and name
// the human-readable label shown to the user.
func EncodeAuthPayload(ip, id, name string) ([]byte, error) {
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}

	fields := [][]byte{
		encodeBase64(ip),
		encodeBase64(id),
		encodeBase64(name),
	}
	size := 2
	for _, f := range fields {
		if len(f) > MaxFieldSize {
			return nil, ErrPayloadTooLarge
		}
		size += 2 + len(f)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, authMarker, reservedByte)
	for _, f := range fields {
		buf = appendField(buf, f)
	}
	return buf, nil
}

// EncodeKeyPayload builds a key-press payload:
//
//	00 00 00 | u16le len + base64(key)
//
// The key identifier is opaque to this layer; whatever the caller supplies
// is encoded verbatim.
func EncodeKeyPayload(key string) ([]byte, error) {
	enc := encodeBase64(key)
	if len(enc) > MaxFieldSize {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, 0, 3+2+len(enc))
	buf = append(buf, reservedByte, reservedByte, reservedByte)
	buf = appendField(buf, enc)
	return buf, nil
}

// Classify matches an inbound payload against the known response signatures.
func Classify(payload []byte) ResponseKind {
	switch {
	case bytes.Equal(payload, respGranted):
		return ResponseGranted
	case bytes.Equal(payload, respDenied):
		return ResponseDenied
	case bytes.Equal(payload, respAwait):
		return ResponseAwait
	case bytes.Equal(payload, respTimeout):
		return ResponseTimeout
	default:
		return ResponseUnknown
	}
}

// appendField appends a u16le length prefix followed by the field bytes.
// The caller has already checked the MaxFieldSize bound.
func appendField(buf, field []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(field)))
	return append(buf, field...)
}

func encodeBase64(s string) []byte {
	enc := make([]byte, base64.StdEncoding.EncodedLen(len(s)))
	base64.StdEncoding.Encode(enc, []byte(s))
	return enc
}
