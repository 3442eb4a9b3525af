// Package peerlink implements the framed wire protocol spoken between a
// daemon and its peers. A request frame carries a UTF-8 prompt; a response
// frame carries the generated text plus a digest the caller re-verifies.
package peerlink

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Wire message types, one byte on the wire.
const (
	MsgTypeExecutePrompt byte = 2
	MsgTypeResult        byte = 3
)

// MaxPayloadSize caps the declared length of any frame payload (16 MiB).
const MaxPayloadSize = 16 << 20

var (
	// ErrUnknownType is returned when a frame's type byte is not recognized.
	// The serving side closes the connection without a response.
	ErrUnknownType = errors.New("unknown message type")

	// ErrOversizedFrame is returned when a frame declares a payload larger
	// than MaxPayloadSize. The length is rejected before any allocation.
	ErrOversizedFrame = errors.New("frame exceeds maximum payload size")
)

// InferenceResult is the JSON payload of a result frame. Hash is the
// lowercase hex SHA-256 of Output, computed by the peer and recomputed by
// the caller before the output is accepted.
type InferenceResult struct {
	Output string `json:"output"`
	Hash   string `json:"hash"`
}

// DigestHex returns the lowercase hex SHA-256 digest of b.
func DigestHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// WriteRequest frames prompt as an execute-prompt request:
// 1-byte type, 4-byte little-endian length, then the prompt bytes.
func WriteRequest(w io.Writer, prompt string) error {
	return writeFrame(w, MsgTypeExecutePrompt, []byte(prompt))
}

// WriteResult frames res as a result message with a JSON payload.
func WriteResult(w io.Writer, res InferenceResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return writeFrame(w, MsgTypeResult, payload)
}

// ReadRequest reads an execute-prompt frame. Any other type byte is rejected
// before the length field is consumed, so a serving role can close the
// connection without echoing a partial frame.
func ReadRequest(r io.Reader) (string, error) {
	typ, err := readType(r)
	if err != nil {
		return "", err
	}
	if typ != MsgTypeExecutePrompt {
		return "", fmt.Errorf("%w: 0x%02x", ErrUnknownType, typ)
	}
	payload, err := readPayload(r)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// ReadResult reads and decodes a result frame.
func ReadResult(r io.Reader) (InferenceResult, error) {
	typ, err := readType(r)
	if err != nil {
		return InferenceResult{}, err
	}
	if typ != MsgTypeResult {
		return InferenceResult{}, fmt.Errorf("%w: 0x%02x", ErrUnknownType, typ)
	}
	payload, err := readPayload(r)
	if err != nil {
		return InferenceResult{}, err
	}

	var res InferenceResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return InferenceResult{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

func writeFrame(w io.Writer, msgType byte, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrOversizedFrame
	}

	buf := make([]byte, 0, 5+len(payload))
	buf = append(buf, msgType)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func readType(r io.Reader) (byte, error) {
	var typ [1]byte
	if _, err := io.ReadFull(r, typ[:]); err != nil {
		return 0, fmt.Errorf("read frame type: %w", err)
	}
	return typ[0], nil
}

// readPayload reads the 4-byte little-endian length and then exactly that
// many payload bytes. A short read on either surfaces an error rather than
// blocking past the reader's deadline or panicking on a hostile length.
func readPayload(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}

	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > MaxPayloadSize {
		return nil, fmt.Errorf("%w: declared %d bytes", ErrOversizedFrame, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}
