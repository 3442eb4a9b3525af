package peerlink

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, "translate this"); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	// Check the frame layout byte for byte: type 2, then LE length.
	raw := buf.Bytes()
	if raw[0] != MsgTypeExecutePrompt {
		t.Errorf("type byte = %d, want %d", raw[0], MsgTypeExecutePrompt)
	}
	if got := binary.LittleEndian.Uint32(raw[1:5]); got != uint32(len("translate this")) {
		t.Errorf("length field = %d, want %d", got, len("translate this"))
	}

	prompt, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if prompt != "translate this" {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestResultRoundTrip(t *testing.T) {
	original := InferenceResult{
		Output: "the answer",
		Hash:   DigestHex([]byte("the answer")),
	}

	var buf bytes.Buffer
	if err := WriteResult(&buf, original); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	if buf.Bytes()[0] != MsgTypeResult {
		t.Errorf("type byte = %d, want %d", buf.Bytes()[0], MsgTypeResult)
	}

	decoded, err := ReadResult(&buf)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if decoded != original {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestReadRequestUnknownType(t *testing.T) {
	// Type byte 9 followed by a plausible length; the type must be rejected
	// before the length is consumed.
	buf := bytes.NewReader([]byte{9, 4, 0, 0, 0, 'a', 'b', 'c', 'd'})

	_, err := ReadRequest(buf)
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
	// Only the type byte should have been consumed.
	if buf.Len() != 8 {
		t.Errorf("consumed %d bytes past the type byte", 8-buf.Len())
	}
}

func TestReadRequestTruncatedLength(t *testing.T) {
	buf := bytes.NewReader([]byte{MsgTypeExecutePrompt, 0x01, 0x00})
	if _, err := ReadRequest(buf); err == nil {
		t.Fatal("expected error for truncated length field")
	}
}

func TestReadRequestTruncatedPayload(t *testing.T) {
	// Length declares 100 bytes but only 2 follow.
	frame := []byte{MsgTypeExecutePrompt, 100, 0, 0, 0, 'h', 'i'}
	if _, err := ReadRequest(bytes.NewReader(frame)); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestReadRequestOversized(t *testing.T) {
	var frame bytes.Buffer
	frame.WriteByte(MsgTypeExecutePrompt)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], MaxPayloadSize+1)
	frame.Write(lenBuf[:])

	_, err := ReadRequest(&frame)
	if !errors.Is(err, ErrOversizedFrame) {
		t.Fatalf("err = %v, want ErrOversizedFrame", err)
	}
}

func TestReadResultRejectsRequestType(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, "prompt"); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if _, err := ReadResult(&buf); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
}

func TestReadResultMalformedJSON(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(MsgTypeResult)
	payload := []byte("not json")
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf.Write(lenBuf[:])
	buf.Write(payload)

	if _, err := ReadResult(&buf); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestWriteRequestEmptyPrompt(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRequest(&buf, ""); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	prompt, err := ReadRequest(&buf)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if prompt != "" {
		t.Errorf("prompt = %q, want empty", prompt)
	}
}

func TestDigestHexStable(t *testing.T) {
	a := DigestHex([]byte("payload"))
	b := DigestHex([]byte("payload"))
	if a != b {
		t.Error("digest not deterministic")
	}
	if len(a) != 64 || strings.ToLower(a) != a {
		t.Errorf("digest %q is not lowercase hex sha-256", a)
	}
	if DigestHex([]byte("payloae")) == a {
		t.Error("distinct payloads produced identical digests")
	}
}
