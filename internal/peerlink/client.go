package peerlink

import (
	"context"
	"fmt"
)

// Call sends prompt to the peer at addr and returns the parsed result. The
// context bounds the whole exchange: connect, send, and receive. The digest
// carried in the result is NOT verified here; that belongs to the offload
// layer, which decides what a mismatch means.
func Call(ctx context.Context, addr, prompt string) (InferenceResult, error) {
	conn, err := Dial(ctx, addr)
	if err != nil {
		return InferenceResult{}, fmt.Errorf("dial peer: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return InferenceResult{}, fmt.Errorf("set deadline: %w", err)
		}
	}

	// Close the connection if the context is cancelled mid-exchange so a
	// blocked read unblocks with an error instead of waiting out the deadline.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := WriteRequest(conn, prompt); err != nil {
		return InferenceResult{}, err
	}
	return ReadResult(conn)
}
