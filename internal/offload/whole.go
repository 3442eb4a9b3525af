package offload

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/kekahyde/inferd/internal/peerlink"
)

// WholePrompt is the primary offload strategy: send the entire prompt to one
// selected peer, let it run its own inference, and verify the digest of the
// returned text before accepting it.
type WholePrompt struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewWholePrompt creates the whole-prompt strategy. The timeout bounds one
// complete exchange with the peer.
func NewWholePrompt(reg *Registry, timeout time.Duration, logger *slog.Logger) *WholePrompt {
	return &WholePrompt{
		registry: reg,
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatch sends prompt to the first registered peer and returns the
// verified output.
func (s *WholePrompt) Dispatch(ctx context.Context, prompt string) (string, error) {
	peer, ok := s.registry.First()
	if !ok {
		return "", newError(KindTransport, "no peers registered")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := peerlink.Call(ctx, peer.Address, prompt)
	if err != nil {
		return "", classify(ctx, err)
	}

	if peerlink.DigestHex([]byte(res.Output)) != res.Hash {
		return "", newError(KindVerification, "digest mismatch from peer %s", peer.ID)
	}

	s.logger.Debug("whole-prompt offload succeeded", "peer_id", peer.ID, "output_len", len(res.Output))
	return res.Output, nil
}

// classify maps a transport-layer error to its offload kind.
func classify(ctx context.Context, err error) *Error {
	var nerr net.Error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.As(err, &nerr) && nerr.Timeout():
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, peerlink.ErrUnknownType), errors.Is(err, peerlink.ErrOversizedFrame):
		return &Error{Kind: KindProtocol, Err: err}
	default:
		return &Error{Kind: KindTransport, Err: err}
	}
}
