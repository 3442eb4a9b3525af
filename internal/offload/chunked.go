package offload

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Processor executes one chunk on one peer and returns its partial result.
// It is pluggable so tests and alternate transports can substitute their
// own per-chunk work.
type Processor func(ctx context.Context, peer Peer, c Chunk) (PartialResult, error)

// SimulateProcessing mirrors what a cooperating peer does with a chunk:
// apply the transform and digest the transformed payload. It stands in for
// a remote call; the transform itself is a placeholder, not partial
// inference.
func SimulateProcessing(ctx context.Context, _ Peer, c Chunk) (PartialResult, error) {
	// Model a network round trip so timeout behavior is observable.
	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
		return PartialResult{}, ctx.Err()
	}

	data := ReverseTransform(c.Data)
	return PartialResult{
		ChunkID: c.ID,
		Data:    data,
		Hash:    PayloadDigest(data),
	}, nil
}

// Chunked is the alternate offload strategy: split the tokenized prompt
// into fixed-size chunks, fan them out across the peer set in parallel
// under one shared deadline, then reassemble in ordinal order and verify
// every partial digest. There is no partial acceptance: one failed, slow,
// or tampered chunk fails the whole dispatch.
type Chunked struct {
	registry  *Registry
	chunkSize int
	timeout   time.Duration
	process   Processor
	logger    *slog.Logger
}

// NewChunked creates the chunked strategy with the given per-dispatch
// deadline shared by all parallel chunk calls.
func NewChunked(reg *Registry, chunkSize int, timeout time.Duration, process Processor, logger *slog.Logger) *Chunked {
	return &Chunked{
		registry:  reg,
		chunkSize: chunkSize,
		timeout:   timeout,
		process:   process,
		logger:    logger,
	}
}

// Dispatch runs the chunked fan-out for one prompt.
func (s *Chunked) Dispatch(ctx context.Context, prompt string) (string, error) {
	peers := s.registry.Peers()
	if len(peers) == 0 {
		return "", newError(KindTransport, "no peers registered")
	}

	chunks := SplitTokens(Tokenize(prompt), s.chunkSize)
	if len(chunks) == 0 {
		return "", newError(KindProtocol, "prompt produced no tokens")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		partial PartialResult
		err     error
	}
	results := make(chan outcome, len(chunks))

	for i, c := range chunks {
		c := c
		// Deterministic round-robin assignment.
		peer := peers[i%len(peers)]
		go func() {
			defer func() {
				// A fault inside a chunk call counts as a transport failure
				// and must not take the dispatcher down with it.
				if r := recover(); r != nil {
					results <- outcome{err: newError(KindTransport, "chunk %s: panic: %v", c.ID, r)}
				}
			}()
			p, err := s.process(ctx, peer, c)
			results <- outcome{partial: p, err: err}
		}()
	}

	partials := make([]PartialResult, 0, len(chunks))
	for range chunks {
		select {
		case out := <-results:
			if out.err != nil {
				cancel() // abort the remaining parallel chunk work
				return "", chunkError(out.err)
			}
			partials = append(partials, out.partial)
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", newError(KindTimeout, "chunk execution timed out after %s", s.timeout)
			}
			return "", newError(KindTransport, "chunk execution aborted: %v", ctx.Err())
		}
	}

	full, err := MergeResults(partials)
	if err != nil {
		return "", err
	}
	if !Verify(full) {
		return "", newError(KindVerification, "partial result digest mismatch")
	}

	s.logger.Debug("chunked offload succeeded", "chunks", len(chunks), "peers", len(peers))
	return full.Result, nil
}

// chunkError normalizes a per-chunk failure to a typed offload error.
func chunkError(err error) error {
	var oerr *Error
	if errors.As(err, &oerr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindTransport, Err: err}
}
