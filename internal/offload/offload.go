// Package offload implements hybrid dispatch: deciding whether a unit of
// work goes to a remote peer, sending it there, and verifying what comes
// back. Two interchangeable strategies share one contract; any remote
// failure is typed so the dispatcher can fall back to local execution.
package offload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kekahyde/inferd/internal/model"
)

// Kind classifies an offload failure.
type Kind string

const (
	KindTransport    Kind = "transport"
	KindTimeout      Kind = "timeout"
	KindVerification Kind = "verification"
	KindProtocol     Kind = "protocol"
)

// Error is a typed offload failure. Every remote-path failure is one of the
// four kinds; the dispatcher treats any of them as the signal to retry the
// same prompt locally.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("offload %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from err, defaulting to transport for
// untyped errors.
func KindOf(err error) Kind {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr.Kind
	}
	return KindTransport
}

// Peer is a remote process reachable over the wire protocol.
type Peer struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Registry is an ordered set of peers. Ordering is insertion order and never
// reshuffled, so peer selection is deterministic for a given registry state.
// Membership is seeded at startup; there is no discovery.
type Registry struct {
	mu    sync.RWMutex
	peers []Peer
}

// NewRegistry creates a registry seeded with the given peers.
func NewRegistry(peers ...Peer) *Registry {
	r := &Registry{}
	r.peers = append(r.peers, peers...)
	return r
}

// Add appends a peer to the registry.
func (r *Registry) Add(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers = append(r.peers, p)
}

// Peers returns a copy of the peer list in registration order.
func (r *Registry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, len(r.peers))
	copy(out, r.peers)
	return out
}

// First returns the first registered peer, if any.
func (r *Registry) First() (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.peers) == 0 {
		return Peer{}, false
	}
	return r.peers[0], true
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// ShouldOffload reports whether an execution should be dispatched remotely:
// the policy must allow hybrid compute and at least one peer must be known.
func ShouldOffload(policy model.Policy, reg *Registry) bool {
	return policy.AllowHybridCompute && reg.Len() > 0
}

// Strategy dispatches one unit of work to the peer set and returns the
// output text. Failures are reported as *Error so callers can classify them.
type Strategy interface {
	Dispatch(ctx context.Context, prompt string) (string, error)
}
