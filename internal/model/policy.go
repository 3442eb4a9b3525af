package model

import (
	"errors"
	"fmt"
)

// ErrPolicyViolation is returned when a request asks for a capability that
// is force-denied server-side.
var ErrPolicyViolation = errors.New("policy violation")

// Policy is the capability set requested for one execution. Networking and
// telemetry are disabled by build configuration regardless of the requested
// value; hybrid compute passes through and only has effect when a peer is
// registered.
type Policy struct {
	AllowNetworking    bool `json:"allow_networking"`
	AllowHybridCompute bool `json:"allow_hybrid_compute"`
	AllowTelemetry     bool `json:"allow_telemetry"`
}

// Enforce rejects requests for disabled capabilities and returns the
// normalized policy. Requesting networking or telemetry is a hard rejection
// of the whole request, not a silent downgrade.
func (p Policy) Enforce() (Policy, error) {
	if p.AllowNetworking {
		return Policy{}, fmt.Errorf("%w: networking is disabled by build configuration", ErrPolicyViolation)
	}
	if p.AllowTelemetry {
		return Policy{}, fmt.Errorf("%w: telemetry is disabled by build configuration", ErrPolicyViolation)
	}
	return Policy{AllowHybridCompute: p.AllowHybridCompute}, nil
}
