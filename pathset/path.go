// Package pathset implements the per-node registry of in-flight and
// established onion paths: selection by role, endpoint, freshness and
// XOR-distance, plus lifecycle and tick operations.
package pathset

import "github.com/tzf-key/loki-network/xnode"

// Status is the lifecycle state of a Path.
type Status int

const (
	StatusBuilding Status = iota
	StatusEstablished
	StatusExpired
	StatusIgnore
)

// Role is a capability bit a path may support (exit, service, DHT
// lookup, ...) used to filter selection.
type Role uint32

// RoleAny matches every path regardless of its supported roles.
const RoleAny Role = ^Role(0)

// SupportsAny reports whether any bit of want is set in have.
func SupportsAny(have, want Role) bool {
	return have&want != 0
}

// Introduction is a short-lived token advertised to remote services for
// reverse contact: which path it rides, when it expires, and the
// path's last observed round-trip latency.
type Introduction struct {
	PathID    xnode.PathID
	Router    xnode.RouterID
	ExpiresAt int64
	LatencyMS int64
}

// Clear resets intro to its zero value, matching Introduction::Clear().
func (i *Introduction) Clear() {
	*i = Introduction{}
}

// Path is the abstract entity a PathSet owns. Its full definition
// belongs to the surrounding onion-circuit protocol, so only the
// surface pathset itself needs is declared here.
type Path interface {
	Status() Status
	SupportsAnyRoles(roles Role) bool
	Endpoint() xnode.RouterID
	RXID() xnode.PathID
	Upstream() xnode.RouterID
	IsEndpoint(ep xnode.RouterID, id xnode.PathID) bool
	IsReady() bool
	ExpiresSoon(now int64) bool
	Expired(now int64) bool
	Introduction() Introduction
	Tick(now int64, r any)
	HopsString() string
}
