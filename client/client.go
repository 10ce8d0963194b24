// Package client is the thin handle on the external mesh/VPN client under
// test. The daemon itself lives outside this repository, tests only feed it
// mesh maps and await its connection state transitions.
package client

import (
	"context"

	"github.com/Savolro/libtelio/mesh"
)

// State is a peer connection state reported by the client.
type State string

const (
	Connecting   State = "connecting"
	Connected    State = "connected"
	Disconnected State = "disconnected"
)

// PathType is the transport category a peer connection currently uses. It is
// observed and asserted by tests, never computed here.
type PathType string

const (
	PathRelay  PathType = "relay"
	PathDirect PathType = "direct"
	PathVPN    PathType = "vpn"
)

// Event is one observed peer state transition.
type Event struct {
	PublicKey string
	State     State
	Path      PathType
}

// Client is the capability surface the test driver uses. Implementations wrap
// the real daemon's RPC; Fake stands in for it in unit tests.
type Client interface {
	// SetMeshMap delivers a compiled peer discovery document. Called again
	// after every registry mutation to push incremental updates.
	SetMeshMap(ctx context.Context, m *mesh.MeshMap) error

	ConnectToVPN(ctx context.Context, ip string, port int, publicKey string) error

	// WaitForPeerState blocks until the peer identified by publicKey
	// reports one of the wanted states, optionally restricted to the given
	// path types. An empty paths slice accepts any path.
	WaitForPeerState(ctx context.Context, publicKey string, states []State, paths []PathType) error

	Stop(ctx context.Context) error
}
