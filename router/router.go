// Package router installs the host level interface and routing state one mesh
// node needs, and exposes the scoped fault primitives tests use to force path
// renegotiation. Routers never talk to the mesh client, only to the injected
// command execution connection, and the variant is picked by the connection's
// target OS because one orchestrator drives machines of mixed families.
package router

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/netip"

	"github.com/Savolro/libtelio/remote"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// Meshnet address ranges every node's mesh addresses are drawn from.
const (
	MeshnetCIDRv4 = "100.64.0.0/10"
	MeshnetCIDRv6 = "fc74:656c:696f::/64"
)

// ErrUnsupportedStack is returned when a VPN route is requested for a stack
// that has no installed default route semantics, IPv6 only VPN in particular.
var ErrUnsupportedStack = errors.New("ip stack does not support vpn routing")

// IPStack declares which address families a router configures. Routes for
// families outside the stack are skipped, not failed.
type IPStack int

const (
	IPv4 IPStack = iota
	IPv6
	IPv4v6
)

func (s IPStack) String() string {
	switch s {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	case IPv4v6:
		return "ipv4v6"
	}
	return fmt.Sprintf("unknown stack (%d)", int(s))
}

func (s IPStack) hasV4() bool { return s == IPv4 || s == IPv4v6 }
func (s IPStack) hasV6() bool { return s == IPv6 || s == IPv4v6 }

// Router manages one node's local network state. Setup and teardown
// operations are idempotent: the specific "already exists" and "not found"
// command failures are recognized and swallowed so tests can set up and tear
// down the same topology repeatedly. Fault primitives return a Scope owning
// exactly one release action.
type Router interface {
	InterfaceName() string

	SetupInterface(ctx context.Context, addresses []string) error
	DeleteInterface(ctx context.Context) error

	CreateMeshnetRoute(ctx context.Context) error
	CreateVPNRoute(ctx context.Context) error
	DeleteVPNRoute(ctx context.Context) error
	CreateExitNodeRoute(ctx context.Context) error
	DeleteExitNodeRoute(ctx context.Context) error

	// DisablePath black holes traffic toward address at the routing layer
	// until the scope is closed.
	DisablePath(ctx context.Context, address string) (*Scope, error)
	// BreakTCPConnToHost resets new and established TCP connections to
	// address until the scope is closed.
	BreakTCPConnToHost(ctx context.Context, address string) (*Scope, error)
	// BreakUDPConnToHost rejects UDP traffic to address until the scope is
	// closed.
	BreakUDPConnToHost(ctx context.Context, address string) (*Scope, error)
	// ResetUpnpd stops the UPnP daemon, letting NAT mappings expire, and
	// restarts it when the scope is closed.
	ResetUpnpd(ctx context.Context) (*Scope, error)

	// RouteTable snapshots the routing state visible to this router, used
	// by tests to verify fault rollback left nothing behind.
	RouteTable(ctx context.Context) (string, error)
}

// New builds the router variant for the connection's target OS. Interface
// names carry a random suffix so two routers never fight over one interface.
func New(conn remote.Connection, stack IPStack, l *logrus.Logger) Router {
	switch conn.TargetOS() {
	case remote.Darwin:
		return newDarwinRouter(conn, stack, l)
	case remote.Windows:
		return newWindowsRouter(conn, stack, l)
	default:
		return newLinuxRouter(conn, stack, l)
	}
}

var (
	metricCommands  = metrics.GetOrRegisterCounter("router.commands", nil)
	metricSwallowed = metrics.GetOrRegisterCounter("router.swallowed_errors", nil)
)

func generateInterfaceName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, 100+rand.Intn(8900))
}

func parseAddress(address string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid ip address %q: %w", address, err)
	}
	return addr.Unmap(), nil
}

// runner executes commands on the bound connection, swallowing the known
// idempotent failure classes.
type runner struct {
	conn remote.Connection
	l    *logrus.Logger
}

func (r runner) exec(ctx context.Context, argv []string, swallow ...string) error {
	metricCommands.Inc(1)
	r.l.WithField("cmd", argv).Trace("Running router command")

	_, err := r.conn.Execute(ctx, argv)
	if err == nil {
		return nil
	}

	var execErr *remote.ExecError
	if errors.As(err, &execErr) {
		for _, sub := range swallow {
			if execErr.OutputContains(sub) {
				metricSwallowed.Inc(1)
				r.l.WithFields(logrus.Fields{"cmd": argv, "match": sub}).
					Debug("Ignoring idempotent command failure")
				return nil
			}
		}
	}

	return err
}

func (r runner) output(ctx context.Context, argv []string) (string, error) {
	metricCommands.Inc(1)
	out, err := r.conn.Execute(ctx, argv)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}
