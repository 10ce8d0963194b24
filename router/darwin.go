package router

import (
	"context"

	"github.com/Savolro/libtelio/remote"
	"github.com/sirupsen/logrus"
)

const (
	darwinRouteExists = "File exists"
	darwinNoSuchRoute = "not in table"
	darwinNoInterface = "does not exist"
)

// darwinRouter drives ifconfig and the route tool on a macOS target. Path
// disablement uses a blackhole host route; the transport level break
// primitives and UPnP control have no macOS backing and are no-op scopes.
type darwinRouter struct {
	runner
	name  string
	stack IPStack
}

func newDarwinRouter(conn remote.Connection, stack IPStack, l *logrus.Logger) *darwinRouter {
	return &darwinRouter{
		runner: runner{conn: conn, l: l},
		name:   generateInterfaceName("utun"),
		stack:  stack,
	}
}

func (r *darwinRouter) InterfaceName() string {
	return r.name
}

func (r *darwinRouter) SetupInterface(ctx context.Context, addresses []string) error {
	for _, address := range addresses {
		addr, err := parseAddress(address)
		if err != nil {
			return err
		}

		switch {
		case addr.Is4() && r.stack.hasV4():
			err = r.exec(ctx, []string{
				"ifconfig", r.name, "inet", address + "/10", address, "alias",
			}, darwinRouteExists)
		case addr.Is6() && r.stack.hasV6():
			err = r.exec(ctx, []string{
				"ifconfig", r.name, "inet6", "add", address + "/64",
			}, darwinRouteExists)
		}
		if err != nil {
			return err
		}
	}

	return r.exec(ctx, []string{"ifconfig", r.name, "up"})
}

func (r *darwinRouter) DeleteInterface(ctx context.Context) error {
	return r.exec(ctx, []string{"ifconfig", r.name, "destroy"}, darwinNoInterface)
}

func (r *darwinRouter) CreateMeshnetRoute(ctx context.Context) error {
	if r.stack.hasV4() {
		err := r.exec(ctx, []string{
			"route", "-n", "add", "-net", MeshnetCIDRv4, "-interface", r.name,
		}, darwinRouteExists)
		if err != nil {
			return err
		}
	}

	if r.stack.hasV6() {
		err := r.exec(ctx, []string{
			"route", "-n", "add", "-inet6", MeshnetCIDRv6, "-interface", r.name,
		}, darwinRouteExists)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *darwinRouter) CreateVPNRoute(ctx context.Context) error {
	if r.stack == IPv6 {
		return ErrUnsupportedStack
	}

	for _, half := range []string{"0.0.0.0/1", "128.0.0.0/1"} {
		err := r.exec(ctx, []string{
			"route", "-n", "add", "-net", half, "-interface", r.name,
		}, darwinRouteExists)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *darwinRouter) DeleteVPNRoute(ctx context.Context) error {
	if r.stack == IPv6 {
		return ErrUnsupportedStack
	}

	for _, half := range []string{"0.0.0.0/1", "128.0.0.0/1"} {
		err := r.exec(ctx, []string{
			"route", "-n", "delete", "-net", half, "-interface", r.name,
		}, darwinNoSuchRoute)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *darwinRouter) CreateExitNodeRoute(ctx context.Context) error {
	return r.exec(ctx, []string{"sysctl", "-w", "net.inet.ip.forwarding=1"})
}

func (r *darwinRouter) DeleteExitNodeRoute(ctx context.Context) error {
	return r.exec(ctx, []string{"sysctl", "-w", "net.inet.ip.forwarding=0"})
}

func (r *darwinRouter) DisablePath(ctx context.Context, address string) (*Scope, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	add := []string{"route", "-n", "add", "-host", address, "127.0.0.1", "-blackhole"}
	del := []string{"route", "-n", "delete", "-host", address}
	if addr.Is6() {
		add = []string{"route", "-n", "add", "-inet6", "-host", address, "::1", "-blackhole"}
		del = []string{"route", "-n", "delete", "-inet6", "-host", address}
	}

	if err := r.exec(ctx, add, darwinRouteExists); err != nil {
		return nil, err
	}

	return NewScope("disable path "+address, func(ctx context.Context) error {
		return r.exec(ctx, del, darwinNoSuchRoute)
	}), nil
}

func (r *darwinRouter) BreakTCPConnToHost(ctx context.Context, address string) (*Scope, error) {
	return NewScope("break tcp to "+address, nil), nil
}

func (r *darwinRouter) BreakUDPConnToHost(ctx context.Context, address string) (*Scope, error) {
	return NewScope("break udp to "+address, nil), nil
}

func (r *darwinRouter) ResetUpnpd(ctx context.Context) (*Scope, error) {
	return NewScope("reset upnpd", nil), nil
}

func (r *darwinRouter) RouteTable(ctx context.Context) (string, error) {
	return r.output(ctx, []string{"netstat", "-rn"})
}
