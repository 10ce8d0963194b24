package router

import (
	"context"

	"github.com/Savolro/libtelio/remote"
	"github.com/sirupsen/logrus"
)

const (
	windowsObjectExists = "The object already exists."
	windowsNotFound     = "Element not found."
	windowsBadSyntax    = "The filename, directory name, or volume label syntax is incorrect."
)

// windowsRouter drives netsh on a Windows target. The wintun driver owns the
// interface lifecycle, so interface deletion is a no-op, and there is no
// fault injection backing on Windows: the fault primitives return no-op
// scopes that still honor the enter/exit contract.
type windowsRouter struct {
	runner
	name  string
	stack IPStack
}

func newWindowsRouter(conn remote.Connection, stack IPStack, l *logrus.Logger) *windowsRouter {
	return &windowsRouter{
		runner: runner{conn: conn, l: l},
		name:   generateInterfaceName("wintun"),
		stack:  stack,
	}
}

func (r *windowsRouter) InterfaceName() string {
	return r.name
}

func (r *windowsRouter) SetupInterface(ctx context.Context, addresses []string) error {
	for _, address := range addresses {
		addr, err := parseAddress(address)
		if err != nil {
			return err
		}

		switch {
		case addr.Is4() && r.stack.hasV4():
			err = r.exec(ctx, []string{
				"netsh", "interface", "ipv4", "add", "address",
				r.name, address, "255.255.255.255",
			}, windowsObjectExists)
		case addr.Is6() && r.stack.hasV6():
			err = r.exec(ctx, []string{
				"netsh", "interface", "ipv6", "add", "address",
				r.name, address + "/128",
			}, windowsObjectExists)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *windowsRouter) DeleteInterface(ctx context.Context) error {
	// the adapter removes the wintun device with the tunnel itself
	return nil
}

func (r *windowsRouter) CreateMeshnetRoute(ctx context.Context) error {
	if r.stack.hasV4() {
		err := r.exec(ctx, []string{
			"netsh", "interface", "ipv4", "add", "route", MeshnetCIDRv4, r.name,
		}, windowsObjectExists)
		if err != nil {
			return err
		}
	}

	if r.stack.hasV6() {
		err := r.exec(ctx, []string{
			"netsh", "interface", "ipv6", "add", "route", MeshnetCIDRv6, r.name,
		}, windowsObjectExists)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *windowsRouter) CreateVPNRoute(ctx context.Context) error {
	if r.stack == IPv6 {
		return ErrUnsupportedStack
	}

	return r.exec(ctx, []string{
		"netsh", "interface", "ipv4", "add", "route", "0.0.0.0/0", r.name, "metric=1",
	}, windowsObjectExists)
}

func (r *windowsRouter) DeleteVPNRoute(ctx context.Context) error {
	if r.stack == IPv6 {
		return ErrUnsupportedStack
	}

	return r.exec(ctx, []string{
		"netsh", "interface", "ipv4", "delete", "route", "0.0.0.0/0", r.name,
	}, windowsNotFound, windowsBadSyntax)
}

func (r *windowsRouter) CreateExitNodeRoute(ctx context.Context) error {
	return nil
}

func (r *windowsRouter) DeleteExitNodeRoute(ctx context.Context) error {
	return nil
}

func (r *windowsRouter) DisablePath(ctx context.Context, address string) (*Scope, error) {
	if _, err := parseAddress(address); err != nil {
		return nil, err
	}
	return NewScope("disable path "+address, nil), nil
}

func (r *windowsRouter) BreakTCPConnToHost(ctx context.Context, address string) (*Scope, error) {
	return NewScope("break tcp to "+address, nil), nil
}

func (r *windowsRouter) BreakUDPConnToHost(ctx context.Context, address string) (*Scope, error) {
	return NewScope("break udp to "+address, nil), nil
}

func (r *windowsRouter) ResetUpnpd(ctx context.Context) (*Scope, error) {
	return NewScope("reset upnpd", nil), nil
}

func (r *windowsRouter) RouteTable(ctx context.Context) (string, error) {
	return r.output(ctx, []string{"route", "print"})
}
