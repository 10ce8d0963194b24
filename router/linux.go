package router

import (
	"context"
	"strings"

	"github.com/Savolro/libtelio/remote"
	"github.com/sirupsen/logrus"
)

// Known iproute2/iptables outputs for already-configured and already-removed
// objects. Matching failures are swallowed during setup and teardown.
const (
	linuxObjectExists = "File exists"
	linuxNoSuchRoute  = "No such process"
	linuxNoDevice     = "Cannot find device"
	linuxNoRule       = "Bad rule"
	linuxNoUpnpd      = "no process found"
	linuxNoConntrack  = "0 flow entries"
)

// Interfaces the gateway containers run upnpd and NAT on.
const (
	linuxWANInterface = "eth0"
	linuxLANInterface = "eth1"
)

type linuxRouter struct {
	runner
	name  string
	stack IPStack
}

func newLinuxRouter(conn remote.Connection, stack IPStack, l *logrus.Logger) *linuxRouter {
	return &linuxRouter{
		runner: runner{conn: conn, l: l},
		name:   generateInterfaceName("tun"),
		stack:  stack,
	}
}

func (r *linuxRouter) InterfaceName() string {
	return r.name
}

func (r *linuxRouter) SetupInterface(ctx context.Context, addresses []string) error {
	for _, address := range addresses {
		addr, err := parseAddress(address)
		if err != nil {
			return err
		}

		switch {
		case addr.Is4() && r.stack.hasV4():
			err = r.exec(ctx, []string{
				"ip", "-4", "addr", "add", address + "/10", "dev", r.name,
			}, linuxObjectExists)
		case addr.Is6() && r.stack.hasV6():
			err = r.exec(ctx, []string{
				"ip", "-6", "addr", "add", address + "/64", "dev", r.name,
			}, linuxObjectExists)
		}
		if err != nil {
			return err
		}
	}

	return r.exec(ctx, []string{"ip", "link", "set", "dev", r.name, "up"})
}

func (r *linuxRouter) DeleteInterface(ctx context.Context) error {
	return r.exec(ctx, []string{"ip", "link", "delete", r.name}, linuxNoDevice)
}

func (r *linuxRouter) CreateMeshnetRoute(ctx context.Context) error {
	if r.stack.hasV4() {
		err := r.exec(ctx, []string{
			"ip", "-4", "route", "add", MeshnetCIDRv4, "dev", r.name,
		}, linuxObjectExists)
		if err != nil {
			return err
		}
	}

	if r.stack.hasV6() {
		err := r.exec(ctx, []string{
			"ip", "-6", "route", "add", MeshnetCIDRv6, "dev", r.name,
		}, linuxObjectExists)
		if err != nil {
			return err
		}
	}

	return nil
}

// CreateVPNRoute overrides the default route with two half-space routes so
// the original default stays untouched and teardown is a plain delete.
func (r *linuxRouter) CreateVPNRoute(ctx context.Context) error {
	if r.stack == IPv6 {
		return ErrUnsupportedStack
	}

	for _, half := range []string{"0.0.0.0/1", "128.0.0.0/1"} {
		err := r.exec(ctx, []string{
			"ip", "-4", "route", "add", half, "dev", r.name,
		}, linuxObjectExists)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *linuxRouter) DeleteVPNRoute(ctx context.Context) error {
	if r.stack == IPv6 {
		return ErrUnsupportedStack
	}

	for _, half := range []string{"0.0.0.0/1", "128.0.0.0/1"} {
		err := r.exec(ctx, []string{
			"ip", "-4", "route", "del", half, "dev", r.name,
		}, linuxNoSuchRoute)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *linuxRouter) CreateExitNodeRoute(ctx context.Context) error {
	if r.stack.hasV4() {
		if err := r.exec(ctx, []string{"sysctl", "-w", "net.ipv4.ip_forward=1"}); err != nil {
			return err
		}
		err := r.exec(ctx, []string{
			"iptables", "-t", "nat", "-A", "POSTROUTING",
			"-s", MeshnetCIDRv4, "-o", linuxWANInterface, "-j", "MASQUERADE",
		})
		if err != nil {
			return err
		}
	}

	if r.stack.hasV6() {
		if err := r.exec(ctx, []string{"sysctl", "-w", "net.ipv6.conf.all.forwarding=1"}); err != nil {
			return err
		}
		err := r.exec(ctx, []string{
			"ip6tables", "-t", "nat", "-A", "POSTROUTING",
			"-s", MeshnetCIDRv6, "-o", linuxWANInterface, "-j", "MASQUERADE",
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *linuxRouter) DeleteExitNodeRoute(ctx context.Context) error {
	if r.stack.hasV4() {
		err := r.exec(ctx, []string{
			"iptables", "-t", "nat", "-D", "POSTROUTING",
			"-s", MeshnetCIDRv4, "-o", linuxWANInterface, "-j", "MASQUERADE",
		}, linuxNoRule)
		if err != nil {
			return err
		}
	}

	if r.stack.hasV6() {
		err := r.exec(ctx, []string{
			"ip6tables", "-t", "nat", "-D", "POSTROUTING",
			"-s", MeshnetCIDRv6, "-o", linuxWANInterface, "-j", "MASQUERADE",
		}, linuxNoRule)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *linuxRouter) DisablePath(ctx context.Context, address string) (*Scope, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	family, prefix := "-4", address+"/32"
	if addr.Is6() {
		family, prefix = "-6", address+"/128"
	}

	err = r.exec(ctx, []string{
		"ip", family, "route", "add", "blackhole", prefix,
	}, linuxObjectExists)
	if err != nil {
		return nil, err
	}

	return NewScope("disable path "+address, func(ctx context.Context) error {
		return r.exec(ctx, []string{
			"ip", family, "route", "del", "blackhole", prefix,
		}, linuxNoSuchRoute)
	}), nil
}

func (r *linuxRouter) BreakTCPConnToHost(ctx context.Context, address string) (*Scope, error) {
	return r.breakConnToHost(ctx, address, "tcp")
}

func (r *linuxRouter) BreakUDPConnToHost(ctx context.Context, address string) (*Scope, error) {
	return r.breakConnToHost(ctx, address, "udp")
}

func (r *linuxRouter) breakConnToHost(ctx context.Context, address, proto string) (*Scope, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	iptables := "iptables"
	if addr.Is6() {
		iptables = "ip6tables"
	}

	reject := []string{"-j", "REJECT"}
	if proto == "tcp" {
		reject = append(reject, "--reject-with", "tcp-reset")
	}

	out := append([]string{
		iptables, "-t", "filter", "-A", "OUTPUT", "-d", address, "-p", proto,
	}, reject...)
	in := append([]string{
		iptables, "-t", "filter", "-A", "INPUT", "-s", address, "-p", proto,
	}, reject...)

	if err := r.exec(ctx, out); err != nil {
		return nil, err
	}
	if err := r.exec(ctx, in); err != nil {
		// keep enter/exit symmetry, drop the half-installed rule
		_ = r.exec(ctx, deleteRule(out), linuxNoRule)
		return nil, err
	}

	// established flows must re-handshake, not ride cached conntrack state
	err = r.exec(ctx, []string{
		"conntrack", "-D", "-p", proto, "--orig-dst", address,
	}, linuxNoConntrack)
	if err != nil {
		_ = r.exec(ctx, deleteRule(out), linuxNoRule)
		_ = r.exec(ctx, deleteRule(in), linuxNoRule)
		return nil, err
	}

	return NewScope("break "+proto+" to "+address, func(ctx context.Context) error {
		outErr := r.exec(ctx, deleteRule(out), linuxNoRule)
		inErr := r.exec(ctx, deleteRule(in), linuxNoRule)
		if outErr != nil {
			return outErr
		}
		return inErr
	}), nil
}

// deleteRule turns an iptables append into the matching delete.
func deleteRule(appendRule []string) []string {
	out := make([]string, len(appendRule))
	copy(out, appendRule)
	for i, arg := range out {
		if arg == "-A" {
			out[i] = "-D"
			break
		}
	}
	return out
}

func (r *linuxRouter) ResetUpnpd(ctx context.Context) (*Scope, error) {
	if err := r.exec(ctx, []string{"killall", "upnpd"}, linuxNoUpnpd); err != nil {
		return nil, err
	}

	// wipe the conntrack list too, otherwise established mappings keep
	// working long after the daemon is gone
	if err := r.exec(ctx, []string{"conntrack", "-F"}); err != nil {
		return nil, err
	}

	return NewScope("reset upnpd", func(ctx context.Context) error {
		return r.exec(ctx, []string{"upnpd", linuxWANInterface, linuxLANInterface})
	}), nil
}

func (r *linuxRouter) RouteTable(ctx context.Context) (string, error) {
	var parts []string

	if r.stack.hasV4() {
		out, err := r.output(ctx, []string{"ip", "-4", "route", "show"})
		if err != nil {
			return "", err
		}
		parts = append(parts, out)
	}

	if r.stack.hasV6() {
		out, err := r.output(ctx, []string{"ip", "-6", "route", "show"})
		if err != nil {
			return "", err
		}
		parts = append(parts, out)
	}

	return strings.Join(parts, ""), nil
}
