package router

import (
	"context"
	"testing"

	"github.com/Savolro/libtelio/remote"
	"github.com/Savolro/libtelio/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWindowsTestRouter(t *testing.T, stack IPStack) (*windowsRouter, *remote.FakeConnection) {
	t.Helper()
	conn := remote.NewFakeConnection(remote.Windows)
	r := newWindowsRouter(conn, stack, test.NewLogger())
	return r, conn
}

func TestWindowsRouter_SetupInterface(t *testing.T) {
	r, conn := newWindowsTestRouter(t, IPv4v6)

	err := r.SetupInterface(context.Background(), []string{"100.64.0.1", "fc74:656c:696f::1"})
	require.NoError(t, err)

	name := r.InterfaceName()
	assert.Equal(t, []string{
		"netsh interface ipv4 add address " + name + " 100.64.0.1 255.255.255.255",
		"netsh interface ipv6 add address " + name + " fc74:656c:696f::1/128",
	}, conn.CommandStrings())
}

func TestWindowsRouter_MeshnetRouteAlreadyExists(t *testing.T) {
	r, conn := newWindowsTestRouter(t, IPv4)
	name := r.InterfaceName()

	conn.FailWith(
		[]string{"netsh", "interface", "ipv4", "add", "route", "100.64.0.0/10", name},
		"The object already exists.\r\n", "", 1,
	)

	require.NoError(t, r.CreateMeshnetRoute(context.Background()))
}

func TestWindowsRouter_VPNRoute(t *testing.T) {
	r, conn := newWindowsTestRouter(t, IPv4)
	ctx := context.Background()

	require.NoError(t, r.CreateVPNRoute(ctx))
	require.NoError(t, r.DeleteVPNRoute(ctx))

	name := r.InterfaceName()
	assert.Equal(t, []string{
		"netsh interface ipv4 add route 0.0.0.0/0 " + name + " metric=1",
		"netsh interface ipv4 delete route 0.0.0.0/0 " + name,
	}, conn.CommandStrings())
}

func TestWindowsRouter_VPNRouteUnsupportedOnIPv6Only(t *testing.T) {
	r, _ := newWindowsTestRouter(t, IPv6)
	require.ErrorIs(t, r.CreateVPNRoute(context.Background()), ErrUnsupportedStack)
	require.ErrorIs(t, r.DeleteVPNRoute(context.Background()), ErrUnsupportedStack)
}

func TestWindowsRouter_DeleteVPNRouteSwallowsKnownFailures(t *testing.T) {
	for _, out := range []string{
		"Element not found.\r\n",
		"The filename, directory name, or volume label syntax is incorrect.\r\n",
	} {
		r, conn := newWindowsTestRouter(t, IPv4)
		conn.FailWith(
			[]string{"netsh", "interface", "ipv4", "delete", "route", "0.0.0.0/0", r.InterfaceName()},
			out, "", 1,
		)
		require.NoError(t, r.DeleteVPNRoute(context.Background()))
	}
}

func TestWindowsRouter_DeleteInterfaceIsNoOp(t *testing.T) {
	r, conn := newWindowsTestRouter(t, IPv4)
	require.NoError(t, r.DeleteInterface(context.Background()))
	assert.Empty(t, conn.Commands())
}

// Windows has no fault injection backing, the primitives still honor the
// enter/exit contract so call sites stay uniform across platforms.
func TestWindowsRouter_FaultPrimitivesAreNoOpScopes(t *testing.T) {
	r, conn := newWindowsTestRouter(t, IPv4)
	ctx := context.Background()

	scope, err := r.DisablePath(ctx, "10.0.80.80")
	require.NoError(t, err)
	require.NoError(t, scope.Close())

	scope, err = r.BreakTCPConnToHost(ctx, "10.0.80.80")
	require.NoError(t, err)
	require.NoError(t, scope.Close())

	scope, err = r.BreakUDPConnToHost(ctx, "10.0.80.80")
	require.NoError(t, err)
	require.NoError(t, scope.Close())

	scope, err = r.ResetUpnpd(ctx)
	require.NoError(t, err)
	require.NoError(t, scope.Close())

	assert.Empty(t, conn.Commands())

	_, err = r.DisablePath(ctx, "not-an-ip")
	require.Error(t, err)
}
