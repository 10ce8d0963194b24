package router

import (
	"testing"

	"github.com/Savolro/libtelio/remote"
	"github.com/Savolro/libtelio/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DispatchesOnTargetOS(t *testing.T) {
	l := test.NewLogger()

	r := New(remote.NewFakeConnection(remote.Linux), IPv4, l)
	assert.IsType(t, &linuxRouter{}, r)

	r = New(remote.NewFakeConnection(remote.Darwin), IPv4, l)
	assert.IsType(t, &darwinRouter{}, r)

	r = New(remote.NewFakeConnection(remote.Windows), IPv4, l)
	assert.IsType(t, &windowsRouter{}, r)
}

func TestNew_InterfaceNamePrefixes(t *testing.T) {
	l := test.NewLogger()

	r := New(remote.NewFakeConnection(remote.Linux), IPv4, l)
	assert.Regexp(t, `^tun\d+$`, r.InterfaceName())

	r = New(remote.NewFakeConnection(remote.Darwin), IPv4, l)
	assert.Regexp(t, `^utun\d+$`, r.InterfaceName())

	r = New(remote.NewFakeConnection(remote.Windows), IPv4, l)
	assert.Regexp(t, `^wintun\d+$`, r.InterfaceName())
}

func TestNew_InterfaceNamesAreCollisionResistant(t *testing.T) {
	l := test.NewLogger()

	// two routers on the same host must not target one interface, so names
	// must vary between instances
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		r := New(remote.NewFakeConnection(remote.Linux), IPv4, l)
		seen[r.InterfaceName()] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestIPStackString(t *testing.T) {
	assert.Equal(t, "ipv4", IPv4.String())
	assert.Equal(t, "ipv6", IPv6.String())
	assert.Equal(t, "ipv4v6", IPv4v6.String())
}

func TestIPStackFamilies(t *testing.T) {
	assert.True(t, IPv4.hasV4())
	assert.False(t, IPv4.hasV6())
	assert.False(t, IPv6.hasV4())
	assert.True(t, IPv6.hasV6())
	assert.True(t, IPv4v6.hasV4())
	assert.True(t, IPv4v6.hasV6())
}

func TestParseAddress(t *testing.T) {
	a, err := parseAddress("100.64.0.1")
	require.NoError(t, err)
	assert.True(t, a.Is4())

	a, err = parseAddress("fc74:656c:696f::1")
	require.NoError(t, err)
	assert.True(t, a.Is6())

	_, err = parseAddress("100.64.0.1/32")
	require.Error(t, err)
}
