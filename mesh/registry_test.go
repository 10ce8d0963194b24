package mesh

import (
	"testing"

	"github.com/Savolro/libtelio/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	l := test.NewLogger()
	r := NewRegistry(l)

	alpha, err := r.Register("alpha", "alpha-id", "alpha-sk", "alpha-pk")
	require.NoError(t, err)
	assert.Equal(t, "alpha", alpha.Name)
	assert.Equal(t, "alpha.nord", alpha.Hostname)
	assert.Empty(t, alpha.IPAddresses)
	assert.Empty(t, alpha.Endpoints)
	assert.Empty(t, alpha.FirewallRules)

	_, err = r.Register("other", "alpha-id", "sk", "pk")
	var dup *DuplicateIdentityError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "alpha-id", dup.ID)

	// distinct ids never collide
	_, err = r.Register("beta", "beta-id", "beta-sk", "beta-pk")
	require.NoError(t, err)
	assert.Len(t, r.Nodes(), 2)
}

func TestRegistry_Remove(t *testing.T) {
	l := test.NewLogger()
	r := NewRegistry(l)

	var unknown *UnknownIdentityError
	require.ErrorAs(t, r.Remove("nope"), &unknown)

	_, err := r.Register("alpha", "alpha-id", "sk", "pk")
	require.NoError(t, err)
	require.NoError(t, r.AssignAddress("alpha-id", "100.64.0.1"))
	require.NoError(t, r.Remove("alpha-id"))

	// same id may be registered again, starting from a clean slate
	alpha, err := r.Register("alpha", "alpha-id", "sk", "pk")
	require.NoError(t, err)
	assert.Empty(t, alpha.IPAddresses)
	assert.Empty(t, alpha.Endpoints)
	assert.Empty(t, alpha.FirewallRules)

	// the removed node's address is claimable again
	require.NoError(t, r.AssignAddress("alpha-id", "100.64.0.1"))
}

func TestRegistry_RemoveKeepsStaleFirewallRules(t *testing.T) {
	l := test.NewLogger()
	r := NewRegistry(l)

	_, err := r.Register("alpha", "alpha-id", "sk", "pk")
	require.NoError(t, err)
	_, err = r.Register("beta", "beta-id", "sk", "pk")
	require.NoError(t, err)

	require.NoError(t, r.SetPeerFirewall("alpha-id", "beta-id", true, true))
	require.NoError(t, r.Remove("beta-id"))

	// the stale rule stays recorded but a lookup for a brand new peer id
	// still falls back to default-deny
	rule, err := r.Firewall("alpha-id", "beta-id")
	require.NoError(t, err)
	assert.True(t, rule.AllowIncomingConnections)

	rule, err = r.Firewall("alpha-id", "gamma-id")
	require.NoError(t, err)
	assert.Equal(t, FirewallRule{}, rule)
}

func TestRegistry_AssignAddress(t *testing.T) {
	l := test.NewLogger()
	r := NewRegistry(l)

	var unknown *UnknownIdentityError
	require.ErrorAs(t, r.AssignAddress("nope", "100.64.0.1"), &unknown)

	_, err := r.Register("alpha", "alpha-id", "sk", "pk")
	require.NoError(t, err)
	_, err = r.Register("beta", "beta-id", "sk", "pk")
	require.NoError(t, err)

	require.NoError(t, r.AssignAddress("alpha-id", "100.64.0.1"))
	require.NoError(t, r.AssignAddress("beta-id", "100.64.0.2"))

	// appending a second, distinct address is fine
	require.NoError(t, r.AssignAddress("alpha-id", "fc74:656c:696f::1"))
	alpha, err := r.Node("alpha-id")
	require.NoError(t, err)
	assert.Equal(t, []string{"100.64.0.1", "fc74:656c:696f::1"}, alpha.IPAddresses)

	// registry wide collision, reported with the holder's id
	gamma, err := r.Register("gamma", "gamma-id", "sk", "pk")
	require.NoError(t, err)
	err = r.AssignAddress("gamma-id", "100.64.0.1")
	var collision *AddressCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "alpha-id", collision.HolderID)
	assert.Equal(t, "100.64.0.1", collision.Address)
	assert.Empty(t, gamma.IPAddresses)

	// collision is detected for nodes registered after the holder too
	err = r.AssignAddress("gamma-id", "100.64.0.2")
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "beta-id", collision.HolderID)

	// re-assigning an address a node already holds collides with itself
	err = r.AssignAddress("alpha-id", "100.64.0.1")
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "alpha-id", collision.HolderID)

	err = r.AssignAddress("alpha-id", "not-an-ip")
	require.Error(t, err)
}

func TestRegistry_AssignEndpoint(t *testing.T) {
	l := test.NewLogger()
	r := NewRegistry(l)

	_, err := r.Register("alpha", "alpha-id", "sk", "pk")
	require.NoError(t, err)
	_, err = r.Register("beta", "beta-id", "sk", "pk")
	require.NoError(t, err)

	require.NoError(t, r.AssignEndpoint("alpha-id", "10.0.254.1:51820"))
	// endpoints are not collision checked, nodes behind the same NAT share one
	require.NoError(t, r.AssignEndpoint("beta-id", "10.0.254.1:51820"))

	alpha, err := r.Node("alpha-id")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.254.1:51820"}, alpha.Endpoints)

	var unknown *UnknownIdentityError
	require.ErrorAs(t, r.AssignEndpoint("nope", "x"), &unknown)
}

func TestRegistry_Firewall(t *testing.T) {
	l := test.NewLogger()
	r := NewRegistry(l)

	_, err := r.Register("alpha", "alpha-id", "sk", "pk")
	require.NoError(t, err)

	// rules may be declared for peers that are not registered yet
	require.NoError(t, r.SetPeerFirewall("alpha-id", "beta-id", true, false))

	rule, err := r.Firewall("alpha-id", "beta-id")
	require.NoError(t, err)
	assert.True(t, rule.AllowIncomingConnections)
	assert.False(t, rule.AllowPeerSendFiles)

	// overwrite, not merge
	require.NoError(t, r.SetPeerFirewall("alpha-id", "beta-id", false, true))
	rule, err = r.Firewall("alpha-id", "beta-id")
	require.NoError(t, err)
	assert.Equal(t, FirewallRule{AllowPeerSendFiles: true}, rule)

	var unknown *UnknownIdentityError
	require.ErrorAs(t, r.SetPeerFirewall("nope", "alpha-id", true, true), &unknown)
	_, err = r.Firewall("nope", "alpha-id")
	require.ErrorAs(t, err, &unknown)
}

func TestRegistry_Nicknames(t *testing.T) {
	l := test.NewLogger()
	r := NewRegistry(l)

	_, err := r.Register("alpha", "alpha-id", "sk", "pk")
	require.NoError(t, err)
	_, err = r.Register("beta", "beta-id", "sk", "pk")
	require.NoError(t, err)

	require.NoError(t, r.AssignNickname("alpha-id", "johnny"))

	var nick *NicknameError
	require.ErrorAs(t, r.AssignNickname("beta-id", "johnny"), &nick)
	require.ErrorAs(t, r.AssignNickname("beta-id", "alpha"), &nick)
	require.ErrorAs(t, r.AssignNickname("beta-id", ""), &nick)
	require.ErrorAs(t, r.AssignNickname("beta-id", "has space"), &nick)
	require.ErrorAs(t, r.AssignNickname("beta-id", "abcdefghijklmnopqrstuvwxyz"), &nick)

	// re-assigning your own nickname is not a conflict
	require.NoError(t, r.AssignNickname("alpha-id", "johnny"))
	require.NoError(t, r.AssignNickname("alpha-id", "rotten"))

	require.NoError(t, r.ResetNickname("alpha-id"))
	alpha, err := r.Node("alpha-id")
	require.NoError(t, err)
	assert.Empty(t, alpha.Nickname)

	// freed nickname is usable by someone else
	require.NoError(t, r.AssignNickname("beta-id", "rotten"))
}

func TestNode_ClientConfig(t *testing.T) {
	l := test.NewLogger()
	r := NewRegistry(l)

	alpha, err := r.Register("alpha", "alpha-id", "alpha-sk", "alpha-pk")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"name": "alpha",
		"id":   "alpha-id",
		"sk":   "alpha-sk",
		"pk":   "alpha-pk",
	}, alpha.ClientConfig())
}
