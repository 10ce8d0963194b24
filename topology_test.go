package natlab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Savolro/libtelio/config"
	"github.com/Savolro/libtelio/test"
)

func TestRegistryFromConfig(t *testing.T) {
	l := test.NewLogger()
	c := config.NewC(l)

	require.NoError(t, c.LoadString(`
topology:
  nodes:
    - name: alpha
      id: alpha-id
      sk: alpha-sk
      pk: alpha-pk
      addresses:
        - 100.64.0.1
      endpoints:
        - 10.0.254.1
      nickname: fuji
    - name: beta
      id: beta-id
      sk: beta-sk
      pk: beta-pk
      addresses:
        - 100.64.0.2
`))

	r, err := RegistryFromConfig(l, c)
	require.NoError(t, err)

	nodes := r.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "alpha", nodes[0].Name)
	assert.Equal(t, "alpha.nord", nodes[0].Hostname)
	assert.Equal(t, "fuji", nodes[0].Nickname)
	assert.Equal(t, []string{"100.64.0.1"}, nodes[0].IPAddresses)
	assert.Equal(t, []string{"10.0.254.1"}, nodes[0].Endpoints)
	assert.Equal(t, "beta-id", nodes[1].ID)
}

func TestRegistryFromConfigErrors(t *testing.T) {
	l := test.NewLogger()

	c := config.NewC(l)
	require.NoError(t, c.LoadString("logging:\n  level: info\n"))
	_, err := RegistryFromConfig(l, c)
	assert.Error(t, err)

	c = config.NewC(l)
	require.NoError(t, c.LoadString(`
topology:
  nodes:
    - name: alpha
      id: alpha-id
      sk: sk
      pk: pk
      addresses:
        - 100.64.0.1
    - name: beta
      id: beta-id
      sk: sk
      pk: pk
      addresses:
        - 100.64.0.1
`))
	_, err = RegistryFromConfig(l, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topology.nodes[1]")
}
