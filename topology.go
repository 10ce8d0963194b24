package natlab

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Savolro/libtelio/config"
	"github.com/Savolro/libtelio/mesh"
)

// RegistryFromConfig builds a populated registry from the topology.nodes
// section. Each entry needs name, id and a keypair; addresses, endpoints and
// nickname are optional.
func RegistryFromConfig(l *logrus.Logger, c *config.C) (*mesh.Registry, error) {
	raw, ok := c.Get("topology.nodes").([]any)
	if !ok {
		return nil, fmt.Errorf("topology.nodes is not defined or is not a list")
	}

	r := mesh.NewRegistry(l)
	for i, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("topology.nodes[%d] is not a map", i)
		}

		name, _ := m["name"].(string)
		id, _ := m["id"].(string)
		sk, _ := m["sk"].(string)
		pk, _ := m["pk"].(string)

		if _, err := r.Register(name, id, sk, pk); err != nil {
			return nil, fmt.Errorf("topology.nodes[%d]: %w", i, err)
		}

		for _, a := range stringList(m["addresses"]) {
			if err := r.AssignAddress(id, a); err != nil {
				return nil, fmt.Errorf("topology.nodes[%d]: %w", i, err)
			}
		}
		for _, ep := range stringList(m["endpoints"]) {
			if err := r.AssignEndpoint(id, ep); err != nil {
				return nil, fmt.Errorf("topology.nodes[%d]: %w", i, err)
			}
		}

		if nick, ok := m["nickname"].(string); ok && nick != "" {
			if err := r.AssignNickname(id, nick); err != nil {
				return nil, fmt.Errorf("topology.nodes[%d]: %w", i, err)
			}
		}
	}

	return r, nil
}

func stringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
