package mesh

// DerpServer is an externally supplied relay description, passed through to
// the client untouched.
type DerpServer map[string]any

// PeerEntry describes one peer inside a compiled mesh map. Field names are a
// compatibility contract with the external client, do not rename.
type PeerEntry struct {
	Identifier               string   `json:"identifier"`
	PublicKey                string   `json:"public_key"`
	Hostname                 string   `json:"hostname"`
	Nickname                 string   `json:"nickname,omitempty"`
	IPAddresses              []string `json:"ip_addresses"`
	Endpoints                []string `json:"endpoints"`
	IsLocal                  bool     `json:"is_local"`
	AllowConnections         bool     `json:"allow_connections"`
	AllowIncomingConnections bool     `json:"allow_incoming_connections"`
	AllowPeerSendFiles       bool     `json:"allow_peer_send_files"`
}

// MeshMap is the peer discovery document one node is configured with.
type MeshMap struct {
	Identifier  string       `json:"identifier"`
	PublicKey   string       `json:"public_key"`
	Hostname    string       `json:"hostname"`
	Nickname    string       `json:"nickname,omitempty"`
	IPAddresses []string     `json:"ip_addresses"`
	Endpoints   []string     `json:"endpoints"`
	Peers       []PeerEntry  `json:"peers"`
	DerpServers []DerpServer `json:"derp_servers"`
}

// Compile renders the mesh map for nodeID from the registry's current state.
// It never caches: every call re-reads addresses, nicknames, firewall rules
// and the peer list, so recompiling after a registry mutation always yields
// the updated document. Peers appear in registry insertion order with the
// requesting node itself excluded.
//
// derpServers is always passed explicitly, the empty slice produces an empty
// relay list rather than some ambient default.
func Compile(r *Registry, nodeID string, derpServers []DerpServer) (*MeshMap, error) {
	node, err := r.Node(nodeID)
	if err != nil {
		return nil, err
	}

	peers := []PeerEntry{}
	for _, peer := range r.Nodes() {
		if peer.ID == nodeID {
			continue
		}
		peers = append(peers, peerEntry(peer, nodeID))
	}

	if derpServers == nil {
		derpServers = []DerpServer{}
	}

	return &MeshMap{
		Identifier:  node.ID,
		PublicKey:   node.PublicKey,
		Hostname:    node.Hostname,
		Nickname:    node.Nickname,
		IPAddresses: copyStrings(node.IPAddresses),
		Endpoints:   copyStrings(node.Endpoints),
		Peers:       peers,
		DerpServers: derpServers,
	}, nil
}

// peerEntry renders peer as seen by the node compiling its map. The firewall
// flags belong to the peer being described: they are the peer's own policy
// toward the requester, read from the peer's rule table keyed by the
// requester's id.
func peerEntry(peer *Node, requesterID string) PeerEntry {
	rule := peer.FirewallRuleFor(requesterID)
	return PeerEntry{
		Identifier:               peer.ID,
		PublicKey:                peer.PublicKey,
		Hostname:                 peer.Hostname,
		Nickname:                 peer.Nickname,
		IPAddresses:              copyStrings(peer.IPAddresses),
		Endpoints:                copyStrings(peer.Endpoints),
		IsLocal:                  peer.IsLocal,
		AllowConnections:         peer.AllowConnections,
		AllowIncomingConnections: rule.AllowIncomingConnections,
		AllowPeerSendFiles:       rule.AllowPeerSendFiles,
	}
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
