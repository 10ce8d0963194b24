package mesh

// FirewallRule is the policy one node declares for a single peer. The zero
// value is the default-deny rule.
type FirewallRule struct {
	AllowIncomingConnections bool
	AllowPeerSendFiles       bool
}

// Node is one mesh participant. Identity and key material are opaque strings,
// never validated here. Addresses and firewall rules are mutated through the
// owning Registry only.
type Node struct {
	Name       string
	ID         string
	PrivateKey string
	PublicKey  string

	Hostname    string
	Nickname    string
	IPAddresses []string
	Endpoints   []string

	IsLocal          bool
	AllowConnections bool
	PathType         string

	// FirewallRules is keyed by peer node id. A missing entry means
	// default-deny. Entries may outlive the peer they reference.
	FirewallRules map[string]FirewallRule
}

func newNode(name, id, privateKey, publicKey string) *Node {
	return &Node{
		Name:          name,
		ID:            id,
		PrivateKey:    privateKey,
		PublicKey:     publicKey,
		Hostname:      name + ".nord",
		IPAddresses:   []string{},
		Endpoints:     []string{},
		FirewallRules: map[string]FirewallRule{},
	}
}

// FirewallRuleFor returns the rule this node declares for peerID, falling
// back to default-deny when no rule was recorded. Unknown peer ids are fine,
// stale rules for removed peers simply never match.
func (n *Node) FirewallRuleFor(peerID string) FirewallRule {
	if r, ok := n.FirewallRules[peerID]; ok {
		return r
	}
	return FirewallRule{}
}

// ClientConfig is the startup identity document handed to the external client.
func (n *Node) ClientConfig() map[string]string {
	return map[string]string{
		"name": n.Name,
		"id":   n.ID,
		"sk":   n.PrivateKey,
		"pk":   n.PublicKey,
	}
}
