package mesh

import (
	"strings"

	"github.com/sirupsen/logrus"
)

const maxNicknameLen = 25

// Registry owns every Node in a test topology. It is not safe for concurrent
// mutation, a registry belongs to the single test driving it.
type Registry struct {
	nodes map[string]*Node
	order []string
	space AddressSpace
	l     *logrus.Logger
}

func NewRegistry(l *logrus.Logger) *Registry {
	return &Registry{
		nodes: map[string]*Node{},
		l:     l,
	}
}

// Register creates a node under id. The hostname is derived from name and is
// not configurable. Fails with DuplicateIdentityError when id is taken.
func (r *Registry) Register(name, id, privateKey, publicKey string) (*Node, error) {
	if _, ok := r.nodes[id]; ok {
		return nil, &DuplicateIdentityError{ID: id}
	}

	node := newNode(name, id, privateKey, publicKey)
	r.nodes[id] = node
	r.order = append(r.order, id)

	r.l.WithFields(logrus.Fields{"node": name, "id": id}).Debug("Registered mesh node")
	return node, nil
}

// Remove deletes the node and releases its addresses for reassignment. Stale
// firewall rules other nodes hold for id are left in place, lookups on them
// fall back to default-deny.
func (r *Registry) Remove(id string) error {
	node, ok := r.nodes[id]
	if !ok {
		return &UnknownIdentityError{ID: id}
	}

	for _, address := range node.IPAddresses {
		r.space.Release(address)
	}

	delete(r.nodes, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.l.WithField("id", id).Debug("Removed mesh node")
	return nil
}

// AssignAddress appends address to the node's address list. The collision
// check is registry wide: an address already held by any node, the assignee
// included, fails with AddressCollisionError naming the holder.
func (r *Registry) AssignAddress(id, address string) error {
	node, ok := r.nodes[id]
	if !ok {
		return &UnknownIdentityError{ID: id}
	}

	if err := r.space.Claim(address, id); err != nil {
		return err
	}

	node.IPAddresses = append(node.IPAddresses, address)
	return nil
}

// AssignEndpoint appends an externally reachable address for the node. Unlike
// mesh addresses, endpoints may repeat across nodes behind the same NAT, so
// there is no collision rule.
func (r *Registry) AssignEndpoint(id, endpoint string) error {
	node, ok := r.nodes[id]
	if !ok {
		return &UnknownIdentityError{ID: id}
	}

	node.Endpoints = append(node.Endpoints, endpoint)
	return nil
}

// SetPeerFirewall overwrites the rule ownerID declares for peerID. The peer
// is deliberately not validated, rules may be declared ahead of the peer's
// registration.
func (r *Registry) SetPeerFirewall(ownerID, peerID string, allowIncoming, allowSendFiles bool) error {
	node, ok := r.nodes[ownerID]
	if !ok {
		return &UnknownIdentityError{ID: ownerID}
	}

	node.FirewallRules[peerID] = FirewallRule{
		AllowIncomingConnections: allowIncoming,
		AllowPeerSendFiles:       allowSendFiles,
	}
	return nil
}

// Firewall returns the rule ownerID declares for peerID, default-deny when
// none was recorded.
func (r *Registry) Firewall(ownerID, peerID string) (FirewallRule, error) {
	node, ok := r.nodes[ownerID]
	if !ok {
		return FirewallRule{}, &UnknownIdentityError{ID: ownerID}
	}
	return node.FirewallRuleFor(peerID), nil
}

// AssignNickname sets the node's nickname. Nicknames resolve to DNS labels on
// the client side, so they must be short, space free and unique against every
// other node's nickname and name.
func (r *Registry) AssignNickname(id, nickname string) error {
	node, ok := r.nodes[id]
	if !ok {
		return &UnknownIdentityError{ID: id}
	}

	if nickname == "" {
		return &NicknameError{Nickname: nickname, Reason: "empty"}
	}
	if len(nickname) > maxNicknameLen {
		return &NicknameError{Nickname: nickname, Reason: "too long"}
	}
	if strings.ContainsAny(nickname, " \t") {
		return &NicknameError{Nickname: nickname, Reason: "contains whitespace"}
	}
	for oid, other := range r.nodes {
		if oid == id {
			continue
		}
		if other.Nickname == nickname || other.Name == nickname {
			return &NicknameError{Nickname: nickname, Reason: "already in use by node " + oid}
		}
	}

	node.Nickname = nickname
	return nil
}

// ResetNickname clears the nickname, the next compilation falls back to the
// canonical hostname.
func (r *Registry) ResetNickname(id string) error {
	node, ok := r.nodes[id]
	if !ok {
		return &UnknownIdentityError{ID: id}
	}
	node.Nickname = ""
	return nil
}

// Node returns the registered node for id.
func (r *Registry) Node(id string) (*Node, error) {
	node, ok := r.nodes[id]
	if !ok {
		return nil, &UnknownIdentityError{ID: id}
	}
	return node, nil
}

// Nodes returns every registered node in insertion order.
func (r *Registry) Nodes() []*Node {
	out := make([]*Node, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.nodes[id])
	}
	return out
}

// AddressHolder reports which node currently holds address, if any.
func (r *Registry) AddressHolder(address string) (string, bool) {
	return r.space.Holder(address)
}
