package mesh

import "fmt"

// DuplicateIdentityError is returned by Register when the id is already taken.
type DuplicateIdentityError struct {
	ID string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("node %q is already registered", e.ID)
}

// UnknownIdentityError is returned by any registry operation that names a node
// id with no registry entry.
type UnknownIdentityError struct {
	ID string
}

func (e *UnknownIdentityError) Error() string {
	return fmt.Sprintf("node %q is not registered", e.ID)
}

// AddressCollisionError reports that an address is already held by a node.
// HolderID is the id of the node currently holding the address, which may be
// the assignee itself.
type AddressCollisionError struct {
	Address  string
	HolderID string
}

func (e *AddressCollisionError) Error() string {
	return fmt.Sprintf("address %s is already assigned to node %q", e.Address, e.HolderID)
}

// NicknameError reports a rejected nickname assignment.
type NicknameError struct {
	Nickname string
	Reason   string
}

func (e *NicknameError) Error() string {
	return fmt.Sprintf("nickname %q rejected: %s", e.Nickname, e.Reason)
}
