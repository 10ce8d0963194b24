package mesh

import (
	"fmt"
	"net/netip"

	"github.com/gaissmai/bart"
)

// AddressSpace tracks which node holds each assigned address across the whole
// registry. Addresses are stored as host prefixes so lookups dispatch on
// family for free.
type AddressSpace struct {
	table bart.Table[string]
}

func hostPrefix(address string) (netip.Prefix, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid ip address %q: %w", address, err)
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Claim records address as held by id. It fails with AddressCollisionError if
// any node, including id itself, already holds the address.
func (s *AddressSpace) Claim(address, id string) error {
	pfx, err := hostPrefix(address)
	if err != nil {
		return err
	}

	if holder, ok := s.table.Lookup(pfx.Addr()); ok {
		return &AddressCollisionError{Address: address, HolderID: holder}
	}

	s.table.Insert(pfx, id)
	return nil
}

// Release drops the claim on address, making it assignable again. Unknown or
// unparsable addresses are ignored, release happens during node removal and
// must not fail it.
func (s *AddressSpace) Release(address string) {
	pfx, err := hostPrefix(address)
	if err != nil {
		return
	}
	s.table.Delete(pfx)
}

// Holder reports the node currently holding address, if any.
func (s *AddressSpace) Holder(address string) (string, bool) {
	pfx, err := hostPrefix(address)
	if err != nil {
		return "", false
	}
	return s.table.Lookup(pfx.Addr())
}
