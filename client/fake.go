package client

import (
	"context"
	"sync"

	"github.com/Savolro/libtelio/mesh"
)

// VPNTarget records one ConnectToVPN call made against a Fake.
type VPNTarget struct {
	IP        string
	Port      int
	PublicKey string
}

// Fake is an in-memory Client. It records every document and call it
// receives and replays events pushed by the test.
type Fake struct {
	mu       sync.Mutex
	meshMaps []*mesh.MeshMap
	vpn      []VPNTarget
	stopped  bool

	events chan Event
}

func NewFake() *Fake {
	return &Fake{events: make(chan Event, 64)}
}

func (f *Fake) SetMeshMap(ctx context.Context, m *mesh.MeshMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meshMaps = append(f.meshMaps, m)
	return nil
}

func (f *Fake) ConnectToVPN(ctx context.Context, ip string, port int, publicKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vpn = append(f.vpn, VPNTarget{IP: ip, Port: port, PublicKey: publicKey})
	return nil
}

// PushEvent makes an event visible to a pending or future WaitForPeerState.
func (f *Fake) PushEvent(e Event) {
	f.events <- e
}

func (f *Fake) WaitForPeerState(ctx context.Context, publicKey string, states []State, paths []PathType) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-f.events:
			if e.PublicKey != publicKey {
				continue
			}
			if !containsState(states, e.State) {
				continue
			}
			if len(paths) > 0 && !containsPath(paths, e.Path) {
				continue
			}
			return nil
		}
	}
}

func (f *Fake) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

// MeshMaps returns every document delivered so far, oldest first.
func (f *Fake) MeshMaps() []*mesh.MeshMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*mesh.MeshMap, len(f.meshMaps))
	copy(out, f.meshMaps)
	return out
}

// LastMeshMap returns the most recently delivered document, nil if none.
func (f *Fake) LastMeshMap() *mesh.MeshMap {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.meshMaps) == 0 {
		return nil
	}
	return f.meshMaps[len(f.meshMaps)-1]
}

// VPNTargets returns every ConnectToVPN call made so far.
func (f *Fake) VPNTargets() []VPNTarget {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]VPNTarget, len(f.vpn))
	copy(out, f.vpn)
	return out
}

func (f *Fake) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func containsState(states []State, s State) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}

func containsPath(paths []PathType, p PathType) bool {
	for _, v := range paths {
		if v == p {
			return true
		}
	}
	return false
}
