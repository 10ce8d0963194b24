package natlab

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Savolro/libtelio/client"
	"github.com/Savolro/libtelio/mesh"
	"github.com/Savolro/libtelio/remote"
	"github.com/Savolro/libtelio/router"
	"github.com/Savolro/libtelio/util"
)

// NodeSetup describes one mesh participant to bring up.
type NodeSetup struct {
	Name       string
	ID         string
	PrivateKey string
	PublicKey  string

	Addresses []string
	Endpoints []string
	Stack     router.IPStack

	// Conn executes commands on the machine the node runs on.
	Conn remote.Connection
	// Client is the handle on the external mesh client for this node, nil
	// for nodes that only shape the topology (gateways, decoys).
	Client client.Client
}

// EnvNode is one running participant: its registry entry, its router and its
// client handle.
type EnvNode struct {
	Node   *mesh.Node
	Router router.Router
	Client client.Client
}

// Environment wires a topology together for one test: registry entries,
// per node routers with interface and meshnet route installed, and compiled
// mesh maps delivered to every client. The environment is owned by the single
// test driving it.
type Environment struct {
	l           *logrus.Logger
	registry    *mesh.Registry
	derpServers []mesh.DerpServer

	nodes  map[string]*EnvNode
	order  []string
	faults router.ScopeStack
}

// NewEnvironment builds an empty environment. derpServers is handed to every
// mesh map compilation, pass an empty slice to force direct-only behavior.
func NewEnvironment(l *logrus.Logger, derpServers []mesh.DerpServer) *Environment {
	if derpServers == nil {
		derpServers = []mesh.DerpServer{}
	}
	return &Environment{
		l:           l,
		registry:    mesh.NewRegistry(l),
		derpServers: derpServers,
		nodes:       map[string]*EnvNode{},
	}
}

// Setup registers the given nodes, assigns their addresses and endpoints,
// installs interface and meshnet route on each, then compiles and delivers
// every node's mesh map. Registry errors abort immediately, they indicate a
// test construction bug.
func (e *Environment) Setup(ctx context.Context, setups ...NodeSetup) error {
	for _, s := range setups {
		node, err := e.registry.Register(s.Name, s.ID, s.PrivateKey, s.PublicKey)
		if err != nil {
			return err
		}

		for _, address := range s.Addresses {
			if err := e.registry.AssignAddress(s.ID, address); err != nil {
				return err
			}
		}
		for _, endpoint := range s.Endpoints {
			if err := e.registry.AssignEndpoint(s.ID, endpoint); err != nil {
				return err
			}
		}

		en := &EnvNode{Node: node, Client: s.Client}
		if s.Conn != nil {
			en.Router = router.New(s.Conn, s.Stack, e.l)

			if err := en.Router.SetupInterface(ctx, s.Addresses); err != nil {
				return util.NewContextualError("Failed to set up interface",
					map[string]any{"node": s.Name}, err)
			}
			if err := en.Router.CreateMeshnetRoute(ctx); err != nil {
				return util.NewContextualError("Failed to create meshnet route",
					map[string]any{"node": s.Name}, err)
			}
		}

		e.nodes[s.ID] = en
		e.order = append(e.order, s.ID)
	}

	return e.PushMeshMaps(ctx)
}

// PushMeshMaps recompiles every node's mesh map from current registry state
// and redelivers it. Call after any registry mutation to push the update to
// the clients under test.
func (e *Environment) PushMeshMaps(ctx context.Context) error {
	for _, id := range e.order {
		en := e.nodes[id]
		if en.Client == nil {
			continue
		}

		m, err := mesh.Compile(e.registry, id, e.derpServers)
		if err != nil {
			return err
		}
		if err := en.Client.SetMeshMap(ctx, m); err != nil {
			return util.NewContextualError("Failed to deliver mesh map",
				map[string]any{"node": en.Node.Name}, err)
		}
	}
	return nil
}

// Registry exposes the topology for mid-test mutation. Recompile with
// PushMeshMaps afterwards.
func (e *Environment) Registry() *mesh.Registry {
	return e.registry
}

// Node returns the running participant for id.
func (e *Environment) Node(id string) (*EnvNode, error) {
	en, ok := e.nodes[id]
	if !ok {
		return nil, &mesh.UnknownIdentityError{ID: id}
	}
	return en, nil
}

// HoldFault parks a fault scope with the environment. Teardown releases any
// scope a test failed to close itself, so a raised assertion never leaks
// fault state into the next test.
func (e *Environment) HoldFault(s *router.Scope) {
	e.faults.Push(s)
}

// Teardown releases leaked fault scopes, then tears the nodes down
// concurrently. Per node teardown failures are isolated from each other:
// every node's cleanup runs regardless, and all failures come back joined.
func (e *Environment) Teardown(ctx context.Context) error {
	var errs []error
	var mu sync.Mutex

	if err := e.faults.Close(); err != nil {
		errs = append(errs, util.ContextualizeIfNeeded("failed to release fault scopes", err))
	}

	var g errgroup.Group
	for _, id := range e.order {
		en := e.nodes[id]
		g.Go(func() error {
			if err := e.teardownNode(ctx, en); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (e *Environment) teardownNode(ctx context.Context, en *EnvNode) error {
	var errs []error

	if en.Client != nil {
		if err := en.Client.Stop(ctx); err != nil {
			errs = append(errs, util.NewContextualError("Failed to stop client",
				map[string]any{"node": en.Node.Name}, err))
		}
	}

	// a failed route delete must not keep the interface alive
	if en.Router != nil {
		if err := en.Router.DeleteVPNRoute(ctx); err != nil && !errors.Is(err, router.ErrUnsupportedStack) {
			errs = append(errs, util.NewContextualError("Failed to delete vpn route",
				map[string]any{"node": en.Node.Name}, err))
		}
		if err := en.Router.DeleteInterface(ctx); err != nil {
			errs = append(errs, util.NewContextualError("Failed to delete interface",
				map[string]any{"node": en.Node.Name}, err))
		}
	}

	return errors.Join(errs...)
}
