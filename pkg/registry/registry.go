package registry

import (
	"fmt"
	"math/big"

	"bridgectl/config"
	"bridgectl/pkg/types"
)

// Chain is one registered network.
type Chain struct {
	ChainID      *big.Int
	Role         types.NetworkRole
	NativeSymbol string
	RPCUrl       string
}

// Registry maps chain ids to bridge roles. Exactly one root and one
// child chain are active per environment.
type Registry struct {
	environment string
	root        Chain
	child       Chain
}

// New builds a registry from configuration, enforcing the one-root
// one-child invariant.
func New(cfg *config.Config) (*Registry, error) {
	if cfg.RootChain.ChainID == cfg.ChildChain.ChainID {
		return nil, fmt.Errorf("root and child chain ids collide: %d", cfg.RootChain.ChainID)
	}
	if cfg.RootChain.RPCUrl == "" {
		return nil, fmt.Errorf("root chain RPC URL is required")
	}
	if cfg.ChildChain.RPCUrl == "" {
		return nil, fmt.Errorf("child chain RPC URL is required")
	}

	return &Registry{
		environment: cfg.Environment,
		root: Chain{
			ChainID:      big.NewInt(cfg.RootChain.ChainID),
			Role:         types.RoleRoot,
			NativeSymbol: cfg.RootChain.NativeSymbol,
			RPCUrl:       cfg.RootChain.RPCUrl,
		},
		child: Chain{
			ChainID:      big.NewInt(cfg.ChildChain.ChainID),
			Role:         types.RoleChild,
			NativeSymbol: cfg.ChildChain.NativeSymbol,
			RPCUrl:       cfg.ChildChain.RPCUrl,
		},
	}, nil
}

// Environment returns the environment name the registry was built for.
func (r *Registry) Environment() string {
	return r.environment
}

// Root returns the L1 settlement chain.
func (r *Registry) Root() Chain {
	return r.root
}

// Child returns the L2 rollup chain.
func (r *Registry) Child() Chain {
	return r.child
}

// ByRole returns the chain registered for a role.
func (r *Registry) ByRole(role types.NetworkRole) (Chain, error) {
	switch role {
	case types.RoleRoot:
		return r.root, nil
	case types.RoleChild:
		return r.child, nil
	default:
		return Chain{}, fmt.Errorf("unknown network role: %s", role)
	}
}

// RoleOf resolves a chain id to its bridge role.
func (r *Registry) RoleOf(chainID *big.Int) (types.NetworkRole, error) {
	if chainID == nil {
		return "", fmt.Errorf("chain id is required")
	}
	switch {
	case chainID.Cmp(r.root.ChainID) == 0:
		return types.RoleRoot, nil
	case chainID.Cmp(r.child.ChainID) == 0:
		return types.RoleChild, nil
	default:
		return "", fmt.Errorf("chain id %s is not registered", chainID)
	}
}

// Counterpart returns the opposite chain for a given chain id:
// root for the child's id, child for the root's.
func (r *Registry) Counterpart(chainID *big.Int) (Chain, error) {
	role, err := r.RoleOf(chainID)
	if err != nil {
		return Chain{}, err
	}
	if role == types.RoleRoot {
		return r.child, nil
	}
	return r.root, nil
}
