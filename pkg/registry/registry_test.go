package registry

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgectl/config"
	"bridgectl/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "testnet",
		RootChain:   config.ChainConfig{ChainID: 11155111, RPCUrl: "https://rpc.example/root", NativeSymbol: "ETH"},
		ChildChain:  config.ChainConfig{ChainID: 13473, RPCUrl: "https://rpc.example/child", NativeSymbol: "IMX"},
	}
}

func TestNewEnforcesInvariants(t *testing.T) {
	reg, err := New(testConfig())
	require.NoError(t, err)
	assert.Equal(t, types.RoleRoot, reg.Root().Role)
	assert.Equal(t, types.RoleChild, reg.Child().Role)

	cfg := testConfig()
	cfg.ChildChain.ChainID = cfg.RootChain.ChainID
	_, err = New(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.RootChain.RPCUrl = ""
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestRoleOf(t *testing.T) {
	reg, err := New(testConfig())
	require.NoError(t, err)

	role, err := reg.RoleOf(big.NewInt(11155111))
	require.NoError(t, err)
	assert.Equal(t, types.RoleRoot, role)

	role, err = reg.RoleOf(big.NewInt(13473))
	require.NoError(t, err)
	assert.Equal(t, types.RoleChild, role)

	_, err = reg.RoleOf(big.NewInt(1))
	assert.Error(t, err)

	_, err = reg.RoleOf(nil)
	assert.Error(t, err)
}

func TestCounterpart(t *testing.T) {
	reg, err := New(testConfig())
	require.NoError(t, err)

	chain, err := reg.Counterpart(big.NewInt(11155111))
	require.NoError(t, err)
	assert.Equal(t, types.RoleChild, chain.Role)

	chain, err = reg.Counterpart(big.NewInt(13473))
	require.NoError(t, err)
	assert.Equal(t, types.RoleRoot, chain.Role)
}
