package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackTransfer(t *testing.T) {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data, err := PackTransfer(to, big.NewInt(1_000_000))
	require.NoError(t, err)

	// 4-byte selector + two 32-byte words.
	require.Len(t, data, 68)
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, data[:4])
	assert.Equal(t, to.Bytes(), data[16:36])
}

func TestERC20Balance(t *testing.T) {
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")

	session := NewFakeSession(owner, big.NewInt(13473))
	session.CallResult = make([]byte, 32)
	big.NewInt(25_000_000).FillBytes(session.CallResult)

	balance, err := ERC20Balance(context.Background(), session, token, owner)
	require.NoError(t, err)
	assert.Equal(t, "25000000", balance.String())
}
