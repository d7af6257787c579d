package soroban

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrkeyRoundTrip(t *testing.T) {
	zero := make([]byte, 32)

	account, err := EncodeAccountID(zero)
	require.NoError(t, err)
	assert.Equal(t, simulationSource, account)
	assert.Len(t, account, 56)

	decoded, err := DecodeAccountID(account)
	require.NoError(t, err)
	assert.Equal(t, zero, decoded)

	contract, err := EncodeContractID(zero)
	require.NoError(t, err)
	assert.Equal(t, byte('C'), contract[0])

	decodedContract, err := DecodeContractID(contract)
	require.NoError(t, err)
	assert.Equal(t, zero, decodedContract)
}

func TestStrkeyRejectsCorruption(t *testing.T) {
	zero := make([]byte, 32)
	account, err := EncodeAccountID(zero)
	require.NoError(t, err)

	corrupted := []byte(account)
	corrupted[10] = 'Z'
	_, err = DecodeAccountID(string(corrupted))
	assert.Error(t, err)

	_, err = DecodeContractID(account)
	assert.Error(t, err, "account version byte must not decode as contract")
}

func TestValueRoundTrip(t *testing.T) {
	state := ScVal{Kind: KindMap, Map: []MapEntry{
		{Key: SymbolVal("auto_release"), Val: BoolVal(true)},
		{Key: SymbolVal("memo"), Val: StringVal("deposit for the lodge")},
		{Key: SymbolVal("participant_count"), Val: U32Val(3)},
		{Key: SymbolVal("status"), Val: ScVal{Kind: KindVec, Vec: []ScVal{SymbolVal("Funding")}}},
		{Key: SymbolVal("total_collected"), Val: I128Val(25_000_000)},
	}}

	b64, err := EncodeVal(state)
	require.NoError(t, err)

	decoded, err := DecodeVal(b64)
	require.NoError(t, err)
	require.Equal(t, KindMap, decoded.Kind)

	count, ok := decoded.MapGet("participant_count")
	require.True(t, ok)
	assert.Equal(t, uint32(3), count.U32)

	status, ok := decoded.MapGet("status")
	require.True(t, ok)
	sym, ok := status.SymbolOf()
	require.True(t, ok)
	assert.Equal(t, "Funding", sym)

	collected, ok := decoded.MapGet("total_collected")
	require.True(t, ok)
	n, ok := collected.I128.Int64()
	require.True(t, ok)
	assert.Equal(t, int64(25_000_000), n)

	auto, ok := decoded.MapGet("auto_release")
	require.True(t, ok)
	assert.True(t, auto.Bool)

	memo, ok := decoded.MapGet("memo")
	require.True(t, ok)
	assert.Equal(t, "deposit for the lodge", memo.Str)
}

func TestInt128Narrowing(t *testing.T) {
	n, ok := int128From(-5).Int64()
	require.True(t, ok)
	assert.Equal(t, int64(-5), n)

	_, ok = Int128{Hi: 1, Lo: 0}.Int64()
	assert.False(t, ok)
}

func TestBuildInvokeTransaction(t *testing.T) {
	contract, err := EncodeContractID(make([]byte, 32))
	require.NoError(t, err)

	envelope, err := BuildInvokeTransaction(simulationSource, contract, "get_state", []ScVal{U64Val(7)})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(envelope)
	require.NoError(t, err)

	// ENVELOPE_TYPE_TX followed by an ed25519 muxed source account.
	assert.Equal(t, []byte{0, 0, 0, 2, 0, 0, 0, 0}, raw[:8])
	// Envelope layout is fixed size up to the symbol for a single
	// u64 argument call with no auth and no signatures.
	assert.Contains(t, string(raw), "get_state")
}

func TestBuildInvokeTransactionValidatesAddresses(t *testing.T) {
	_, err := BuildInvokeTransaction("not-an-account", "also-wrong", "fn", nil)
	assert.Error(t, err)
}
