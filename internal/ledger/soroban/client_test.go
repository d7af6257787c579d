package soroban

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cotravel/cotravel/internal/config"
	"github.com/cotravel/cotravel/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type rpcHandler func(method string, params json.RawMessage) (any, string)

func newRPCServer(t *testing.T, handler rpcHandler) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		params, _ := json.Marshal(req.Params)
		result, rpcErr := handler(req.Method, params)

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != "" {
			resp["error"] = map[string]any{"code": -32000, "message": rpcErr}
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	cfg := config.Config{Soroban: config.SorobanConfig{
		RPCURL:            url,
		ContractID:        mustContractID(t),
		NetworkPassphrase: "Test SDF Network ; September 2015",
		PollAttempts:      3,
		PollInterval:      time.Millisecond,
	}}
	return NewClient(cfg, zap.NewNop(), nil)
}

func simResponse(encoded string) any {
	return map[string]any{"results": []map[string]string{{"xdr": encoded}}}
}

func mustContractID(t *testing.T) string {
	t.Helper()
	id, err := EncodeContractID(make([]byte, 32))
	require.NoError(t, err)
	return id
}

func TestSubmitTransactionConfirms(t *testing.T) {
	returnValue, err := EncodeVal(U64Val(42))
	require.NoError(t, err)

	polls := 0
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		switch method {
		case "sendTransaction":
			return sendTransactionResult{Status: "PENDING", Hash: "abc123"}, ""
		case "getTransaction":
			polls++
			if polls == 1 {
				return getTransactionResult{Status: "NOT_FOUND"}, ""
			}
			return getTransactionResult{Status: "SUCCESS", Ledger: 512, ReturnValue: returnValue}, ""
		default:
			t.Fatalf("unexpected method %s", method)
			return nil, ""
		}
	})
	defer srv.Close()

	result, err := newTestClient(t, srv.URL).SubmitTransaction(context.Background(), "AAAA")
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.Hash)
	assert.Equal(t, uint32(512), result.LedgerSequence)
	require.NotNil(t, result.ReturnU64)
	assert.Equal(t, uint64(42), *result.ReturnU64)
}

func TestSubmitTransactionRejectedAtSubmission(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		return sendTransactionResult{Status: "ERROR", ErrorResultXDR: "AAAB"}, ""
	})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SubmitTransaction(context.Background(), "AAAA")
	assert.ErrorIs(t, err, domain.ErrLedgerRejected)
}

func TestSubmitTransactionFailedOnLedger(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		if method == "sendTransaction" {
			return sendTransactionResult{Status: "PENDING", Hash: "abc123"}, ""
		}
		return getTransactionResult{Status: "FAILED"}, ""
	})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SubmitTransaction(context.Background(), "AAAA")
	assert.ErrorIs(t, err, domain.ErrLedgerRejected)
}

func TestSubmitTransactionTimesOut(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		if method == "sendTransaction" {
			return sendTransactionResult{Status: "PENDING", Hash: "abc123"}, ""
		}
		return getTransactionResult{Status: "NOT_FOUND"}, ""
	})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SubmitTransaction(context.Background(), "AAAA")
	assert.ErrorIs(t, err, domain.ErrSubmitTimeout)
}

func TestGetEscrowState(t *testing.T) {
	state := ScVal{Kind: KindMap, Map: []MapEntry{
		{Key: SymbolVal("participant_count"), Val: U32Val(2)},
		{Key: SymbolVal("status"), Val: ScVal{Kind: KindVec, Vec: []ScVal{SymbolVal("Completed")}}},
		{Key: SymbolVal("total_collected"), Val: I128Val(50_000_000)},
	}}
	encoded, err := EncodeVal(state)
	require.NoError(t, err)

	srv := newRPCServer(t, func(method string, params json.RawMessage) (any, string) {
		require.Equal(t, "simulateTransaction", method)
		var p map[string]string
		require.NoError(t, json.Unmarshal(params, &p))
		require.NotEmpty(t, p["transaction"])
		return simResponse(encoded), ""
	})
	defer srv.Close()

	got, err := newTestClient(t, srv.URL).GetEscrowState(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowStatusCompleted, got.Status)
	assert.Equal(t, int64(50_000_000), got.TotalCollected)
	assert.Equal(t, uint32(2), got.ParticipantCount)
}

func TestGetEscrowStateMissing(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		return simulateResult{Error: "host function failed"}, ""
	})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GetEscrowState(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestGetPenalty(t *testing.T) {
	encoded, err := EncodeVal(I128Val(5_000_000))
	require.NoError(t, err)

	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		return simResponse(encoded), ""
	})
	defer srv.Close()

	penalty, err := newTestClient(t, srv.URL).GetPenalty(context.Background(), 7, simulationSource)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), penalty)
}

func TestGetPenaltyVoidMeansNone(t *testing.T) {
	encoded, err := EncodeVal(VoidVal())
	require.NoError(t, err)

	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		return simResponse(encoded), ""
	})
	defer srv.Close()

	penalty, err := newTestClient(t, srv.URL).GetPenalty(context.Background(), 7, simulationSource)
	require.NoError(t, err)
	assert.Equal(t, int64(0), penalty)
}

func TestVerifyNetwork(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		require.Equal(t, "getNetwork", method)
		return getNetworkResult{Passphrase: "Test SDF Network ; September 2015"}, ""
	})
	defer srv.Close()

	assert.NoError(t, newTestClient(t, srv.URL).VerifyNetwork(context.Background()))
}

func TestVerifyNetworkMismatch(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		return getNetworkResult{Passphrase: "Public Global Stellar Network ; September 2015"}, ""
	})
	defer srv.Close()

	err := newTestClient(t, srv.URL).VerifyNetwork(context.Background())
	assert.ErrorContains(t, err, "configured for")
}

func TestRPCErrorMapsToUnavailable(t *testing.T) {
	srv := newRPCServer(t, func(method string, _ json.RawMessage) (any, string) {
		return nil, "node overloaded"
	})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).SubmitTransaction(context.Background(), "AAAA")
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}
