package soroban

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cotravel/cotravel/internal/config"
	"github.com/cotravel/cotravel/internal/ledger/domain"
	"github.com/cotravel/cotravel/internal/observability/metrics"
	"go.uber.org/zap"
)

// simulationSource is the all-zero account used as the source of
// read-only simulation transactions. Simulation never checks it.
const simulationSource = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

// Client talks to a Soroban RPC node over JSON-RPC.
type Client struct {
	cfg     config.SorobanConfig
	client  *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

var _ domain.Gateway = (*Client)(nil)

func NewClient(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Client {
	return &Client{
		cfg:     cfg.Soroban,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log.Named("soroban.client"),
		metrics: m,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: rpc status %d", domain.ErrLedgerUnavailable, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%w: %s", domain.ErrLedgerUnavailable, envelope.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
		}
	}
	return nil
}

type sendTransactionResult struct {
	Status         string `json:"status"`
	Hash           string `json:"hash"`
	ErrorResultXDR string `json:"errorResultXdr"`
}

type getTransactionResult struct {
	Status         string `json:"status"`
	Ledger         uint32 `json:"ledger"`
	ReturnValue    string `json:"returnValue"`
	ResultXDR      string `json:"resultXdr"`
	ResultMetaXDR  string `json:"resultMetaXdr"`
	ApplicationFee string `json:"applicationFee"`
}

// SubmitTransaction sends a signed envelope and waits for the ledger to
// confirm or reject it.
func (c *Client) SubmitTransaction(ctx context.Context, signedXDR string) (*domain.SubmitResult, error) {
	started := time.Now()
	result, err := c.submit(ctx, signedXDR)
	if c.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		c.metrics.LedgerSubmissions.WithLabelValues("submit", outcome).Inc()
		c.metrics.LedgerSubmitDuration.Observe(time.Since(started).Seconds())
	}
	return result, err
}

func (c *Client) submit(ctx context.Context, signedXDR string) (*domain.SubmitResult, error) {
	var sent sendTransactionResult
	if err := c.call(ctx, "sendTransaction", map[string]string{"transaction": signedXDR}, &sent); err != nil {
		return nil, err
	}
	if strings.EqualFold(sent.Status, "ERROR") {
		c.log.Warn("transaction rejected at submission",
			zap.String("hash", sent.Hash),
			zap.String("error_result", sent.ErrorResultXDR))
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerRejected, sent.ErrorResultXDR)
	}

	attempts := c.cfg.PollAttempts
	if attempts <= 0 {
		attempts = 60
	}
	interval := c.cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		var tx getTransactionResult
		if err := c.call(ctx, "getTransaction", map[string]string{"hash": sent.Hash}, &tx); err != nil {
			return nil, err
		}

		switch strings.ToUpper(tx.Status) {
		case "NOT_FOUND":
			continue
		case "SUCCESS":
			out := &domain.SubmitResult{
				Hash:           sent.Hash,
				LedgerSequence: tx.Ledger,
				ReturnValue:    tx.ReturnValue,
			}
			if tx.ReturnValue != "" {
				if v, err := DecodeVal(tx.ReturnValue); err == nil && v.Kind == KindU64 {
					u := v.U64
					out.ReturnU64 = &u
				}
			}
			return out, nil
		case "FAILED":
			c.log.Warn("transaction failed on ledger",
				zap.String("hash", sent.Hash),
				zap.String("result", tx.ResultXDR))
			return nil, fmt.Errorf("%w: transaction %s failed", domain.ErrLedgerRejected, sent.Hash)
		default:
			return nil, fmt.Errorf("%w: unexpected transaction status %q", domain.ErrLedgerUnavailable, tx.Status)
		}
	}

	return nil, fmt.Errorf("%w: transaction %s unconfirmed after %d attempts", domain.ErrSubmitTimeout, sent.Hash, attempts)
}

type getNetworkResult struct {
	Passphrase string `json:"passphrase"`
}

// VerifyNetwork checks that the RPC node serves the configured network.
// A node on the wrong network would reject every signed envelope with
// opaque signature errors, so the mismatch surfaces here instead.
func (c *Client) VerifyNetwork(ctx context.Context) error {
	var network getNetworkResult
	if err := c.call(ctx, "getNetwork", nil, &network); err != nil {
		return err
	}
	if network.Passphrase != c.cfg.NetworkPassphrase {
		return fmt.Errorf("rpc node serves network %q, configured for %q", network.Passphrase, c.cfg.NetworkPassphrase)
	}
	return nil
}

type simulateResult struct {
	Error   string `json:"error"`
	Results []struct {
		XDR string `json:"xdr"`
	} `json:"results"`
}

// callReadOnly simulates a contract invocation and decodes its return
// value.
func (c *Client) callReadOnly(ctx context.Context, function string, args []ScVal) (ScVal, error) {
	envelope, err := BuildInvokeTransaction(simulationSource, c.cfg.ContractID, function, args)
	if err != nil {
		return ScVal{}, err
	}

	var sim simulateResult
	if err := c.call(ctx, "simulateTransaction", map[string]string{"transaction": envelope}, &sim); err != nil {
		return ScVal{}, err
	}
	if sim.Error != "" {
		return ScVal{}, fmt.Errorf("%w: %s", domain.ErrStateNotFound, sim.Error)
	}
	if len(sim.Results) == 0 || sim.Results[0].XDR == "" {
		return ScVal{}, fmt.Errorf("%w: simulation returned no value", domain.ErrStateNotFound)
	}
	return DecodeVal(sim.Results[0].XDR)
}

// GetEscrowState reads the authoritative contract state for an escrow.
func (c *Client) GetEscrowState(ctx context.Context, escrowID uint64) (*domain.EscrowState, error) {
	v, err := c.callReadOnly(ctx, "get_state", []ScVal{U64Val(escrowID)})
	if err != nil {
		return nil, err
	}
	if v.Kind != KindMap {
		return nil, fmt.Errorf("%w: unexpected state shape", domain.ErrStateNotFound)
	}

	state := &domain.EscrowState{}
	if status, ok := v.MapGet("status"); ok {
		if sym, ok := status.SymbolOf(); ok {
			state.Status = strings.ToLower(sym)
		}
	}
	if collected, ok := v.MapGet("total_collected"); ok && collected.Kind == KindI128 {
		if n, ok := collected.I128.Int64(); ok {
			state.TotalCollected = n
		}
	}
	if count, ok := v.MapGet("participant_count"); ok && count.Kind == KindU32 {
		state.ParticipantCount = count.U32
	}
	if state.Status == "" {
		return nil, fmt.Errorf("%w: state missing status", domain.ErrStateNotFound)
	}
	return state, nil
}

// GetPenalty reads the penalty charged to a wallet on an escrow, in
// base units.
func (c *Client) GetPenalty(ctx context.Context, escrowID uint64, wallet string) (int64, error) {
	v, err := c.callReadOnly(ctx, "get_penalty", []ScVal{U64Val(escrowID), AddressVal(wallet)})
	if err != nil {
		return 0, err
	}
	switch v.Kind {
	case KindI128:
		if n, ok := v.I128.Int64(); ok {
			return n, nil
		}
		return 0, fmt.Errorf("penalty out of range")
	case KindU64:
		return int64(v.U64), nil
	case KindVoid:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected penalty value kind %d", v.Kind)
	}
}
