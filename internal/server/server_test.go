package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cotravel/cotravel/internal/auth/challenge"
	authdomain "github.com/cotravel/cotravel/internal/auth/domain"
	authservice "github.com/cotravel/cotravel/internal/auth/service"
	cartdomain "github.com/cotravel/cotravel/internal/cart/domain"
	cartservice "github.com/cotravel/cotravel/internal/cart/service"
	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	catalogservice "github.com/cotravel/cotravel/internal/catalog/service"
	"github.com/cotravel/cotravel/internal/clock"
	"github.com/cotravel/cotravel/internal/config"
	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	invoicerepo "github.com/cotravel/cotravel/internal/invoice/repository"
	invoiceservice "github.com/cotravel/cotravel/internal/invoice/service"
	ledgerdomain "github.com/cotravel/cotravel/internal/ledger/domain"
	"github.com/cotravel/cotravel/internal/ledger/soroban"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubGateway struct{}

func (stubGateway) SubmitTransaction(context.Context, string) (*ledgerdomain.SubmitResult, error) {
	return nil, ledgerdomain.ErrLedgerUnavailable
}

func (stubGateway) GetEscrowState(context.Context, uint64) (*ledgerdomain.EscrowState, error) {
	return nil, ledgerdomain.ErrStateNotFound
}

func (stubGateway) GetPenalty(context.Context, uint64, string) (int64, error) {
	return 0, ledgerdomain.ErrStateNotFound
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	clock  *clock.FakeClock
	priv   ed25519.PrivateKey
	wallet string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&authdomain.User{},
		&catalogdomain.Business{},
		&catalogdomain.Service{},
		&cartdomain.CartItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceParticipant{},
		&invoicedomain.Transaction{},
		&invoicedomain.InvoiceModification{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	cfg := config.Config{
		ListenAddr: ":0",
		Auth: config.AuthConfig{
			JWTSecret:    "test-secret",
			TokenTTL:     time.Hour,
			ChallengeTTL: 5 * time.Minute,
		},
	}

	store := challenge.NewStore(cfg.Auth.ChallengeTTL, fake)
	authSvc := authservice.NewService(authservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Challenges: store, Config: cfg,
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: invoicerepo.Provide(), Ledger: stubGateway{},
	})
	catalogSvc := catalogservice.NewService(catalogservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake,
	})
	cartSvc := cartservice.NewService(cartservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fake, Invoices: invoiceSvc,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin: engine, Cfg: cfg, Log: log,
		AuthSvc: authSvc, InvoiceSvc: invoiceSvc, CartSvc: cartSvc, CatalogSvc: catalogSvc,
	})

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet, err := soroban.EncodeAccountID(pub)
	require.NoError(t, err)

	return &testServer{engine: engine, db: db, clock: fake, priv: priv, wallet: wallet}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

// login runs the full challenge/login flow over HTTP and returns the
// bearer token.
func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/api/auth/challenge?wallet="+ts.wallet, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var challengeResp struct {
		Challenge string `json:"challenge"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &challengeResp))

	digest := sha256.Sum256([]byte("Stellar Signed Message:\n" + challengeResp.Challenge))
	signature := base64.StdEncoding.EncodeToString(ed25519.Sign(ts.priv, digest[:]))

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"wallet":    ts.wallet,
		"signature": signature,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var loginResp authdomain.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp.Token)
	return loginResp.Token
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/invoices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/invoices", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWalletLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rec := ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user authdomain.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, ts.wallet, user.WalletAddress)
}

func TestInvoiceEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rec := ts.do(t, http.MethodPost, "/api/invoices", token, map[string]any{
		"title": "Lisbon weekend",
		"items": []map[string]any{
			{"description": "hotel", "amount": 120.0},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data invoicedomain.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, created.Data.Status)

	id := created.Data.ID.String()
	rec = ts.do(t, http.MethodGet, "/api/invoices/"+id, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Validation failure surfaces as 400.
	rec = ts.do(t, http.MethodPost, "/api/invoices", token, map[string]any{
		"title": "", "items": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Releasing a draft without a linked contract conflicts.
	rec = ts.do(t, http.MethodPost, "/api/invoices/"+id+"/release", token, map[string]string{
		"signed_xdr": "xdr",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown invoice is 404.
	rec = ts.do(t, http.MethodGet, "/api/invoices/123456789", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartCheckoutEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t)

	rec := ts.do(t, http.MethodPost, "/api/catalog/businesses", token, map[string]any{
		"name":           "tour co",
		"wallet_address": "GTOURWALLET",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var business struct {
		Data catalogdomain.Business `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &business))

	rec = ts.do(t, http.MethodPost, "/api/catalog/businesses/"+business.Data.ID.String()+"/services", token, map[string]any{
		"name":  "city tour",
		"price": 25.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var svc struct {
		Data catalogdomain.Service `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &svc))

	rec = ts.do(t, http.MethodPost, "/api/cart/items", token, map[string]any{
		"service_id": svc.Data.ID.String(),
		"quantity":   2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	deadline := ts.clock.Now().Add(48 * time.Hour)
	rec = ts.do(t, http.MethodPost, "/api/cart/checkout", token, map[string]any{
		"title":    "Lisbon weekend",
		"deadline": deadline,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var invoice struct {
		Data invoicedomain.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invoice))
	assert.Equal(t, 50.0, invoice.Data.TotalAmount)

	rec = ts.do(t, http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lines struct {
		Data []cartdomain.CartLine `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lines))
	assert.Empty(t, lines.Data)
}
