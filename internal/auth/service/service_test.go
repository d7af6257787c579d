package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cotravel/cotravel/internal/auth/challenge"
	authdomain "github.com/cotravel/cotravel/internal/auth/domain"
	"github.com/cotravel/cotravel/internal/clock"
	"github.com/cotravel/cotravel/internal/config"
	"github.com/cotravel/cotravel/internal/ledger/soroban"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	svc    authdomain.Auth
	db     *gorm.DB
	clock  *clock.FakeClock
	store  *challenge.Store
	pub    ed25519.PublicKey
	priv   ed25519.PrivateKey
	wallet string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
		ChallengeTTL: 5 * time.Minute,
	}}
	store := challenge.NewStore(cfg.Auth.ChallengeTTL, fake)

	svc := NewService(ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Challenges: store,
		Config:     cfg,
	})

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wallet, err := soroban.EncodeAccountID(pub)
	require.NoError(t, err)

	return &testEnv{svc: svc, db: db, clock: fake, store: store, pub: pub, priv: priv, wallet: wallet}
}

func (e *testEnv) sign(message string) string {
	digest := sha256.Sum256([]byte("Stellar Signed Message:\n" + message))
	return base64.StdEncoding.EncodeToString(ed25519.Sign(e.priv, digest[:]))
}

func TestChallengeValidatesWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Challenge(ctx, "")
	assert.ErrorIs(t, err, authdomain.ErrWalletRequired)

	_, err = env.svc.Challenge(ctx, "not-a-strkey")
	assert.ErrorIs(t, err, authdomain.ErrInvalidWallet)

	message, err := env.svc.Challenge(ctx, env.wallet)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(message, "CoTravel Login: "))
}

func TestLoginHappyPathCreatesUserOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	message, err := env.svc.Challenge(ctx, env.wallet)
	require.NoError(t, err)

	resp, err := env.svc.Login(ctx, authdomain.LoginRequest{
		Wallet:    env.wallet,
		Signature: env.sign(message),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, env.wallet, resp.User.WalletAddress)

	claims, err := env.svc.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, env.wallet, claims.WalletAddress)
	assert.Equal(t, "wallet", claims.Provider)

	// A second login finds the same user.
	message, err = env.svc.Challenge(ctx, env.wallet)
	require.NoError(t, err)
	again, err := env.svc.Login(ctx, authdomain.LoginRequest{
		Wallet:    env.wallet,
		Signature: env.sign(message),
	})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, again.User.ID)

	var count int64
	require.NoError(t, env.db.Model(&authdomain.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLoginConsumesChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	message, err := env.svc.Challenge(ctx, env.wallet)
	require.NoError(t, err)
	sig := env.sign(message)

	_, err = env.svc.Login(ctx, authdomain.LoginRequest{Wallet: env.wallet, Signature: sig})
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, authdomain.LoginRequest{Wallet: env.wallet, Signature: sig})
	assert.ErrorIs(t, err, authdomain.ErrChallengeNotFound)
}

func TestLoginRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	message, err := env.svc.Challenge(ctx, env.wallet)
	require.NoError(t, err)

	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("Stellar Signed Message:\n" + message))
	forged := base64.StdEncoding.EncodeToString(ed25519.Sign(otherPriv, digest[:]))

	_, err = env.svc.Login(ctx, authdomain.LoginRequest{Wallet: env.wallet, Signature: forged})
	assert.ErrorIs(t, err, authdomain.ErrInvalidSignature)

	// The bad attempt consumed the challenge.
	_, err = env.svc.Login(ctx, authdomain.LoginRequest{Wallet: env.wallet, Signature: forged})
	assert.ErrorIs(t, err, authdomain.ErrChallengeNotFound)
}

func TestLoginRejectsExpiredChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	message, err := env.svc.Challenge(ctx, env.wallet)
	require.NoError(t, err)

	env.clock.Advance(6 * time.Minute)

	_, err = env.svc.Login(ctx, authdomain.LoginRequest{
		Wallet:    env.wallet,
		Signature: env.sign(message),
	})
	assert.ErrorIs(t, err, authdomain.ErrChallengeExpired)
}

func TestLoginRejectsUnsupportedProvider(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Login(context.Background(), authdomain.LoginRequest{
		Wallet:    env.wallet,
		Signature: "x",
		Provider:  "google",
	})
	assert.ErrorIs(t, err, authdomain.ErrUnsupportedSignin)
}

func TestParseTokenRejectsExpiredAndTampered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	message, err := env.svc.Challenge(ctx, env.wallet)
	require.NoError(t, err)
	resp, err := env.svc.Login(ctx, authdomain.LoginRequest{
		Wallet:    env.wallet,
		Signature: env.sign(message),
	})
	require.NoError(t, err)

	_, err = env.svc.ParseToken(resp.Token + "x")
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)

	env.clock.Advance(2 * time.Hour)
	_, err = env.svc.ParseToken(resp.Token)
	assert.ErrorIs(t, err, authdomain.ErrInvalidToken)
}
