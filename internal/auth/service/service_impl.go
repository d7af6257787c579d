package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cotravel/cotravel/internal/auth/challenge"
	authdomain "github.com/cotravel/cotravel/internal/auth/domain"
	"github.com/cotravel/cotravel/internal/clock"
	"github.com/cotravel/cotravel/internal/config"
	"github.com/cotravel/cotravel/internal/ledger/soroban"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// signedMessagePrefix matches what Freighter's signMessage prepends
// before hashing (SEP-0053).
const signedMessagePrefix = "Stellar Signed Message:\n"

type tokenClaims struct {
	WalletAddress string `json:"wallet_address"`
	Provider      string `json:"provider"`
	jwt.RegisteredClaims
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	challenges *challenge.Store
	cfg        config.AuthConfig
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Challenges *challenge.Store
	Config     config.Config
}

func NewService(p ServiceParam) authdomain.Auth {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("auth.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		challenges: p.Challenges,
		cfg:        p.Config.Auth,
	}
}

func (s *Service) Challenge(_ context.Context, wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return "", authdomain.ErrWalletRequired
	}
	if _, err := soroban.DecodeAccountID(wallet); err != nil {
		return "", authdomain.ErrInvalidWallet
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	message := fmt.Sprintf("CoTravel Login: %s", hex.EncodeToString(nonce))
	s.challenges.Put(wallet, message)

	s.log.Debug("challenge issued", zap.String("wallet", wallet))
	return message, nil
}

func (s *Service) Login(ctx context.Context, req authdomain.LoginRequest) (authdomain.LoginResponse, error) {
	if req.Provider != "" && req.Provider != "wallet" {
		return authdomain.LoginResponse{}, authdomain.ErrUnsupportedSignin
	}

	wallet := strings.TrimSpace(req.Wallet)
	if wallet == "" {
		return authdomain.LoginResponse{}, authdomain.ErrWalletRequired
	}
	if strings.TrimSpace(req.Signature) == "" {
		return authdomain.LoginResponse{}, authdomain.ErrSignatureRequired
	}

	message, found, valid := s.challenges.Take(wallet)
	if !found {
		return authdomain.LoginResponse{}, authdomain.ErrChallengeNotFound
	}
	if !valid {
		return authdomain.LoginResponse{}, authdomain.ErrChallengeExpired
	}

	if err := verifySignedMessage(wallet, message, req.Signature); err != nil {
		s.log.Info("login rejected", zap.String("wallet", wallet), zap.Error(err))
		return authdomain.LoginResponse{}, authdomain.ErrInvalidSignature
	}

	user, err := s.findOrCreateUser(ctx, wallet)
	if err != nil {
		return authdomain.LoginResponse{}, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return authdomain.LoginResponse{}, err
	}

	s.log.Info("wallet login",
		zap.Int64("user_id", int64(user.ID)),
		zap.String("wallet", wallet))
	return authdomain.LoginResponse{Token: token, User: user}, nil
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (authdomain.User, error) {
	var user authdomain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return authdomain.User{}, authdomain.ErrUserNotFound
		}
		return authdomain.User{}, err
	}
	return user, nil
}

func (s *Service) ParseToken(raw string) (authdomain.Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return authdomain.Claims{}, authdomain.ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil {
		return authdomain.Claims{}, authdomain.ErrInvalidToken
	}
	return authdomain.Claims{
		UserID:        userID,
		WalletAddress: claims.WalletAddress,
		Provider:      claims.Provider,
	}, nil
}

func (s *Service) findOrCreateUser(ctx context.Context, wallet string) (authdomain.User, error) {
	var user authdomain.User
	err := s.db.WithContext(ctx).First(&user, "wallet_address = ?", wallet).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return authdomain.User{}, err
	}

	now := s.clock.Now()
	user = authdomain.User{
		ID:            s.genID.Generate(),
		WalletAddress: wallet,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return authdomain.User{}, err
	}
	s.log.Info("user created", zap.Int64("user_id", int64(user.ID)))
	return user, nil
}

func (s *Service) issueToken(user authdomain.User) (string, error) {
	now := s.clock.Now()
	claims := tokenClaims{
		WalletAddress: user.WalletAddress,
		Provider:      "wallet",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

// verifySignedMessage checks an ed25519 signature over
// sha256(prefix || message), the scheme browser wallets use for
// signMessage.
func verifySignedMessage(wallet, message, signatureB64 string) error {
	key, err := soroban.DecodeAccountID(wallet)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return err
	}
	digest := sha256.Sum256([]byte(signedMessagePrefix + message))
	if !ed25519.Verify(ed25519.PublicKey(key), digest[:], sig) {
		return errors.New("signature does not match wallet key")
	}
	return nil
}
