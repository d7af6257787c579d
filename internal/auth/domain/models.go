// Package domain defines wallet-based authentication: a signed-message
// challenge flow and bearer token issuance.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrWalletRequired    = errors.New("wallet address is required")
	ErrInvalidWallet     = errors.New("wallet address is not a valid account")
	ErrSignatureRequired = errors.New("signature is required")
	ErrChallengeNotFound = errors.New("no challenge found for this wallet, request one first")
	ErrChallengeExpired  = errors.New("challenge expired, request a new one")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrUserNotFound      = errors.New("user not found")
	ErrUnsupportedSignin = errors.New("unsupported sign-in provider")
)

// User is an authenticated wallet holder. The wallet address is the
// identity; username is optional display data.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	WalletAddress string       `gorm:"type:text;not null;uniqueIndex" json:"wallet_address"`
	Username      *string      `gorm:"type:text" json:"username,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Claims is the verified content of a bearer token.
type Claims struct {
	UserID        snowflake.ID
	WalletAddress string
	Provider      string
}

type LoginRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
	Provider  string `json:"provider,omitempty"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Auth interface {
	// Challenge issues a fresh message for the wallet to sign. It
	// replaces any previous challenge for the same wallet.
	Challenge(ctx context.Context, wallet string) (string, error)

	// Login verifies the signed challenge, consumes it, and returns a
	// bearer token for the (created-on-first-login) user.
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)

	GetUser(ctx context.Context, id snowflake.ID) (User, error)

	// ParseToken validates a bearer token and returns its claims.
	ParseToken(token string) (Claims, error)
}
