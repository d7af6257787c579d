package server

import (
	"errors"
	"net/http"

	authdomain "github.com/cotravel/cotravel/internal/auth/domain"
	cartdomain "github.com/cotravel/cotravel/internal/cart/domain"
	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	ledgerdomain "github.com/cotravel/cotravel/internal/ledger/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRateLimited    = errors.New("too many requests")
	ErrInvalidRequest = errors.New("invalid request body")
)

type errorResponse struct {
	Error string `json:"error"`
}

// ErrorHandlingMiddleware turns errors recorded on the gin context
// into the JSON error body the frontend expects.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: lastErr.Err.Error()})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrInvalidSignature):
		return http.StatusUnauthorized

	case errors.Is(err, invoicedomain.ErrNotOrganizer),
		errors.Is(err, catalogdomain.ErrNotOwner):
		return http.StatusForbidden

	case errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, invoicedomain.ErrParticipantNotFound),
		errors.Is(err, catalogdomain.ErrBusinessNotFound),
		errors.Is(err, catalogdomain.ErrServiceNotFound),
		errors.Is(err, cartdomain.ErrItemNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, invoicedomain.ErrInvoiceClosed),
		errors.Is(err, invoicedomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrAlreadyLinked),
		errors.Is(err, invoicedomain.ErrAlreadyJoined),
		errors.Is(err, invoicedomain.ErrAlreadyWithdrawn),
		errors.Is(err, invoicedomain.ErrAlreadyConfirmed),
		errors.Is(err, invoicedomain.ErrConfirmUnavailable):
		return http.StatusConflict

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests

	// The ledger rejecting a transaction is reported verbatim so the
	// wallet user sees the contract's reason.
	case errors.Is(err, ledgerdomain.ErrLedgerRejected),
		errors.Is(err, ledgerdomain.ErrLedgerUnavailable):
		return http.StatusBadGateway

	case errors.Is(err, ledgerdomain.ErrSubmitTimeout):
		return http.StatusGatewayTimeout

	case isValidationError(err):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, invoicedomain.ErrInvalidInvoiceID),
		errors.Is(err, invoicedomain.ErrInvalidUserID),
		errors.Is(err, invoicedomain.ErrInvalidTitle),
		errors.Is(err, invoicedomain.ErrInvalidItems),
		errors.Is(err, invoicedomain.ErrInvalidAmount),
		errors.Is(err, invoicedomain.ErrInvalidDeadline),
		errors.Is(err, invoicedomain.ErrInvalidPenalty),
		errors.Is(err, invoicedomain.ErrSignedTxRequired),
		errors.Is(err, invoicedomain.ErrChangeSummaryEmpty),
		errors.Is(err, invoicedomain.ErrNotLinked),
		errors.Is(err, invoicedomain.ErrDeadlineNotPassed),
		errors.Is(err, catalogdomain.ErrInvalidName),
		errors.Is(err, catalogdomain.ErrInvalidPrice),
		errors.Is(err, catalogdomain.ErrInvalidID),
		errors.Is(err, cartdomain.ErrInvalidQuantity),
		errors.Is(err, cartdomain.ErrInvalidID),
		errors.Is(err, cartdomain.ErrCartEmpty),
		errors.Is(err, authdomain.ErrWalletRequired),
		errors.Is(err, authdomain.ErrInvalidWallet),
		errors.Is(err, authdomain.ErrSignatureRequired),
		errors.Is(err, authdomain.ErrChallengeNotFound),
		errors.Is(err, authdomain.ErrChallengeExpired),
		errors.Is(err, authdomain.ErrUnsupportedSignin):
		return true
	default:
		return false
	}
}
