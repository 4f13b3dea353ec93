package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

const defaultClockSkew = 2 * time.Minute

type contextKey string

const (
	callerKey  contextKey = "escrow.caller"
	paymentKey contextKey = "escrow.payment"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Payment is an attached deposit attested by a payment token.
type Payment struct {
	ReceiptId string
	Amount    string
	ExpiresAt time.Time
}

// Claims are the token claims. AttachedDeposit is set only on payment tokens
// minted by the host that received the payment.
type Claims struct {
	AttachedDeposit string `json:"attached_deposit,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens. The token subject is the
// caller account for every state-changing operation.
type Authenticator struct {
	secret []byte
	issuer string
	skew   time.Duration
}

func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("jwt secret cannot be empty")
	}
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		skew:   defaultClockSkew,
	}, nil
}

// IssueToken signs a token for account valid for ttl.
func (a *Authenticator) IssueToken(account string, ttl time.Duration) (string, error) {
	return a.IssuePaymentToken(account, "", ttl)
}

// IssuePaymentToken signs a token that attests attached base units paid by
// account. An empty attached amount issues a plain token.
func (a *Authenticator) IssuePaymentToken(account, attached string, ttl time.Duration) (string, error) {
	if account == "" {
		return "", fmt.Errorf("account cannot be empty")
	}
	if attached != "" {
		if _, err := uint256.FromDecimal(attached); err != nil {
			return "", fmt.Errorf("invalid attached deposit %q: %w", attached, err)
		}
	}
	now := time.Now()
	claims := Claims{
		AttachedDeposit: attached,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   account,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Caller parses the bearer token and returns its subject.
func (a *Authenticator) Caller(header string) (string, error) {
	claims, err := a.Verify(header)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Verify parses the bearer token and returns its claims.
func (a *Authenticator) Verify(header string) (*Claims, error) {
	raw := extractBearer(header)
	if raw == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.skew),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: subject is empty", ErrInvalidToken)
	}
	if claims.AttachedDeposit != "" {
		if _, err := uint256.FromDecimal(claims.AttachedDeposit); err != nil {
			return nil, fmt.Errorf("%w: invalid attached deposit", ErrInvalidToken)
		}
		if claims.ID == "" || claims.ExpiresAt == nil {
			return nil, fmt.Errorf("%w: payment token without receipt id", ErrInvalidToken)
		}
	}
	return claims, nil
}

// Middleware rejects requests without a valid token and stores the caller
// account on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Verify(r.Header.Get("Authorization"))
		if err != nil {
			zap.L().Debug("Rejected request", zap.String("path", r.URL.Path), zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, errorBody(err, "unauthenticated"))
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, claims.Subject)
		if claims.AttachedDeposit != "" {
			ctx = context.WithValue(ctx, paymentKey, Payment{
				ReceiptId: claims.ID,
				Amount:    claims.AttachedDeposit,
				ExpiresAt: claims.ExpiresAt.Time,
			})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerFromContext returns the authenticated account, or "" outside the
// authenticated routes.
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey).(string)
	return caller
}

// PaymentFromContext returns the payment attested by the caller's token.
func PaymentFromContext(ctx context.Context) (Payment, bool) {
	payment, ok := ctx.Value(paymentKey).(Payment)
	return payment, ok
}

func extractBearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
