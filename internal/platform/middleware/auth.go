package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CallerClaims identifies the authenticated caller of a ledger request. The
// DID is taken from the token subject; record-level ownership checks happen
// in the ledgers, not here.
type CallerClaims struct {
	DID  string
	Role string
}

// TokenValidator validates bearer tokens presented to the gateway.
type TokenValidator interface {
	ValidateToken(tokenString string) (*CallerClaims, error)
}

// JWTValidator validates HMAC-signed JWTs issued by the identity layer.
type JWTValidator struct {
	signingKey []byte
}

func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{signingKey: []byte(signingKey)}
}

func (v *JWTValidator) ValidateToken(tokenString string) (*CallerClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token missing subject")
	}

	role, _ := claims["role"].(string)
	return &CallerClaims{DID: sub, Role: role}, nil
}

// IssueToken mints a caller token; used by tests and dev tooling.
func (v *JWTValidator) IssueToken(did, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  did,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString(v.signingKey)
}

type callerDIDKey struct{}
type callerRoleKey struct{}

// GetCallerDID retrieves the authenticated caller DID from the context.
func GetCallerDID(ctx context.Context) string {
	if did, ok := ctx.Value(callerDIDKey{}).(string); ok {
		return did
	}
	return ""
}

// GetCallerRole retrieves the authenticated caller role from the context.
func GetCallerRole(ctx context.Context) string {
	if role, ok := ctx.Value(callerRoleKey{}).(string); ok {
		return role
	}
	return ""
}

// WithCaller stamps caller identity on a context; exported for handler tests.
func WithCaller(ctx context.Context, did, role string) context.Context {
	ctx = context.WithValue(ctx, callerDIDKey{}, did)
	return context.WithValue(ctx, callerRoleKey{}, role)
}

// RequireCaller enforces a valid bearer token and stores the caller identity
// in the request context.
func RequireCaller(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				unauthorized(w, "Missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(ctx, claims.DID, claims.Role)))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	writeError(w, http.StatusUnauthorized, "unauthorized", description)
}
