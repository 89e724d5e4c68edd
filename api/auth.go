package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/agency-billing/billing"
)

// =============================================================================
// ACTOR MIDDLEWARE - bearer token issued by the identity service
// =============================================================================

// Claims is the token payload. Subject is the employee id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type actorKey struct{}

// ActorFrom returns the actor resolved by Authenticator.
func ActorFrom(ctx context.Context) (billing.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(billing.Actor)
	return a, ok
}

func withActor(ctx context.Context, a billing.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

func (a *Authenticator) Parse(raw string) (billing.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return a.secret, nil }, opts...)
	if err != nil {
		return billing.Actor{}, err
	}
	if claims.Subject == "" {
		return billing.Actor{}, errors.New("token has no subject")
	}
	return billing.Actor{ID: billing.EmployeeID(claims.Subject), Role: billing.Role(claims.Role)}, nil
}

// Issue signs a token for an employee. Used by the CLI and tests; production
// tokens come from the identity service.
func (a *Authenticator) Issue(employeeID billing.EmployeeID, role billing.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(employeeID),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid bearer token and stores the
// actor on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		actor, err := a.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}
