package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RoleMappingRW is required on every endpoint that mutates mapping state.
const RoleMappingRW = "ROLE_NOMIS_MAPPING__RW"

// RoleMappingRO suffices for lookups and migration listings.
const RoleMappingRO = "ROLE_NOMIS_MAPPING__RO"

type authClaims struct {
	Authorities []string `json:"authorities"`
	jwt.RegisteredClaims
}

// RequireRole validates the bearer token and checks the authorities claim
// for any of the given roles. Token validation failures and missing roles
// are both reported as 401/403 JSON envelopes before any handler runs.
func RequireRole(signingKey string, logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(signingKey), nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				unauthorized(w)
				return
			}
			claims := &authClaims{}
			if _, err := jwt.ParseWithClaims(raw, claims, keyFunc); err != nil {
				logger.WarnContext(r.Context(), "rejected invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w)
				return
			}
			if !hasAnyRole(claims.Authorities, roles) {
				logger.WarnContext(r.Context(), "rejected token without required role",
					"roles", roles,
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"Missing required role"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyRole(authorities []string, roles []string) bool {
	for _, a := range authorities {
		for _, role := range roles {
			if a == role {
				return true
			}
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`))
}
