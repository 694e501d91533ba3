package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/marondal/donation-engine/api/responses"
	pkgAuth "github.com/marondal/donation-engine/pkg/auth"
	"github.com/marondal/donation-engine/pkg/config"
	pkgerrors "github.com/marondal/donation-engine/pkg/errors"
	"github.com/marondal/donation-engine/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxFarmerID, claims.FarmerID.String())
			ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
			if claims.FarmID != nil {
				ctx = context.WithValue(ctx, ctxFarmID, claims.FarmID.String())
			}

			if logg != nil {
				fields := map[string]any{
					"farmer_id":  claims.FarmerID.String(),
					"actor_role": string(claims.Role),
				}
				if claims.FarmID != nil {
					fields["farm_id"] = claims.FarmID.String()
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
