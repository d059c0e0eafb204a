package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/api/responses"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

const actorIDHeader = "X-Actor-Id"

// Actor records the optional X-Actor-Id header in the request context and the
// log context. It does not authenticate; the acting user of a mutation is
// still taken from the request body.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(actorIDHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+actorIDHeader+" header"))
				return
			}

			ctx := WithActorID(r.Context(), id)
			if logg != nil {
				ctx = logg.WithActorID(ctx, id.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
