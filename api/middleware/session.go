package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/traverseglobe/quotation-backend/api/responses"
	"github.com/traverseglobe/quotation-backend/internal/quotation"
	pkgerrors "github.com/traverseglobe/quotation-backend/pkg/errors"
	"github.com/traverseglobe/quotation-backend/pkg/logger"
)

// SessionParam is the route parameter carrying the quotation session id.
const SessionParam = "id"

type sessionStore interface {
	Get(ctx context.Context, sessionID string) (*quotation.Container, error)
}

// Session resolves the session id in the path to its quotation container,
// reopening it from storage when it is not live. Unknown ids are 404.
func Session(store sessionStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if store == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session store unavailable"))
				return
			}

			sessionID := chi.URLParam(r, SessionParam)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			c, err := store.Get(ctx, sessionID)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(ctx, sessionID, c)))
		})
	}
}
