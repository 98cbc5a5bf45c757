package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/grc-backend/pkg/ctxutil"
)

const (
	requestIDHeader = "X-Request-Id"
	actorHeader     = "X-Actor"
	maxHeaderValue  = 128
)

// RequestID propagates X-Request-Id, generating a fresh id when the header
// is missing or oversized, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxHeaderValue {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctxutil.WithRequestID(r.Context(), id)))
	})
}

// Actor stores the X-Actor header as the actor recorded in audit entries
// and logs. Requests without the header run as the system actor.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := r.Header.Get(actorHeader)
		if actor == "" || len(actor) > maxHeaderValue {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctxutil.WithActor(r.Context(), actor)))
	})
}
