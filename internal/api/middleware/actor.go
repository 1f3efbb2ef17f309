package middleware

import (
	"context"
	"net/http"
)

const ActorKey contextKey = "actor"

// DefaultActor is recorded in audit fields when the caller does not
// identify itself.
const DefaultActor = "anonymous"

// Actor resolves the acting identity from the X-Actor header and stores
// it in the request context. Audit fields on sources and segments are
// stamped with this value.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := r.Header.Get("X-Actor")
		if actor == "" {
			actor = DefaultActor
		}

		ctx := context.WithValue(r.Context(), ActorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor returns the acting identity from context.
func GetActor(ctx context.Context) string {
	actor, _ := ctx.Value(ActorKey).(string)
	if actor == "" {
		return DefaultActor
	}
	return actor
}
