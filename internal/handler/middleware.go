package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Shivanand-hulikatti/slot-booking/internal/booking"
	"github.com/Shivanand-hulikatti/slot-booking/internal/model"
)

// UserHeader carries the authenticated user id, set by the fronting proxy.
const UserHeader = "X-User-ID"

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the user id stored by RequireUser, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID returns a copy of ctx carrying id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Identify stores the X-User-ID header, when present, in the request
// context.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects requests that Identify found no user for.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			writeJSON(w, http.StatusUnauthorized, model.RegisterResponse{
				Error:   string(booking.ReasonUnauthenticated),
				Message: booking.ErrUnauthenticated.Error(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Logger writes one access log line per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			requestID := chimiddleware.GetReqID(r.Context())
			if requestID == "" {
				requestID = "-"
			}
			log.Printf(
				"http method=%s path=%s status=%d bytes=%d duration=%s request_id=%s",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start), requestID,
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// CORS allows any origin to call the API.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+UserHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit gives every user its own token bucket of limit and burst and
// sheds attempts beyond it with 429. Requests without a user share the
// bucket of their remote address. Buckets unused for idle are dropped.
func RateLimit(limit rate.Limit, burst int, idle time.Duration) func(http.Handler) http.Handler {
	buckets := gocache.New(idle, idle)
	limiterFor := func(key string) *rate.Limiter {
		if v, ok := buckets.Get(key); ok {
			buckets.SetDefault(key, v)
			return v.(*rate.Limiter)
		}
		lim := rate.NewLimiter(limit, burst)
		if err := buckets.Add(key, lim, gocache.DefaultExpiration); err != nil {
			// Lost the race to another request for the same key.
			if v, ok := buckets.Get(key); ok {
				return v.(*rate.Limiter)
			}
		}
		return lim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := UserID(r.Context())
			if key == "" {
				key = "addr:" + r.RemoteAddr
			}
			if !limiterFor(key).Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, model.RegisterResponse{
					Error:   string(booking.ReasonRateLimited),
					Message: booking.ErrRateLimited.Error(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
