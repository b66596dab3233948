package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"knomee/pkg/platform/httputil"
	"knomee/pkg/requestcontext"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
	HeaderStatus    = "X-RateLimit-Status"
)

// Middleware limits authenticated callers to limit commands per window. It
// must run after the caller is authenticated. Store errors fail open.
func Middleware(store Store, limit Limit, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || !limit.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			caller := requestcontext.Caller(ctx)
			if caller.IsZero() || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			res, err := store.Allow(ctx, CallerKey(caller.String()), limit)
			if err != nil {
				logger.ErrorContext(ctx, "failed to check rate limit",
					"request_id", requestcontext.RequestID(ctx),
					"caller", caller.String(),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set(HeaderLimit, strconv.Itoa(res.Limit))
			h.Set(HeaderRemaining, strconv.Itoa(res.Remaining))
			h.Set(HeaderReset, strconv.FormatInt(res.ResetAt.Unix(), 10))
			if res.Degraded {
				h.Set(HeaderStatus, "degraded")
			}
			if !res.Allowed {
				retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				logger.WarnContext(ctx, "caller rate limited",
					"request_id", requestcontext.RequestID(ctx),
					"caller", caller.String(),
				)
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
					Error:            "rate_limit_exceeded",
					ErrorDescription: "too many commands, retry after " + strconv.Itoa(retryAfter) + "s",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
