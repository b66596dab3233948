package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	dErrors "knomee/pkg/domain-errors"
	"knomee/pkg/platform/httputil"
	"knomee/pkg/requestcontext"
)

const (
	// HeaderReplayed marks a response served from the idempotency store.
	HeaderReplayed = "Idempotent-Replayed"

	maxBodyBytes = 1 << 20
)

var (
	errInProgress = dErrors.NewReason(dErrors.CodeConflict, "idempotency_in_progress", "a request with this idempotency key is in progress")
	errKeyReused  = dErrors.NewReason(dErrors.CodeConflict, "idempotency_key_reused", "idempotency key was used with a different request")
)

// Middleware replays the recorded response when a caller repeats an
// Idempotency-Key on the same route. It must run after the caller is
// authenticated. Server errors and timing rejections are not recorded, so the
// request can be retried.
func Middleware(store Store, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := requestcontext.IdempotencyKey(ctx)
			if key == "" || (r.Method != http.MethodPost && r.Method != http.MethodPut) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
						Error:            string(dErrors.CodeBadRequest),
						ErrorDescription: "request body too large",
					})
					return
				}
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scoped := digest(requestcontext.Caller(ctx).String(), r.Method, r.URL.Path, key)
			fingerprint := digest(string(body))

			rec, err := store.Reserve(ctx, scoped, ttl)
			switch {
			case errors.Is(err, ErrInProgress):
				httputil.WriteError(w, errInProgress)
				return
			case err != nil:
				logger.ErrorContext(ctx, "idempotency store unavailable",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "idempotency store unavailable"))
				return
			case rec != nil:
				if rec.Fingerprint != fingerprint {
					httputil.WriteError(w, errKeyReused)
					return
				}
				replay(w, rec)
				return
			}

			var buf bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			// The request context may already be cancelled by the timeout.
			storeCtx := context.WithoutCancel(ctx)
			if status >= http.StatusInternalServerError || timingRejection(status, buf.Bytes()) {
				if err := store.Release(storeCtx, scoped); err != nil {
					logger.WarnContext(ctx, "failed to release idempotency key", "error", err)
				}
				return
			}
			if err := store.Complete(storeCtx, scoped, &Record{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        buf.Bytes(),
				CompletedAt: requestcontext.Now(ctx),
			}, ttl); err != nil {
				logger.WarnContext(ctx, "failed to record idempotent response",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
			}
		})
	}
}

// timingRejection reports a response that may succeed when sent again later.
func timingRejection(status int, body []byte) bool {
	if status != http.StatusConflict {
		return false
	}
	var resp httputil.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	return resp.Error == string(dErrors.CodeTiming)
}

func replay(w http.ResponseWriter, rec *Record) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
