package idempotency

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
	"knomee/pkg/platform/httputil"
	"knomee/pkg/requestcontext"
)

type MiddlewareSuite struct {
	suite.Suite
	store  *MemoryStore
	calls  atomic.Int32
	status int
	fail   error
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.calls.Store(0)
	s.status = http.StatusCreated
	s.fail = nil
}

func (s *MiddlewareSuite) handler() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := s.calls.Add(1)
		if s.fail != nil {
			httputil.WriteError(w, s.fail)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `,"echo":` + string(body) + `}`))
	})
	return Middleware(s.store, time.Hour, logger)(next)
}

func (s *MiddlewareSuite) send(caller domain.Address, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/claims/1/vouches", strings.NewReader(body))
	ctx := requestcontext.WithCaller(context.Background(), caller)
	if key != "" {
		ctx = requestcontext.WithIdempotencyKey(ctx, key)
	}
	rr := httptest.NewRecorder()
	s.handler().ServeHTTP(rr, req.WithContext(ctx))
	return rr
}

func (s *MiddlewareSuite) TestReplaysCompletedResponse() {
	first := s.send("alice", "k1", `{"stake":1}`)
	s.Equal(http.StatusCreated, first.Code)
	s.Empty(first.Header().Get(HeaderReplayed))

	second := s.send("alice", "k1", `{"stake":1}`)
	s.Equal(http.StatusCreated, second.Code)
	s.Equal("true", second.Header().Get(HeaderReplayed))
	s.Equal("application/json", second.Header().Get("Content-Type"))
	s.Equal(first.Body.String(), second.Body.String())
	s.Equal(int32(1), s.calls.Load())
}

func (s *MiddlewareSuite) TestKeyReusedWithDifferentBody() {
	s.send("alice", "k1", `{"stake":1}`)
	rr := s.send("alice", "k1", `{"stake":2}`)
	s.Equal(http.StatusConflict, rr.Code)
	s.Contains(rr.Body.String(), "idempotency_key_reused")
	s.Equal(int32(1), s.calls.Load())
}

func (s *MiddlewareSuite) TestKeysAreScopedPerCaller() {
	s.send("alice", "k1", `{"stake":1}`)
	rr := s.send("bob", "k1", `{"stake":1}`)
	s.Equal(http.StatusCreated, rr.Code)
	s.Empty(rr.Header().Get(HeaderReplayed))
	s.Equal(int32(2), s.calls.Load())
}

func (s *MiddlewareSuite) TestServerErrorsAreNotRecorded() {
	s.status = http.StatusInternalServerError
	s.send("alice", "k1", `{}`)
	s.status = http.StatusCreated
	rr := s.send("alice", "k1", `{}`)
	s.Equal(http.StatusCreated, rr.Code)
	s.Equal(int32(2), s.calls.Load())
}

func (s *MiddlewareSuite) TestClientErrorsAreRecorded() {
	s.status = http.StatusConflict
	s.send("alice", "k1", `{}`)
	s.status = http.StatusCreated
	rr := s.send("alice", "k1", `{}`)
	s.Equal(http.StatusConflict, rr.Code)
	s.Equal(int32(1), s.calls.Load())
}

func (s *MiddlewareSuite) TestTimingRejectionsAreNotRecorded() {
	s.fail = dErrors.New(dErrors.CodeTiming, "claim has not reached a decision")
	first := s.send("alice", "k1", `{}`)
	s.Equal(http.StatusConflict, first.Code)
	s.Contains(first.Body.String(), string(dErrors.CodeTiming))

	s.fail = nil
	rr := s.send("alice", "k1", `{}`)
	s.Equal(http.StatusCreated, rr.Code)
	s.Empty(rr.Header().Get(HeaderReplayed))
	s.Equal(int32(2), s.calls.Load())

	s.Run("conflicts are still replayed", func() {
		s.fail = dErrors.New(dErrors.CodeConflict, "claim is already resolved")
		s.send("alice", "k2", `{}`)
		s.fail = nil
		rr := s.send("alice", "k2", `{}`)
		s.Equal(http.StatusConflict, rr.Code)
		s.Equal("true", rr.Header().Get(HeaderReplayed))
		s.Equal(int32(3), s.calls.Load())
	})
}

func (s *MiddlewareSuite) TestOversizedBodyIsRejected() {
	body := `{"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rr := s.send("alice", "k1", body)
	s.Equal(http.StatusRequestEntityTooLarge, rr.Code)
	s.Contains(rr.Body.String(), "request body too large")
	s.Zero(s.calls.Load())

	rr = s.send("alice", "k1", `{}`)
	s.Equal(http.StatusCreated, rr.Code)
}

func (s *MiddlewareSuite) TestInFlightKeyConflicts() {
	_, err := s.store.Reserve(context.Background(), digest("alice", http.MethodPost, "/claims/1/vouches", "k1"), time.Hour)
	s.Require().NoError(err)

	rr := s.send("alice", "k1", `{}`)
	s.Equal(http.StatusConflict, rr.Code)
	s.Contains(rr.Body.String(), "idempotency_in_progress")
	s.Zero(s.calls.Load())
}

func (s *MiddlewareSuite) TestWithoutKeyPassesThrough() {
	s.send("alice", "", `{}`)
	s.send("alice", "", `{}`)
	s.Equal(int32(2), s.calls.Load())
}
