//go:build integration

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"knomee/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
	clock time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedisStore(s.redis.Client)
	s.store.now = func() time.Time { return s.clock }
}

func (s *RedisStoreSuite) SetupTest() {
	s.clock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSlidingWindow() {
	ctx := context.Background()
	limit := Limit{Requests: 2, Window: time.Minute}

	for want := 1; want >= 0; want-- {
		res, err := s.store.Allow(ctx, "k", limit)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(want, res.Remaining)
	}

	res, err := s.store.Allow(ctx, "k", limit)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(time.Minute, res.RetryAfter)

	s.clock = s.clock.Add(time.Minute + time.Millisecond)
	res, err = s.store.Allow(ctx, "k", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *RedisStoreSuite) TestConcurrentCallersNeverExceedLimit() {
	ctx := context.Background()
	limit := Limit{Requests: 10, Window: time.Minute}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(ctx, "shared", limit)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(limit.Requests, allowed)
}
