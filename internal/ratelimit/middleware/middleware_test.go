package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fleetgate/internal/audit"
	"fleetgate/internal/audit/store/memory"
	"fleetgate/internal/ratelimit"
	"fleetgate/internal/ratelimit/middleware"
	ratelimitstore "fleetgate/internal/ratelimit/store"
	"fleetgate/internal/token"
	"fleetgate/pkg/testutil"
)

type limitCounter struct {
	rejections int
	bypasses   int
}

func (c *limitCounter) IncRateLimitRejection() { c.rejections++ }
func (c *limitCounter) IncRateLimitBypass()    { c.bypasses++ }

type errorLimiter struct{}

func (errorLimiter) Allow(context.Context, string) (ratelimit.Result, error) {
	return ratelimit.Result{}, context.DeadlineExceeded
}

type MiddlewareSuite struct {
	suite.Suite
	store   *memory.InMemoryStore
	metrics *limitCounter
	mw      *middleware.Middleware
	reached int
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.metrics = &limitCounter{}
	s.reached = 0

	ledger, err := audit.NewLedger(s.store, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)

	limiter, err := ratelimit.New(ratelimitstore.NewInMemoryStore(), time.Minute, 10)
	s.Require().NoError(err)

	s.mw, err = middleware.New(limiter, ledger, 30*24*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)),
		middleware.WithMetrics(s.metrics))
	s.Require().NoError(err)
}

func (s *MiddlewareSuite) handler() http.Handler {
	return s.mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.reached++
		w.WriteHeader(http.StatusAccepted)
	}))
}

func (s *MiddlewareSuite) request(principal *token.Principal) *http.Request {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/instances/r-42/reboot")
	if principal != nil {
		req = testutil.WithPrincipal(req, *principal)
	}
	return req
}

func admin() *token.Principal {
	return &token.Principal{SubjectID: "admin-1", Email: "admin@example.com", Role: token.RoleAdmin}
}

func (s *MiddlewareSuite) TestMissingPrincipalFailsClosed() {
	rr := testutil.DoRequest(s.handler(), s.request(nil))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	s.Zero(s.reached)
}

func (s *MiddlewareSuite) TestEleventhRequestRejected() {
	handler := s.handler()

	for i := 0; i < 10; i++ {
		rr := testutil.DoRequest(handler, s.request(admin()))
		testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
	}

	rr := testutil.DoRequest(handler, s.request(admin()))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, "rate_limited")
	s.NotEmpty(rr.Header().Get("Retry-After"))
	s.Equal(10, s.reached)
	s.Equal(1, s.metrics.rejections)
}

func (s *MiddlewareSuite) TestRejectionNotAudited() {
	handler := s.handler()
	for i := 0; i < 11; i++ {
		testutil.DoRequest(handler, s.request(admin()))
	}

	records, err := s.store.List(context.Background(), audit.Query{SubjectID: "admin-1"})
	s.Require().NoError(err)
	s.Empty(records, "quota rejections are not access-control events")
}

func (s *MiddlewareSuite) TestLimitHeadersExposed() {
	rr := testutil.DoRequest(s.handler(), s.request(admin()))

	s.Equal("10", rr.Header().Get("X-RateLimit-Limit"))
	s.Equal("9", rr.Header().Get("X-RateLimit-Remaining"))
	s.NotEmpty(rr.Header().Get("X-RateLimit-Reset"))
}

func (s *MiddlewareSuite) TestAdminBypassSkipsLimiterAndIsAudited() {
	handler := s.handler()

	// Exhaust the window, then bypass.
	for i := 0; i < 10; i++ {
		testutil.DoRequest(handler, s.request(admin()))
	}

	req := s.request(admin())
	req.Header.Set(middleware.BypassHeader, "true")
	rr := testutil.DoRequest(handler, req)

	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
	s.Equal(11, s.reached)
	s.Equal(1, s.metrics.bypasses)

	records, err := s.store.List(context.Background(), audit.Query{
		SubjectID: "admin-1",
		Action:    audit.ActionRateLimitBypass,
	})
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(audit.ResultSuccess, records[0].Result)
	s.Equal("admin@example.com", records[0].SubjectEmail)
}

func (s *MiddlewareSuite) TestBypassIgnoredForReadonly() {
	handler := s.handler()
	principal := &token.Principal{SubjectID: "viewer-1", Role: token.RoleReadonly}

	for i := 0; i < 10; i++ {
		testutil.DoRequest(handler, s.request(principal))
	}

	req := s.request(principal)
	req.Header.Set(middleware.BypassHeader, "true")
	rr := testutil.DoRequest(handler, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, "rate_limited")
	s.Zero(s.metrics.bypasses)
}

func (s *MiddlewareSuite) TestStoreOutageFailsClosed() {
	ledger, err := audit.NewLedger(s.store, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	mw, err := middleware.New(errorLimiter{}, ledger, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)

	handler := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.reached++
	}))
	rr := testutil.DoRequest(handler, s.request(admin()))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
	s.Zero(s.reached)
}
