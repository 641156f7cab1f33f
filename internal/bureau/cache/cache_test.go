package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"loanflow/internal/bureau"
	"loanflow/internal/bureau/mocks"
	"loanflow/pkg/platform/sentinel"
)

// =============================================================================
// Cached Credit Bureau Test Suite
// =============================================================================
// Justification for unit tests: the decorator must only reach the bureau on
// a miss, collapse concurrent misses, and never fail a fetch because the
// cache misbehaved.

type CachedCreditBureauSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	upstream *mocks.MockCreditBureau
	store    *MemoryStore
	cached   *CachedCreditBureau
}

func TestCachedCreditBureauSuite(t *testing.T) {
	suite.Run(t, new(CachedCreditBureauSuite))
}

func (s *CachedCreditBureauSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.upstream = mocks.NewMockCreditBureau(s.ctrl)
	s.store = NewMemoryStore(time.Minute)
	s.cached = NewCachedCreditBureau(s.upstream, s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func (s *CachedCreditBureauSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *CachedCreditBureauSuite) TestMissThenHit() {
	ctx := context.Background()
	s.upstream.EXPECT().
		FetchReport(gomock.Any(), "abcde1234f").
		Return(&bureau.CreditReport{CIBILScore: 780}, nil).
		Times(1)

	first, err := s.cached.FetchReport(ctx, "abcde1234f")
	s.Require().NoError(err)
	s.Equal(780, first.CIBILScore)
	s.Equal("ABCDE1234F", first.PAN, "pan filled from the normalized key")

	second, err := s.cached.FetchReport(ctx, "ABCDE1234F")
	s.Require().NoError(err)
	s.Equal(780, second.CIBILScore)

	second.CIBILScore = 300
	third, err := s.cached.FetchReport(ctx, "ABCDE1234F")
	s.Require().NoError(err)
	s.Equal(780, third.CIBILScore, "callers receive copies")
}

func (s *CachedCreditBureauSuite) TestUpstreamErrorIsNotCached() {
	ctx := context.Background()
	outage := bureau.NewProviderError(bureau.ErrorProviderOutage, "cibil", "down", nil)
	gomock.InOrder(
		s.upstream.EXPECT().FetchReport(gomock.Any(), "ABCDE1234F").Return(nil, outage),
		s.upstream.EXPECT().FetchReport(gomock.Any(), "ABCDE1234F").
			Return(&bureau.CreditReport{PAN: "ABCDE1234F", CIBILScore: 700}, nil),
	)

	_, err := s.cached.FetchReport(ctx, "ABCDE1234F")
	s.ErrorIs(err, outage)

	report, err := s.cached.FetchReport(ctx, "ABCDE1234F")
	s.Require().NoError(err)
	s.Equal(700, report.CIBILScore)
}

func (s *CachedCreditBureauSuite) TestConcurrentMissesShareOneCall() {
	release := make(chan struct{})
	s.upstream.EXPECT().
		FetchReport(gomock.Any(), "ABCDE1234F").
		DoAndReturn(func(context.Context, string) (*bureau.CreditReport, error) {
			<-release
			return &bureau.CreditReport{PAN: "ABCDE1234F", CIBILScore: 650}, nil
		}).
		Times(1)

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.cached.FetchReport(context.Background(), "ABCDE1234F")
			if err == nil {
				results[i] = r.CIBILScore
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, score := range results {
		s.Equal(650, score)
	}
}

func (s *CachedCreditBureauSuite) TestBrokenStoreFallsThrough() {
	cached := NewCachedCreditBureau(s.upstream, failingStore{})
	s.upstream.EXPECT().
		FetchReport(gomock.Any(), "ABCDE1234F").
		Return(&bureau.CreditReport{PAN: "ABCDE1234F", CIBILScore: 720}, nil)

	report, err := cached.FetchReport(context.Background(), "ABCDE1234F")
	s.Require().NoError(err)
	s.Equal(720, report.CIBILScore)
}

func (s *CachedCreditBureauSuite) TestUnavailableStoreIsSkipped() {
	store := &unreachableStore{}
	cached := NewCachedCreditBureau(s.upstream, store)
	s.upstream.EXPECT().
		FetchReport(gomock.Any(), "ABCDE1234F").
		Return(&bureau.CreditReport{PAN: "ABCDE1234F", CIBILScore: 710}, nil)

	report, err := cached.FetchReport(context.Background(), "ABCDE1234F")
	s.Require().NoError(err)
	s.Equal(710, report.CIBILScore)
	s.Equal(int32(1), store.gets.Load(), "no second read once the store is down")
	s.Equal(int32(0), store.puts.Load(), "no write once the store is down")
}

type unreachableStore struct {
	gets atomic.Int32
	puts atomic.Int32
}

func (u *unreachableStore) Get(context.Context, string) (*bureau.CreditReport, error) {
	u.gets.Add(1)
	return nil, sentinel.ErrUnavailable
}

func (u *unreachableStore) Put(context.Context, *bureau.CreditReport) error {
	u.puts.Add(1)
	return sentinel.ErrUnavailable
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (*bureau.CreditReport, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) Put(context.Context, *bureau.CreditReport) error {
	return errors.New("connection reset")
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(10 * time.Minute)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Put(ctx, &bureau.CreditReport{PAN: "abcde1234f", CIBILScore: 780}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "ABCDE1234F"); err != nil {
		t.Fatalf("expected hit, got %v", err)
	}

	now = now.Add(10 * time.Minute)
	if _, err := store.Get(ctx, "ABCDE1234F"); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, time.Minute)

	_, err := store.Get(context.Background(), "ABCDE1234F")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.NotErrorIs(t, err, sentinel.ErrNotFound)

	err = store.Put(context.Background(), &bureau.CreditReport{PAN: "ABCDE1234F"})
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
