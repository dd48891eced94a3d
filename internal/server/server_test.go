package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swivlabs/swivd/internal/domain"
	"github.com/swivlabs/swivd/internal/server/handler"
	"github.com/swivlabs/swivd/internal/service"
)

type fakeMarketStore struct {
	markets []domain.Market
}

func (f *fakeMarketStore) Upsert(ctx context.Context, m domain.Market) error { return nil }

func (f *fakeMarketStore) GetByAddress(ctx context.Context, address string) (domain.Market, error) {
	for _, m := range f.markets {
		if m.Address == address {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketStore) GetByPoolID(ctx context.Context, poolID uint64) (domain.Market, error) {
	for _, m := range f.markets {
		if m.PoolID == poolID {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return f.markets, nil
}

func (f *fakeMarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range f.markets {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMarketStore) ListResolvable(ctx context.Context, now time.Time) ([]domain.Market, error) {
	return nil, nil
}

func (f *fakeMarketStore) StatusByAddress(ctx context.Context) (map[string]domain.MarketStatus, error) {
	return nil, nil
}

func (f *fakeMarketStore) MarkResolved(ctx context.Context, poolID uint64, outcome int64, signature string) error {
	return nil
}

func (f *fakeMarketStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.markets)), nil
}

type fakeBetStore struct {
	bets []domain.Bet
}

func (f *fakeBetStore) Upsert(ctx context.Context, b domain.Bet) error { return nil }

func (f *fakeBetStore) GetByAddress(ctx context.Context, address string) (domain.Bet, error) {
	return domain.Bet{}, domain.ErrNotFound
}

func (f *fakeBetStore) Addresses(ctx context.Context) (map[string]struct{}, error) {
	return nil, nil
}

func (f *fakeBetStore) ListByPool(ctx context.Context, poolID uint64, opts domain.ListOpts) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range f.bets {
		if b.PoolID == poolID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBetStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range f.bets {
		if b.Owner == wallet {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBetStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.bets)), nil
}

type fakeUserStore struct {
	users int64
}

func (f *fakeUserStore) EnsureExists(ctx context.Context, wallet string) error { return nil }

func (f *fakeUserStore) Get(ctx context.Context, wallet string) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}

func (f *fakeUserStore) Count(ctx context.Context) (int64, error) { return f.users, nil }

type fakeProtocolStore struct {
	proto *domain.Protocol
}

func (f *fakeProtocolStore) Upsert(ctx context.Context, p domain.Protocol) error { return nil }

func (f *fakeProtocolStore) Get(ctx context.Context) (domain.Protocol, error) {
	if f.proto == nil {
		return domain.Protocol{}, domain.ErrNotFound
	}
	return *f.proto, nil
}

type fakeLeaderboardStore struct {
	entries []domain.LeaderboardEntry
}

func (f *fakeLeaderboardStore) AddEarnings(ctx context.Context, wallet string, amount float64) error {
	return nil
}

func (f *fakeLeaderboardStore) RecordResult(ctx context.Context, wallet string, won bool) error {
	return nil
}

func (f *fakeLeaderboardStore) Get(ctx context.Context, wallet string) (domain.LeaderboardEntry, error) {
	for _, e := range f.entries {
		if e.Wallet == wallet {
			return e, nil
		}
	}
	return domain.LeaderboardEntry{}, domain.ErrNotFound
}

func (f *fakeLeaderboardStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return f.entries[:limit], nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

type marketsPage struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type betsPage struct {
	Bets   []domain.Bet `json:"bets"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type leaderboardPage struct {
	Entries []domain.LeaderboardEntry `json:"entries"`
	Limit   int                       `json:"limit"`
}

type serverFixture struct {
	srv     *httptest.Server
	markets *fakeMarketStore
	bets    *fakeBetStore
	proto   *fakeProtocolStore
	board   *fakeLeaderboardStore
	db      *fakePinger
}

func newServerFixture(t *testing.T, cfg Config) *serverFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &serverFixture{
		markets: &fakeMarketStore{},
		bets:    &fakeBetStore{},
		proto:   &fakeProtocolStore{},
		board:   &fakeLeaderboardStore{},
		db:      &fakePinger{},
	}
	users := &fakeUserStore{}

	leaderboard := service.NewLeaderboard(f.board, f.bets, logger)
	stats := service.NewStatsService(f.markets, f.bets, users, f.proto)

	handlers := Handlers{
		Health:      handler.NewHealthHandler(map[string]handler.Pinger{"postgres": f.db}, logger),
		Markets:     handler.NewMarketHandler(f.markets, logger),
		Bets:        handler.NewBetHandler(f.bets, f.markets, logger),
		Protocol:    handler.NewProtocolHandler(f.proto, logger),
		Leaderboard: handler.NewLeaderboardHandler(leaderboard, logger),
		Stats:       handler.NewStatsHandler(stats, logger),
	}

	s := NewServer(cfg, handlers, nil, logger)
	f.srv = httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(f.srv.Close)
	return f
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestListMarketsFiltersByStatus(t *testing.T) {
	f := newServerFixture(t, Config{Port: 0})
	f.markets.markets = []domain.Market{
		{Address: "addr1", PoolID: 1, Status: domain.MarketStatusActive},
		{Address: "addr2", PoolID: 2, Status: domain.MarketStatusResolved},
	}

	resp, err := http.Get(f.srv.URL + "/api/markets?status=active")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[marketsPage](t, resp)
	require.Len(t, body.Markets, 1)
	require.Equal(t, uint64(1), body.Markets[0].PoolID)
	require.Equal(t, int64(2), body.Total)
}

func TestGetMarketByPoolIDAndAddress(t *testing.T) {
	f := newServerFixture(t, Config{Port: 0})
	f.markets.markets = []domain.Market{
		{Address: "So1anaAddr", PoolID: 7, Status: domain.MarketStatusActive},
	}

	resp, err := http.Get(f.srv.URL + "/api/markets/7")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decodeBody[domain.Market](t, resp)
	require.Equal(t, "So1anaAddr", m.Address)

	resp, err = http.Get(f.srv.URL + "/api/markets/So1anaAddr")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m = decodeBody[domain.Market](t, resp)
	require.Equal(t, uint64(7), m.PoolID)

	resp, err = http.Get(f.srv.URL + "/api/markets/999")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListMarketBetsResolvesAddress(t *testing.T) {
	f := newServerFixture(t, Config{Port: 0})
	f.markets.markets = []domain.Market{{Address: "poolAddr", PoolID: 3}}
	f.bets.bets = []domain.Bet{
		{Address: "bet1", PoolID: 3, Owner: "walletA"},
		{Address: "bet2", PoolID: 4, Owner: "walletA"},
	}

	resp, err := http.Get(f.srv.URL + "/api/markets/poolAddr/bets")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[betsPage](t, resp)
	require.Len(t, body.Bets, 1)
	require.Equal(t, "bet1", body.Bets[0].Address)
}

func TestListWalletBets(t *testing.T) {
	f := newServerFixture(t, Config{Port: 0})
	f.bets.bets = []domain.Bet{
		{Address: "bet1", PoolID: 3, Owner: "walletA"},
		{Address: "bet2", PoolID: 4, Owner: "walletB"},
	}

	resp, err := http.Get(f.srv.URL + "/api/wallets/walletA/bets")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[betsPage](t, resp)
	require.Len(t, body.Bets, 1)
	require.Equal(t, "walletA", body.Bets[0].Owner)
}

func TestGetProtocolNotSynced(t *testing.T) {
	f := newServerFixture(t, Config{Port: 0})

	resp, err := http.Get(f.srv.URL + "/api/protocol")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.proto.proto = &domain.Protocol{Admin: "adminKey", Paused: true}
	resp, err = http.Get(f.srv.URL + "/api/protocol")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decodeBody[domain.Protocol](t, resp)
	require.True(t, p.Paused)
}

func TestLeaderboardEndpoints(t *testing.T) {
	f := newServerFixture(t, Config{Port: 0})
	f.board.entries = []domain.LeaderboardEntry{
		{Wallet: "walletA", Wins: 3, Earnings: 12.5},
		{Wallet: "walletB", Wins: 1, Earnings: 4},
	}

	resp, err := http.Get(f.srv.URL + "/api/leaderboard?limit=1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[leaderboardPage](t, resp)
	require.Len(t, body.Entries, 1)
	require.Equal(t, "walletA", body.Entries[0].Wallet)

	resp, err = http.Get(f.srv.URL + "/api/leaderboard/walletB")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := decodeBody[domain.LeaderboardEntry](t, resp)
	require.Equal(t, int64(1), entry.Wins)

	resp, err = http.Get(f.srv.URL + "/api/leaderboard/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	f := newServerFixture(t, Config{Port: 0})
	f.markets.markets = []domain.Market{{PoolID: 1}, {PoolID: 2}}
	f.bets.bets = []domain.Bet{{Address: "bet1"}}

	resp, err := http.Get(f.srv.URL + "/api/stats")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeBody[service.Stats](t, resp)
	require.Equal(t, int64(2), stats.Markets)
	require.Equal(t, int64(1), stats.Bets)
}

func TestHealthDegradedOnFailingDependency(t *testing.T) {
	f := newServerFixture(t, Config{Port: 0})

	resp, err := http.Get(f.srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f.db.err = errors.New("connection refused")
	resp, err = http.Get(f.srv.URL + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	require.Equal(t, "degraded", body["status"])
}

func TestAuthProtectsAPIButNotHealth(t *testing.T) {
	f := newServerFixture(t, Config{Port: 0, APIKey: "secret"})

	resp, err := http.Get(f.srv.URL + "/api/markets")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/api/markets", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
