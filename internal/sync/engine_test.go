package sync

import (
	"context"
	"crypto/sha256"
	"io"
	"log/slog"
	stdsync "sync"
	"testing"
	"time"

	"github.com/near/borsh-go"
	"github.com/stretchr/testify/require"

	"github.com/swivlabs/swivd/internal/domain"
	"github.com/swivlabs/swivd/internal/notify"
	"github.com/swivlabs/swivd/internal/platform/solana"
)

type fakeNotifier struct {
	mu     stdsync.Mutex
	events []notify.Event
}

func (f *fakeNotifier) Notify(ctx context.Context, event notify.Event, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeLedger struct {
	accounts map[string][]byte
	programs map[string][]solana.KeyedAccount
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts: make(map[string][]byte),
		programs: make(map[string][]solana.KeyedAccount),
	}
}

func (f *fakeLedger) GetAccountInfo(_ context.Context, address string) ([]byte, error) {
	data, ok := f.accounts[address]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (f *fakeLedger) GetProgramAccounts(_ context.Context, _ string, discriminator []byte) ([]solana.KeyedAccount, error) {
	return f.programs[string(discriminator)], nil
}

func (f *fakeLedger) addProgramAccount(discriminator []byte, address string, data []byte) {
	f.accounts[address] = data
	f.programs[string(discriminator)] = append(f.programs[string(discriminator)],
		solana.KeyedAccount{Address: address, Data: data})
}

type fakeMarketStore struct {
	mu        stdsync.Mutex
	byAddress map[string]domain.Market
	upserts   int
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{byAddress: make(map[string]domain.Market)}
}

func (s *fakeMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.byAddress[m.Address] = m
	return nil
}

func (s *fakeMarketStore) GetByAddress(_ context.Context, address string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byAddress[address]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeMarketStore) GetByPoolID(_ context.Context, poolID uint64) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byAddress {
		if m.PoolID == poolID {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *fakeMarketStore) List(context.Context, domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.byAddress {
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeMarketStore) ListByStatus(_ context.Context, status domain.MarketStatus, _ domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.byAddress {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMarketStore) ListResolvable(_ context.Context, now time.Time) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.byAddress {
		resolvable := m.Status == domain.MarketStatusActive || m.Status == domain.MarketStatusClosed
		if resolvable && m.EndTime < now.Unix() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMarketStore) StatusByAddress(context.Context) (map[string]domain.MarketStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make(map[string]domain.MarketStatus, len(s.byAddress))
	for addr, m := range s.byAddress {
		statuses[addr] = m.Status
	}
	return statuses, nil
}

func (s *fakeMarketStore) MarkResolved(_ context.Context, poolID uint64, outcome int64, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, m := range s.byAddress {
		if m.PoolID == poolID {
			m.Status = domain.MarketStatusResolved
			m.IsResolved = true
			m.FinalOutcome = &outcome
			m.ResolutionSignature = &signature
			s.byAddress[addr] = m
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeMarketStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byAddress)), nil
}

type fakeBetStore struct {
	mu        stdsync.Mutex
	byAddress map[string]domain.Bet
	upserts   int
}

func newFakeBetStore() *fakeBetStore {
	return &fakeBetStore{byAddress: make(map[string]domain.Bet)}
}

func (s *fakeBetStore) Upsert(_ context.Context, b domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.byAddress[b.Address] = b
	return nil
}

func (s *fakeBetStore) GetByAddress(_ context.Context, address string) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byAddress[address]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *fakeBetStore) Addresses(context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make(map[string]struct{}, len(s.byAddress))
	for addr := range s.byAddress {
		addrs[addr] = struct{}{}
	}
	return addrs, nil
}

func (s *fakeBetStore) ListByPool(_ context.Context, poolID uint64, _ domain.ListOpts) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bet
	for _, b := range s.byAddress {
		if b.PoolID == poolID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBetStore) ListByWallet(_ context.Context, wallet string, _ domain.ListOpts) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bet
	for _, b := range s.byAddress {
		if b.Owner == wallet {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeBetStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byAddress)), nil
}

type fakeUserStore struct {
	mu      stdsync.Mutex
	wallets map[string]time.Time
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{wallets: make(map[string]time.Time)}
}

func (s *fakeUserStore) EnsureExists(_ context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[wallet]; !ok {
		s.wallets[wallet] = time.Now()
	}
	return nil
}

func (s *fakeUserStore) Get(_ context.Context, wallet string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created, ok := s.wallets[wallet]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return domain.User{Wallet: wallet, CreatedAt: created}, nil
}

func (s *fakeUserStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.wallets)), nil
}

type fakeProtocolStore struct {
	mu    stdsync.Mutex
	state *domain.Protocol
}

func (s *fakeProtocolStore) Upsert(_ context.Context, p domain.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &p
	return nil
}

func (s *fakeProtocolStore) Get(context.Context) (domain.Protocol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return domain.Protocol{}, domain.ErrNotFound
	}
	return *s.state, nil
}

type rewardCall struct {
	wallet string
	amount uint64
}

type fakeRewards struct {
	mu    stdsync.Mutex
	calls []rewardCall
}

func (r *fakeRewards) AccrueReward(_ context.Context, wallet string, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, rewardCall{wallet: wallet, amount: amount})
	return nil
}

type testFixture struct {
	engine   *Engine
	ledger   *fakeLedger
	markets  *fakeMarketStore
	bets     *fakeBetStore
	users    *fakeUserStore
	protocol *fakeProtocolStore
	rewards  *fakeRewards
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		ledger:   newFakeLedger(),
		markets:  newFakeMarketStore(),
		bets:     newFakeBetStore(),
		users:    newFakeUserStore(),
		protocol: &fakeProtocolStore{},
		rewards:  &fakeRewards{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.engine = NewEngine(
		Config{ProgramID: testProgramID},
		f.ledger, f.markets, f.bets, f.users, f.protocol, f.rewards, nil, logger,
	)
	return f
}

var testProgramID = func() solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = 0xAB
	return pk
}()

func testKey(b byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func encodePool(t *testing.T, acc solana.PoolAccount) []byte {
	t.Helper()
	payload, err := borsh.Serialize(acc)
	require.NoError(t, err)
	return append(solana.PoolDiscriminator(), payload...)
}

func encodeBet(t *testing.T, acc solana.UserBetAccount) []byte {
	t.Helper()
	payload, err := borsh.Serialize(acc)
	require.NoError(t, err)
	return append(solana.UserBetDiscriminator(), payload...)
}

func encodeProtocol(t *testing.T, acc solana.ProtocolAccount) []byte {
	t.Helper()
	payload, err := borsh.Serialize(acc)
	require.NoError(t, err)
	sum := sha256.Sum256([]byte("account:Protocol"))
	return append(sum[:8], payload...)
}

func testPool(poolID uint64, endTime int64) solana.PoolAccount {
	return solana.PoolAccount{
		PoolID:            poolID,
		Admin:             testKey(0x01),
		Name:              "BTC above 100k",
		Metadata:          `{"symbol":"BTC","category":"crypto","pyth_feed_id":"feed-btc","asset_decimals":6}`,
		TokenMint:         testKey(0x02),
		StartTime:         endTime - 3600,
		EndTime:           endTime,
		VaultBalance:      5_000_000,
		TotalWeight:       900,
		MaxAccuracyBuffer: 250,
		TotalParticipants: 3,
	}
}

func TestSyncAllMarketsUpsertsAndDerivesStatus(t *testing.T) {
	f := newFixture(t)
	future := time.Now().Add(time.Hour).Unix()
	past := time.Now().Add(-time.Hour).Unix()

	activeAddr := testKey(0x10).String()
	endedAddr := testKey(0x11).String()
	f.ledger.addProgramAccount(solana.PoolDiscriminator(), activeAddr, encodePool(t, testPool(1, future)))
	f.ledger.addProgramAccount(solana.PoolDiscriminator(), endedAddr, encodePool(t, testPool(2, past)))

	require.NoError(t, f.engine.SyncAllMarkets(context.Background()))

	active, err := f.markets.GetByAddress(context.Background(), activeAddr)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusActive, active.Status)
	require.Equal(t, uint64(1), active.PoolID)
	require.NotNil(t, active.PythFeedID)
	require.Equal(t, "feed-btc", *active.PythFeedID)
	require.NotNil(t, active.AssetDecimals)
	require.Equal(t, 6, *active.AssetDecimals)
	require.Equal(t, "crypto", active.Category)
	require.NotEmpty(t, active.VaultAddress)

	ended, err := f.markets.GetByAddress(context.Background(), endedAddr)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusClosed, ended.Status)
}

func TestSyncAllMarketsSkipsTerminal(t *testing.T) {
	f := newFixture(t)
	addr := testKey(0x10).String()
	f.ledger.addProgramAccount(solana.PoolDiscriminator(), addr, encodePool(t, testPool(1, time.Now().Add(time.Hour).Unix())))

	require.NoError(t, f.markets.Upsert(context.Background(), domain.Market{
		Address: addr, PoolID: 1, Status: domain.MarketStatusSettled,
	}))
	before := f.markets.upserts

	require.NoError(t, f.engine.SyncAllMarkets(context.Background()))
	require.Equal(t, before, f.markets.upserts, "settled market must not be re-upserted")

	m, err := f.markets.GetByAddress(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, domain.MarketStatusSettled, m.Status)
}

func TestSyncAllMarketsIdempotent(t *testing.T) {
	f := newFixture(t)
	addr := testKey(0x10).String()
	f.ledger.addProgramAccount(solana.PoolDiscriminator(), addr, encodePool(t, testPool(1, time.Now().Add(time.Hour).Unix())))

	require.NoError(t, f.engine.SyncAllMarkets(context.Background()))
	require.NoError(t, f.engine.SyncAllMarkets(context.Background()))

	count, err := f.markets.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestSyncAllMarketsIsolatesBadAccounts(t *testing.T) {
	f := newFixture(t)
	goodAddr := testKey(0x10).String()
	f.ledger.addProgramAccount(solana.PoolDiscriminator(), "garbage", []byte{1, 2, 3})
	f.ledger.addProgramAccount(solana.PoolDiscriminator(), goodAddr, encodePool(t, testPool(7, time.Now().Add(time.Hour).Unix())))

	require.NoError(t, f.engine.SyncAllMarkets(context.Background()))

	m, err := f.markets.GetByAddress(context.Background(), goodAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(7), m.PoolID)
}

func TestSyncBetCreatesUserAndResolvesPool(t *testing.T) {
	f := newFixture(t)
	poolAddr := testKey(0x10)
	owner := testKey(0x20)
	betAddr := testKey(0x30).String()

	require.NoError(t, f.markets.Upsert(context.Background(), domain.Market{
		Address: poolAddr.String(), PoolID: 42, Status: domain.MarketStatusActive,
	}))

	f.ledger.accounts[betAddr] = encodeBet(t, solana.UserBetAccount{
		Owner:            owner,
		Pool:             poolAddr,
		Deposit:          1_000_000,
		Prediction:       123_450_000,
		CalculatedWeight: 55,
		Status:           borsh.Enum(1),
		CreationTs:       1_700_000_000,
		UpdateCount:      2,
	})

	require.NoError(t, f.engine.SyncBet(context.Background(), betAddr))

	bet, err := f.bets.GetByAddress(context.Background(), betAddr)
	require.NoError(t, err)
	require.Equal(t, owner.String(), bet.Owner)
	require.Equal(t, uint64(42), bet.PoolID)
	require.Equal(t, domain.BetStatusClaimed, bet.Status)
	require.Equal(t, uint32(2), bet.UpdateCount)

	_, err = f.users.Get(context.Background(), owner.String())
	require.NoError(t, err)
}

func TestSyncBetFetchesUnknownPool(t *testing.T) {
	f := newFixture(t)
	poolAddr := testKey(0x10)
	betAddr := testKey(0x30).String()

	f.ledger.accounts[poolAddr.String()] = encodePool(t, testPool(9, time.Now().Add(time.Hour).Unix()))
	f.ledger.accounts[betAddr] = encodeBet(t, solana.UserBetAccount{
		Owner:  testKey(0x20),
		Pool:   poolAddr,
		Status: borsh.Enum(0),
	})

	require.NoError(t, f.engine.SyncBet(context.Background(), betAddr))

	bet, err := f.bets.GetByAddress(context.Background(), betAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(9), bet.PoolID)

	m, err := f.markets.GetByAddress(context.Background(), poolAddr.String())
	require.NoError(t, err)
	require.Equal(t, uint64(9), m.PoolID)
}

func TestSyncAllBetsSyncsOnlyComplement(t *testing.T) {
	f := newFixture(t)
	poolAddr := testKey(0x10)
	require.NoError(t, f.markets.Upsert(context.Background(), domain.Market{
		Address: poolAddr.String(), PoolID: 1, Status: domain.MarketStatusActive,
	}))

	knownAddr := testKey(0x30).String()
	newAddr := testKey(0x31).String()

	// The mirrored bet carries newer targeted-sync state than the chain
	// snapshot; the catch-up must leave it alone.
	require.NoError(t, f.bets.Upsert(context.Background(), domain.Bet{
		Address: knownAddr, Owner: "local", Market: poolAddr.String(), PoolID: 1,
		Status: domain.BetStatusClaimed, UpdateCount: 5,
	}))

	staleKnown := encodeBet(t, solana.UserBetAccount{
		Owner: testKey(0x20), Pool: poolAddr, Status: borsh.Enum(0),
	})
	fresh := encodeBet(t, solana.UserBetAccount{
		Owner: testKey(0x21), Pool: poolAddr, Status: borsh.Enum(0), Deposit: 77,
	})
	f.ledger.addProgramAccount(solana.UserBetDiscriminator(), knownAddr, staleKnown)
	f.ledger.addProgramAccount(solana.UserBetDiscriminator(), newAddr, fresh)

	require.NoError(t, f.engine.SyncAllBets(context.Background()))

	known, err := f.bets.GetByAddress(context.Background(), knownAddr)
	require.NoError(t, err)
	require.Equal(t, "local", known.Owner)
	require.Equal(t, uint32(5), known.UpdateCount)

	added, err := f.bets.GetByAddress(context.Background(), newAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(77), added.Deposit)
}

func TestSyncProtocol(t *testing.T) {
	f := newFixture(t)
	protoAddr, err := solana.ProtocolAddress(testProgramID)
	require.NoError(t, err)

	f.ledger.accounts[protoAddr.String()] = encodeProtocol(t, solana.ProtocolAccount{
		Admin:          testKey(0x01),
		TreasuryWallet: testKey(0x02),
		ProtocolFeeBps: 150,
		Paused:         true,
		TotalUsers:     10,
		TotalPools:     4,
	})

	require.NoError(t, f.engine.SyncProtocol(context.Background()))

	p, err := f.protocol.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint16(150), p.ProtocolFeeBps)
	require.True(t, p.Paused)
	require.Equal(t, uint64(4), p.TotalMarkets)
}

func TestHandleEventRewardClaimed(t *testing.T) {
	f := newFixture(t)
	poolAddr := testKey(0x10)
	owner := testKey(0x20)
	betAddr := testKey(0x30)

	require.NoError(t, f.markets.Upsert(context.Background(), domain.Market{
		Address: poolAddr.String(), PoolID: 1, Status: domain.MarketStatusSettled,
	}))
	f.ledger.accounts[betAddr.String()] = encodeBet(t, solana.UserBetAccount{
		Owner: owner, Pool: poolAddr, Status: borsh.Enum(1),
	})

	f.engine.HandleEvent(context.Background(), solana.RewardClaimedEvent{
		User:       owner,
		BetAddress: betAddr,
		Amount:     2_500_000,
	})

	bet, err := f.bets.GetByAddress(context.Background(), betAddr.String())
	require.NoError(t, err)
	require.Equal(t, domain.BetStatusClaimed, bet.Status)

	require.Len(t, f.rewards.calls, 1)
	require.Equal(t, owner.String(), f.rewards.calls[0].wallet)
	require.Equal(t, uint64(2_500_000), f.rewards.calls[0].amount)
}

func TestHandleEventPoolCreatedSweepsMarkets(t *testing.T) {
	f := newFixture(t)
	addr := testKey(0x10)
	f.ledger.addProgramAccount(solana.PoolDiscriminator(), addr.String(),
		encodePool(t, testPool(3, time.Now().Add(time.Hour).Unix())))

	f.engine.HandleEvent(context.Background(), solana.PoolCreatedEvent{
		Pool: addr, PoolID: 3, PoolName: "BTC above 100k",
	})

	require.Eventually(t, func() bool {
		_, err := f.markets.GetByAddress(context.Background(), addr.String())
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestHandleEventPauseChangedNotifies(t *testing.T) {
	f := newFixture(t)
	notifier := &fakeNotifier{}
	f.engine.notifier = notifier

	protoAddr, err := solana.ProtocolAddress(testProgramID)
	require.NoError(t, err)
	f.ledger.accounts[protoAddr.String()] = encodeProtocol(t, solana.ProtocolAccount{
		Admin:          testKey(0x01),
		TreasuryWallet: testKey(0x02),
		Paused:         true,
	})

	f.engine.HandleEvent(context.Background(), solana.PauseChangedEvent{IsPaused: true})

	p, err := f.protocol.Get(context.Background())
	require.NoError(t, err)
	require.True(t, p.Paused)
	require.Equal(t, []notify.Event{notify.EventProtocolPaused}, notifier.events)
}

func TestHandleEventBetPlacedFailureIsSilent(t *testing.T) {
	f := newFixture(t)
	// No account on the ledger; the handler must log and swallow the error.
	f.engine.HandleEvent(context.Background(), solana.BetPlacedEvent{BetAddress: testKey(0x30)})

	count, err := f.bets.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestInitialFullSyncOrder(t *testing.T) {
	f := newFixture(t)
	protoAddr, err := solana.ProtocolAddress(testProgramID)
	require.NoError(t, err)
	f.ledger.accounts[protoAddr.String()] = encodeProtocol(t, solana.ProtocolAccount{
		Admin: testKey(0x01), TreasuryWallet: testKey(0x02),
	})

	poolAddr := testKey(0x10)
	f.ledger.addProgramAccount(solana.PoolDiscriminator(), poolAddr.String(),
		encodePool(t, testPool(1, time.Now().Add(time.Hour).Unix())))

	betAddr := testKey(0x30).String()
	f.ledger.addProgramAccount(solana.UserBetDiscriminator(), betAddr,
		encodeBet(t, solana.UserBetAccount{Owner: testKey(0x20), Pool: poolAddr, Status: borsh.Enum(0)}))

	require.NoError(t, f.engine.InitialFullSync(context.Background()))

	_, err = f.protocol.Get(context.Background())
	require.NoError(t, err)

	markets, err := f.markets.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), markets)

	bets, err := f.bets.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), bets)
}
