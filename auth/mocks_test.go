package auth_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/habedi/totempark/auth"
	"github.com/habedi/totempark/client"
	"github.com/habedi/totempark/db"
)

type mockStore struct {
	mu      sync.Mutex
	creds   map[uint]db.Credential
	getErr  error
	saveErr error
	swapErr error
	onSwap  func() // runs before a swap is applied, under no lock

	gets, saves, swaps, clears int
}

func newMockStore(creds ...db.Credential) *mockStore {
	m := &mockStore{creds: map[uint]db.Credential{}}
	for _, c := range creds {
		m.creds[c.SellerID] = c
	}
	return m
}

func (m *mockStore) Get(_ context.Context, sellerID uint) (*db.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.creds[sellerID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &c, nil
}

func (m *mockStore) Save(_ context.Context, sellerID uint, access, refresh string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	c, ok := m.creds[sellerID]
	if !ok {
		return db.ErrNotFound
	}
	m.creds[sellerID] = db.Credential{SellerID: sellerID, AccessToken: access, RefreshToken: refresh, RefreshedAt: at, Version: c.Version + 1}
	return nil
}

func (m *mockStore) Swap(_ context.Context, prev db.Credential, access, refresh string, at time.Time) error {
	if m.onSwap != nil {
		m.onSwap()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swaps++
	if m.swapErr != nil {
		return m.swapErr
	}
	c, ok := m.creds[prev.SellerID]
	if !ok || c.Version != prev.Version {
		return db.ErrConflict
	}
	m.creds[prev.SellerID] = db.Credential{SellerID: prev.SellerID, AccessToken: access, RefreshToken: refresh, RefreshedAt: at, Version: c.Version + 1}
	return nil
}

func (m *mockStore) Clear(_ context.Context, sellerID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	c, ok := m.creds[sellerID]
	if !ok {
		return db.ErrNotFound
	}
	m.creds[sellerID] = db.Credential{SellerID: sellerID, Version: c.Version + 1}
	return nil
}

func (m *mockStore) put(c db.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[c.SellerID] = c
}

func (m *mockStore) stored(sellerID uint) db.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds[sellerID]
}

func (m *mockStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves + m.swaps + m.clears
}

// mockRefresher returns pair, or err, and counts calls. When block is set it
// waits for it to close or for the context to end.
type mockRefresher struct {
	pair  client.TokenPair
	err   error
	block chan struct{}
	seq    bool // hand out A<n>/R<n> per call instead of pair
	panics any
	calls  atomic.Int32
}

func (m *mockRefresher) RefreshToken(ctx context.Context, _ string) (client.TokenPair, error) {
	n := m.calls.Add(1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return client.TokenPair{}, ctx.Err()
		}
	}
	if m.panics != nil {
		panic(m.panics)
	}
	if m.err != nil {
		return client.TokenPair{}, m.err
	}
	if m.seq {
		return client.TokenPair{AccessToken: fmt.Sprintf("A%d", n+1), RefreshToken: fmt.Sprintf("R%d", n+1)}, nil
	}
	return m.pair, nil
}

type mockExchanger struct {
	pair  client.TokenPair
	err   error
	calls int
	codes []string
}

func (m *mockExchanger) AuthorizationURL(state string) string {
	return "https://auth.example.com/authorization?state=" + state
}

func (m *mockExchanger) ExchangeCode(_ context.Context, code string) (client.TokenPair, error) {
	m.calls++
	m.codes = append(m.codes, code)
	return m.pair, m.err
}

type mockSellers struct {
	sellers map[uint]*db.Seller
	err     error
}

func (m *mockSellers) GetByID(_ context.Context, id uint) (*db.Seller, error) {
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.sellers[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return s, nil
}

type mockTotems struct {
	totems map[string]*db.Totem
	err    error
}

func (m *mockTotems) GetByExternalID(_ context.Context, id string) (*db.Totem, error) {
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.totems[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return t, nil
}

type mockObtainer struct {
	result auth.Result
	err    error
	ids    []uint
}

func (m *mockObtainer) Obtain(_ context.Context, sellerID uint) (auth.Result, error) {
	m.ids = append(m.ids, sellerID)
	return m.result, m.err
}

type mockLocker struct {
	err      error
	acquired int
	released int
	keys     []string
}

func (m *mockLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), error) {
	m.keys = append(m.keys, key)
	if m.err != nil {
		return nil, m.err
	}
	m.acquired++
	return func() { m.released++ }, nil
}
