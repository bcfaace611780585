package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habedi/totempark/auth"
	"github.com/habedi/totempark/client"
	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/apperr"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	gdb     *gorm.DB
	sellers db.SellerRepository
	totems  db.TotemRepository
	creds   db.CredentialRepository
	clock   clockwork.FakeClock
	seller  *db.Seller
}

func setupTestDB(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "totempark.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	f := &fixture{
		gdb:     gdb,
		sellers: db.NewSellerRepository(gdb),
		totems:  db.NewTotemRepository(gdb),
		creds:   db.NewCredentialRepository(gdb),
		clock:   clockwork.NewFakeClockAt(time.Now().UTC()),
	}
	f.seller = &db.Seller{Name: "Ana", Email: "ana@example.com", HashedPassword: "hash"}
	require.NoError(t, f.sellers.Create(context.Background(), f.seller))
	require.NoError(t, f.totems.Create(context.Background(), &db.Totem{
		ExternalPosID: "QR_CAJA_01",
		IsActive:      true,
		OwnerID:       &f.seller.ID,
	}))
	return f
}

func tokenServer(t *testing.T, status int, body map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/oauth/token", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func processor(serverURL string) *client.MercadoPago {
	return client.NewMercadoPago(client.Config{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		RedirectURL:  "http://localhost:8000/mercadopago/connect",
		AuthURL:      serverURL + "/authorization",
		TokenURL:     serverURL + "/oauth/token",
		Timeout:      2 * time.Second,
	})
}

func TestLinkThenIssue_Integration(t *testing.T) {
	f := setupTestDB(t)
	server, calls := tokenServer(t, http.StatusOK, map[string]any{
		"access_token":  "A1",
		"refresh_token": "R1",
		"expires_in":    21600,
	})
	mp := processor(server.URL)
	ctx := context.Background()

	linker := auth.NewLinker(f.sellers, f.creds, mp, f.clock)
	_, err := linker.CompleteLink(ctx, "good-code", "1")
	require.NoError(t, err)

	service := auth.NewService(f.creds, mp, auth.Options{Clock: f.clock})
	issuer := auth.NewIssuer(f.totems, service)

	token, err := issuer.IssueToken(ctx, "QR_CAJA_01")
	require.NoError(t, err)
	assert.Equal(t, "A1", token)
	assert.EqualValues(t, 1, calls.Load(), "issuing a fresh token makes no remote call")
}

func TestRefreshToken_Integration_Success(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	old := f.clock.Now().Add(-(6*time.Hour + 6*time.Minute))
	require.NoError(t, f.creds.Save(ctx, f.seller.ID, "A1", "R1", old))

	server, calls := tokenServer(t, http.StatusOK, map[string]any{
		"access_token":  "A2",
		"refresh_token": "R2",
		"expires_in":    21600,
	})
	service := auth.NewService(f.creds, processor(server.URL), auth.Options{Clock: f.clock})

	res, err := service.Obtain(ctx, f.seller.ID)

	require.NoError(t, err)
	assert.Equal(t, "A2", res.AccessToken())
	assert.Equal(t, auth.Refreshed, res.Outcome)
	assert.EqualValues(t, 1, calls.Load())

	stored, err := f.creds.Get(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "A2", stored.AccessToken)
	assert.Equal(t, "R2", stored.RefreshToken)
	assert.WithinDuration(t, f.clock.Now(), stored.RefreshedAt, time.Second)

	// The new token is fresh now.
	res, err = service.Obtain(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.Fresh, res.Outcome)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRefreshToken_Integration_ApiFailure(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	old := f.clock.Now().Add(-7 * time.Hour)
	require.NoError(t, f.creds.Save(ctx, f.seller.ID, "A1", "R1", old))
	before, err := f.creds.Get(ctx, f.seller.ID)
	require.NoError(t, err)

	server, _ := tokenServer(t, http.StatusBadRequest, map[string]any{
		"error":   "invalid_grant",
		"message": "invalid refresh_token",
	})
	service := auth.NewService(f.creds, processor(server.URL), auth.Options{Clock: f.clock})

	res, err := service.Obtain(ctx, f.seller.ID)

	require.NoError(t, err)
	assert.Equal(t, "A1", res.AccessToken())
	assert.Equal(t, auth.Kept, res.Outcome)
	var rejected *client.RejectedError
	assert.ErrorAs(t, res.Cause, &rejected)

	after, err := f.creds.Get(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after, "credential in DB should not have been updated on failure")
}

func TestCompleteLink_Integration_Rejected(t *testing.T) {
	f := setupTestDB(t)
	server, _ := tokenServer(t, http.StatusBadRequest, map[string]any{
		"error":   "invalid_grant",
		"message": "invalid authorization code",
	})
	linker := auth.NewLinker(f.sellers, f.creds, processor(server.URL), f.clock)

	_, err := linker.CompleteLink(context.Background(), "bad-code", "1")

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.UpstreamRejected))
	assert.Equal(t, http.StatusBadRequest, apperr.StatusOf(err))
	assert.Contains(t, err.Error(), "invalid authorization code")

	stored, err := f.creds.Get(context.Background(), f.seller.ID)
	require.NoError(t, err)
	assert.False(t, stored.Linked())
	assert.Zero(t, stored.Version)
}

func TestIssueToken_Integration_ClosedStore(t *testing.T) {
	f := setupTestDB(t)
	service := auth.NewService(f.creds, processor("http://127.0.0.1:1"), auth.Options{Clock: f.clock})
	issuer := auth.NewIssuer(f.totems, service)
	require.NoError(t, db.Close(f.gdb))

	_, err := issuer.IssueToken(context.Background(), "QR_CAJA_01")

	assert.Equal(t, http.StatusServiceUnavailable, apperr.StatusOf(err))
}
