package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/habedi/totempark/client"
	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/apperr"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Linker runs the seller-facing half of the OAuth flow: it hands out the
// authorization URL and completes the link when Mercado Pago redirects back.
type Linker struct {
	Sellers   SellerLookup
	Store     CredentialStore
	Exchanger CodeExchanger
	clock     clockwork.Clock
}

// NewLinker creates a Linker. A nil clock selects the real clock.
func NewLinker(sellers SellerLookup, store CredentialStore, exchanger CodeExchanger, clock clockwork.Clock) *Linker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Linker{Sellers: sellers, Store: store, Exchanger: exchanger, clock: clock}
}

// AuthorizationURL returns the URL that starts linking for sellerID. The
// seller id travels as the OAuth state; nothing is stored server side.
func (l *Linker) AuthorizationURL(sellerID uint) string {
	return l.Exchanger.AuthorizationURL(strconv.FormatUint(uint64(sellerID), 10))
}

// CompleteLink exchanges code for a token pair and stores it for the seller
// named by state. It returns the linked seller's id.
func (l *Linker) CompleteLink(ctx context.Context, code, state string) (uint, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(state) == "" {
		return 0, apperr.New(apperr.InvalidRequest, "Missing code or state parameter", nil)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(state), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.New(apperr.InvalidRequest, "Invalid state parameter", err)
	}
	sellerID := uint(id)

	if _, err := l.Sellers.GetByID(ctx, sellerID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return 0, apperr.New(apperr.InvalidRequest, "State does not refer to a known seller", err)
		}
		return 0, storeError("Could not load seller", err)
	}

	pair, err := l.Exchanger.ExchangeCode(ctx, code)
	if err != nil {
		log.Error().Err(err).Uint("seller_id", sellerID).Msg("Mercado Pago code exchange failed")
		return 0, exchangeError(err)
	}

	if err := l.Store.Save(ctx, sellerID, pair.AccessToken, pair.RefreshToken, l.clock.Now().UTC()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return 0, apperr.New(apperr.InvalidRequest, "Seller was removed while linking", err)
		}
		return 0, storeError("Could not save Mercado Pago credentials", err)
	}

	log.Info().Uint("seller_id", sellerID).Msg("Mercado Pago account linked")
	return sellerID, nil
}

// Disconnect clears the seller's credential triple.
func (l *Linker) Disconnect(ctx context.Context, sellerID uint) error {
	if err := l.Store.Clear(ctx, sellerID); err != nil {
		return storeError("Could not disconnect Mercado Pago account", err)
	}
	log.Info().Uint("seller_id", sellerID).Msg("Mercado Pago account disconnected")
	return nil
}

func exchangeError(err error) error {
	var rejected *client.RejectedError
	switch {
	case errors.As(err, &rejected):
		status := rejected.StatusCode
		if status < 400 {
			status = 502
		}
		return apperr.WithStatus(apperr.UpstreamRejected, status,
			fmt.Sprintf("Mercado Pago rejected the authorization code: %s", rejected.Body), err)
	case errors.Is(err, client.ErrMalformedResponse):
		return apperr.New(apperr.UpstreamProtocol, "Mercado Pago returned an incomplete token response", err)
	case errors.Is(err, client.ErrUnreachable):
		return apperr.New(apperr.Internal, "Mercado Pago could not be reached, try linking again", err)
	default:
		return apperr.New(apperr.Internal, "Could not complete Mercado Pago linking", err)
	}
}

// storeError classifies a repository failure for the caller.
func storeError(msg string, err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return apperr.New(apperr.NotFound, msg, err)
	case errors.Is(err, db.ErrUnavailable):
		return apperr.New(apperr.StoreUnavailable, msg, err)
	default:
		return apperr.New(apperr.Internal, msg, err)
	}
}
