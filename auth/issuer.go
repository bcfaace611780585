package auth

import (
	"context"
	"errors"

	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/apperr"
	"github.com/rs/zerolog/log"
)

// Issuer hands a totem the access token of the seller that owns it.
type Issuer struct {
	Totems TotemLookup
	Tokens TokenObtainer
}

// NewIssuer creates an Issuer.
func NewIssuer(totems TotemLookup, tokens TokenObtainer) *Issuer {
	return &Issuer{Totems: totems, Tokens: tokens}
}

// IssueToken resolves externalPosID to its owner and returns a usable access
// token. Callers cannot tell an unknown totem from an unlinked owner: both
// are NotFound.
func (i *Issuer) IssueToken(ctx context.Context, externalPosID string) (string, error) {
	totem, err := i.Totems.GetByExternalID(ctx, externalPosID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", apperr.New(apperr.NotFound, "Totem not found", err)
		}
		return "", issueError(externalPosID, err)
	}
	if totem.OwnerID == nil {
		return "", apperr.New(apperr.NotFound, "Totem not found", nil)
	}

	res, err := i.Tokens.Obtain(ctx, *totem.OwnerID)
	if err != nil {
		if errors.Is(err, ErrNotLinked) {
			return "", apperr.New(apperr.NotFound, "Totem not found", err)
		}
		return "", issueError(externalPosID, err)
	}

	log.Debug().
		Str("external_pos_id", externalPosID).
		Uint("seller_id", res.Credential.SellerID).
		Stringer("outcome", res.Outcome).
		Msg("Issued token to totem")
	return res.AccessToken(), nil
}

func issueError(externalPosID string, err error) error {
	log.Error().Err(err).Str("external_pos_id", externalPosID).Msg("Failed to issue token")
	if errors.Is(err, db.ErrUnavailable) {
		return apperr.New(apperr.StoreUnavailable, "Service temporarily unavailable", err)
	}
	return apperr.New(apperr.Internal, "Internal server error", err)
}
