package auth

import (
	"context"
	"time"

	"github.com/habedi/totempark/client"
	"github.com/habedi/totempark/db"
)

// CredentialStore defines the contract for any component that can read and
// write a seller's credential triple. db.CredentialRepository satisfies it.
type CredentialStore interface {
	Get(ctx context.Context, sellerID uint) (*db.Credential, error)
	Save(ctx context.Context, sellerID uint, accessToken, refreshToken string, at time.Time) error
	Swap(ctx context.Context, prev db.Credential, accessToken, refreshToken string, at time.Time) error
	Clear(ctx context.Context, sellerID uint) error
}

// TokenRefresher defines the contract for any component that can trade a
// refresh token for a new token pair.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (client.TokenPair, error)
}

// CodeExchanger defines the contract for the authorization-code half of the
// OAuth flow.
type CodeExchanger interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (client.TokenPair, error)
}

// SellerLookup resolves a seller by id.
type SellerLookup interface {
	GetByID(ctx context.Context, id uint) (*db.Seller, error)
}

// TotemLookup resolves a totem, with its owner loaded, by external id.
type TotemLookup interface {
	GetByExternalID(ctx context.Context, externalPosID string) (*db.Totem, error)
}

// TokenObtainer hands out a usable access token for a seller.
type TokenObtainer interface {
	Obtain(ctx context.Context, sellerID uint) (Result, error)
}
