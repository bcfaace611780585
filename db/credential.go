package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Credential is a seller's Mercado Pago token triple plus the version used
// for conditional writes.
type Credential struct {
	SellerID     uint
	AccessToken  string
	RefreshToken string
	RefreshedAt  time.Time
	Version      int64
}

// Linked reports whether all three credential fields are present.
func (c *Credential) Linked() bool {
	return c != nil && c.AccessToken != "" && c.RefreshToken != "" && !c.RefreshedAt.IsZero()
}

func credentialOf(s *Seller) *Credential {
	c := &Credential{SellerID: s.ID, Version: s.CredentialVersion}
	if s.MPAccessToken != nil {
		c.AccessToken = *s.MPAccessToken
	}
	if s.MPRefreshToken != nil {
		c.RefreshToken = *s.MPRefreshToken
	}
	if s.MPTokenLastUpdated != nil {
		c.RefreshedAt = s.MPTokenLastUpdated.UTC()
	}
	return c
}

// CredentialRepository persists seller credential triples. Every write sets
// or clears all three fields in a single UPDATE.
type CredentialRepository interface {
	Get(ctx context.Context, sellerID uint) (*Credential, error)
	List(ctx context.Context) ([]Credential, error)
	Save(ctx context.Context, sellerID uint, accessToken, refreshToken string, at time.Time) error
	Swap(ctx context.Context, prev Credential, accessToken, refreshToken string, at time.Time) error
	Clear(ctx context.Context, sellerID uint) error
}

type gormCredentialRepo struct{ db *gorm.DB }

// NewCredentialRepository creates a CredentialRepository backed by gdb.
func NewCredentialRepository(gdb *gorm.DB) CredentialRepository {
	return &gormCredentialRepo{db: gdb}
}

var credentialColumns = []string{"id", "mp_access_token", "mp_refresh_token", "mp_token_last_updated", "credential_version"}

// Get returns ErrNotFound when the seller does not exist. An existing but
// unlinked seller yields a Credential whose Linked method reports false.
func (r *gormCredentialRepo) Get(ctx context.Context, sellerID uint) (*Credential, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var s Seller
	if err := r.db.WithContext(ctx).Select(credentialColumns).First(&s, sellerID).Error; err != nil {
		return nil, storeErr(err)
	}
	return credentialOf(&s), nil
}

func (r *gormCredentialRepo) List(ctx context.Context) ([]Credential, error) {
	if r.db == nil {
		return nil, errNotInitialized
	}
	var sellers []Seller
	if err := r.db.WithContext(ctx).Select(credentialColumns).Order("id").Find(&sellers).Error; err != nil {
		return nil, storeErr(err)
	}
	creds := make([]Credential, 0, len(sellers))
	for i := range sellers {
		creds = append(creds, *credentialOf(&sellers[i]))
	}
	return creds, nil
}

// Save writes a new triple unconditionally. Used when a seller links their
// account, where there is no previous state to compare against.
func (r *gormCredentialRepo) Save(ctx context.Context, sellerID uint, accessToken, refreshToken string, at time.Time) error {
	if r.db == nil {
		return errNotInitialized
	}
	res := r.db.WithContext(ctx).Model(&Seller{}).
		Where("id = ?", sellerID).
		Updates(tripleUpdate(accessToken, refreshToken, at))
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Swap writes a new triple only if the stored version still equals
// prev.Version. It returns ErrConflict when another writer got there first.
func (r *gormCredentialRepo) Swap(ctx context.Context, prev Credential, accessToken, refreshToken string, at time.Time) error {
	if r.db == nil {
		return errNotInitialized
	}
	res := r.db.WithContext(ctx).Model(&Seller{}).
		Where("id = ? AND credential_version = ?", prev.SellerID, prev.Version).
		Updates(tripleUpdate(accessToken, refreshToken, at))
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *gormCredentialRepo) Clear(ctx context.Context, sellerID uint) error {
	if r.db == nil {
		return errNotInitialized
	}
	res := r.db.WithContext(ctx).Model(&Seller{}).
		Where("id = ?", sellerID).
		Updates(map[string]any{
			"mp_access_token":       nil,
			"mp_refresh_token":      nil,
			"mp_token_last_updated": nil,
			"credential_version":    gorm.Expr("credential_version + 1"),
		})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func tripleUpdate(accessToken, refreshToken string, at time.Time) map[string]any {
	return map[string]any{
		"mp_access_token":       accessToken,
		"mp_refresh_token":      refreshToken,
		"mp_token_last_updated": at.UTC(),
		"credential_version":    gorm.Expr("credential_version + 1"),
	}
}
