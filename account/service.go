package account

import (
	"context"
	"errors"
	"strings"

	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/apperr"
	"github.com/habedi/totempark/pkg/validation"
	"github.com/rs/zerolog/log"
)

// Registration is the input for creating a seller account.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"-"`
}

// Service registers sellers and logs them in.
type Service struct {
	Sellers db.SellerRepository
	Tokens  *Tokens
}

// NewService creates an account Service.
func NewService(sellers db.SellerRepository, tokens *Tokens) *Service {
	return &Service{Sellers: sellers, Tokens: tokens}
}

// Register validates r and creates the seller with a hashed password.
func (s *Service) Register(ctx context.Context, r Registration) (*db.Seller, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if err := validation.ValidateNonEmptyString("name", r.Name); err != nil {
		return nil, apperr.New(apperr.InvalidRequest, err.Error(), err)
	}
	if err := validation.ValidateEmail(r.Email); err != nil {
		return nil, apperr.New(apperr.InvalidRequest, err.Error(), err)
	}
	if err := validation.ValidatePassword(r.Password); err != nil {
		return nil, apperr.New(apperr.InvalidRequest, err.Error(), err)
	}

	hash, err := HashPassword(r.Password)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "Failed to register seller", err)
	}
	seller := &db.Seller{Name: r.Name, Email: r.Email, HashedPassword: hash, IsAdmin: r.IsAdmin}
	if err := s.Sellers.Create(ctx, seller); err != nil {
		return nil, Classify("Failed to register seller", err)
	}
	log.Info().Uint("seller_id", seller.ID).Str("email", seller.Email).Msg("Seller registered")
	return seller, nil
}

// Authenticate checks the email/password pair and returns a bearer token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	seller, err := s.Sellers.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return "", Classify("Failed to log in", err)
	}
	if seller == nil || !VerifyPassword(password, seller.HashedPassword) {
		return "", apperr.New(apperr.Unauthorized, "Incorrect email or password", nil)
	}
	token, err := s.Tokens.Issue(seller.Email)
	if err != nil {
		return "", apperr.New(apperr.Internal, "Failed to log in", err)
	}
	return token, nil
}

// Current resolves a bearer token to its seller.
func (s *Service) Current(ctx context.Context, bearer string) (*db.Seller, error) {
	email, err := s.Tokens.Parse(bearer)
	if err != nil {
		return nil, apperr.New(apperr.Unauthorized, "Could not validate credentials", err)
	}
	seller, err := s.Sellers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthorized, "Could not validate credentials", err)
		}
		return nil, Classify("Could not load seller", err)
	}
	return seller, nil
}

// Classify maps a repository error to a caller-facing error.
func Classify(msg string, err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return apperr.New(apperr.NotFound, msg, err)
	case errors.Is(err, db.ErrDuplicate):
		return apperr.New(apperr.Conflict, msg+": already exists", err)
	case errors.Is(err, db.ErrUnavailable):
		return apperr.New(apperr.StoreUnavailable, msg, err)
	default:
		return apperr.New(apperr.Internal, msg, err)
	}
}
