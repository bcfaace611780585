package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/keylock"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultStaleThreshold is the token age after which a refresh is
	// attempted. Mercado Pago access tokens live for six hours.
	DefaultStaleThreshold = 5*time.Hour + 30*time.Minute
	DefaultRefreshTimeout = 15 * time.Second
	DefaultLockTTL        = 30 * time.Second
)

// ErrNotLinked is returned when a seller has no complete credential triple.
var ErrNotLinked = errors.New("seller has not linked a Mercado Pago account")

// ErrRefreshPanicked is the Kept cause when a refresh panicked.
var ErrRefreshPanicked = errors.New("token refresh panicked")

// Outcome tells how Obtain produced its token.
type Outcome int

const (
	// Fresh means the stored token was young enough to serve as is.
	Fresh Outcome = iota
	// Refreshed means a new pair was fetched and stored. A non-nil
	// Result.Cause means it was fetched but could not be stored.
	Refreshed
	// Kept means a refresh was due but did not happen; the stored token is
	// served and Result.Cause says why.
	Kept
)

func (o Outcome) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Refreshed:
		return "refreshed"
	case Kept:
		return "kept"
	default:
		return "unknown"
	}
}

// Result is the credential served by Obtain and how it was obtained.
type Result struct {
	Credential db.Credential
	Outcome    Outcome
	Cause      error
}

// AccessToken returns the token to hand to the caller.
func (r Result) AccessToken() string { return r.Credential.AccessToken }

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	StaleThreshold time.Duration
	RefreshTimeout time.Duration
	// Locker, when set, serialises refreshes of one seller across every
	// instance sharing it.
	Locker  keylock.Locker
	LockTTL time.Duration
	Clock   clockwork.Clock
}

// Service owns the staleness policy for seller credentials and decides when
// to refresh and what to serve when a refresh fails.
type Service struct {
	Store     CredentialStore
	Refresher TokenRefresher

	locker         keylock.Locker
	clock          clockwork.Clock
	threshold      time.Duration
	refreshTimeout time.Duration
	lockTTL        time.Duration
	group          singleflight.Group
}

// NewService is the constructor for the token lifecycle service.
func NewService(store CredentialStore, refresher TokenRefresher, opts Options) *Service {
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = DefaultStaleThreshold
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		Store:          store,
		Refresher:      refresher,
		locker:         opts.Locker,
		clock:          opts.Clock,
		threshold:      opts.StaleThreshold,
		refreshTimeout: opts.RefreshTimeout,
		lockTTL:        opts.LockTTL,
	}
}

// Threshold returns the configured staleness threshold.
func (s *Service) Threshold() time.Duration { return s.threshold }

// Age returns how long ago c was last refreshed.
func (s *Service) Age(c db.Credential) time.Duration {
	return s.clock.Since(c.RefreshedAt)
}

// Stale reports whether c is due for a refresh.
func (s *Service) Stale(c db.Credential) bool {
	return s.Age(c) > s.threshold
}

// Obtain returns a usable access token for sellerID, refreshing it first when
// it is stale. A failed refresh is not an error: the stored token is served
// with Outcome Kept, and a refreshed token that cannot be saved is still
// served. Read failures are returned wrapped around db.ErrUnavailable; an
// unlinked seller yields ErrNotLinked.
func (s *Service) Obtain(ctx context.Context, sellerID uint) (Result, error) {
	cred, err := s.Store.Get(ctx, sellerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Result{}, ErrNotLinked
		}
		return Result{}, fmt.Errorf("failed to read credential for seller %d: %w", sellerID, err)
	}
	if !cred.Linked() {
		return Result{}, ErrNotLinked
	}
	if !s.Stale(*cred) {
		return Result{Credential: *cred, Outcome: Fresh}, nil
	}

	// Concurrent callers for the same seller share one refresh. It runs
	// detached from any single caller so an abandoned request does not abort
	// a refresh other callers are waiting on.
	key := strconv.FormatUint(uint64(sellerID), 10)
	ch := s.group.DoChan(key, func() (res any, err error) {
		// singleflight re-panics on its own goroutine, out of reach of any
		// request-level recovery.
		defer func() {
			if r := recover(); r != nil {
				log.Error().Uint("seller_id", sellerID).Interface("panic", r).Msg("Token refresh panicked")
				res, err = s.keep(*cred, fmt.Errorf("%w: %v", ErrRefreshPanicked, r)), nil
			}
		}()
		return s.refresh(context.WithoutCancel(ctx), *cred)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	case <-ctx.Done():
		return s.keep(*cred, ctx.Err()), nil
	}
}

func (s *Service) refresh(ctx context.Context, cred db.Credential) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	if s.locker != nil {
		unlock, err := s.locker.TryLock(ctx, "refresh:lock:"+strconv.FormatUint(uint64(cred.SellerID), 10), s.lockTTL)
		switch {
		case errors.Is(err, keylock.ErrHeld):
			return s.keep(cred, err), nil
		case err != nil:
			// The version check on write still protects the stored triple.
			log.Warn().Err(err).Uint("seller_id", cred.SellerID).Msg("Refresh lock unavailable, refreshing without it")
		default:
			defer unlock()
		}
	}

	pair, err := s.Refresher.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		return s.keep(cred, err), nil
	}

	now := s.clock.Now().UTC()
	err = s.Store.Swap(ctx, cred, pair.AccessToken, pair.RefreshToken, now)
	if errors.Is(err, db.ErrConflict) {
		return s.winner(ctx, cred.SellerID)
	}
	fresh := db.Credential{
		SellerID:     cred.SellerID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		RefreshedAt:  now,
		Version:      cred.Version + 1,
	}
	if err != nil {
		// The processor has already rotated the pair, so the new access
		// token is the one that works. The stored triple stays as it was.
		log.Error().Err(err).Uint("seller_id", cred.SellerID).Msg("Failed to save refreshed token, serving it unsaved")
		fresh.Version = cred.Version
		return Result{Credential: fresh, Outcome: Refreshed, Cause: err}, nil
	}

	log.Info().Uint("seller_id", cred.SellerID).Msg("Mercado Pago token refreshed and saved")
	return Result{Credential: fresh, Outcome: Refreshed}, nil
}

// winner serves whatever another writer stored after our read.
func (s *Service) winner(ctx context.Context, sellerID uint) (Result, error) {
	log.Warn().Uint("seller_id", sellerID).Msg("Credential changed during refresh, serving the stored one")
	latest, err := s.Store.Get(ctx, sellerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Result{}, ErrNotLinked
		}
		return Result{}, fmt.Errorf("failed to re-read credential for seller %d: %w", sellerID, err)
	}
	if !latest.Linked() {
		return Result{}, ErrNotLinked
	}
	return Result{Credential: *latest, Outcome: Fresh}, nil
}

func (s *Service) keep(cred db.Credential, cause error) Result {
	log.Warn().Err(cause).
		Uint("seller_id", cred.SellerID).
		Dur("age", s.Age(cred)).
		Msg("Token refresh failed, serving the current token")
	return Result{Credential: cred, Outcome: Kept, Cause: cause}
}
